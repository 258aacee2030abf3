package clusterview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// mapSession is a configurable repo.Session backed by a plain map of
// path -> pre-encoded JSON bytes, for tests that need GetJSON to return
// real data rather than fakeSession's always-empty responses.
type mapSession struct {
	values   map[string][]byte
	children []string
}

func newMapSession() *mapSession { return &mapSession{values: map[string][]byte{}} }

func (s *mapSession) put(path string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	s.values[path] = raw
}

func (s *mapSession) GetJSON(p string, out interface{}) (bool, interface{}, error) {
	raw, ok := s.values[p]
	if !ok {
		return false, nil, nil
	}
	return true, nil, json.Unmarshal(raw, out)
}

func (s *mapSession) SetJSON(string, interface{}, interface{}) error { return nil }
func (s *mapSession) AddJSON(string, interface{}) error              { return nil }
func (s *mapSession) ListChildren(string) ([]string, error)          { return s.children, nil }
func (s *mapSession) Close()                                         {}

func TestMetakvInstanceReader_ResolvesFullRecord(t *testing.T) {
	idMap := NewIdMap()
	idMap.Put(1, "stable-1")

	sess := newMapSession()
	sess.put("/instances/stable-1", map[string]interface{}{
		"leaderElectionId": "token-1",
		"syncToken":        5,
	})

	reader := NewMetakvInstanceReader()
	info, found, err := reader.Read(sess, idMap, "/instances", 1, false)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "stable-1", info.StableID)
	require.Equal(t, "token-1", info.LeaderElectionToken)
	require.Equal(t, int64(5), info.LastSyncToken)
}

func TestMetakvInstanceReader_UnresolvedSlotNotTolerant(t *testing.T) {
	idMap := NewIdMap()
	sess := newMapSession()

	reader := NewMetakvInstanceReader()
	_, found, err := reader.Read(sess, idMap, "/instances", 99, false)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMetakvInstanceReader_MissingRecordTolerant(t *testing.T) {
	idMap := NewIdMap()
	idMap.Put(2, "stable-2")
	sess := newMapSession()

	reader := NewMetakvInstanceReader()
	_, found, err := reader.Read(sess, idMap, "/instances", 2, true)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMetakvInstanceReader_IncompleteRecordTreatedAsMissing(t *testing.T) {
	idMap := NewIdMap()
	idMap.Put(3, "stable-3")
	sess := newMapSession()
	sess.put("/instances/stable-3", map[string]interface{}{"syncToken": 1})

	reader := NewMetakvInstanceReader()
	_, found, err := reader.Read(sess, idMap, "/instances", 3, false)
	require.NoError(t, err)
	require.False(t, found)
}

func TestIsSyncTokenNewerOrEqual(t *testing.T) {
	info := InstanceInfo{LastSyncToken: 10}
	require.True(t, info.IsSyncTokenNewerOrEqual(10))
	require.True(t, info.IsSyncTokenNewerOrEqual(5))
	require.False(t, info.IsSyncTokenNewerOrEqual(11))
}

func TestReadProperties_FiltersStorageInternalKeys(t *testing.T) {
	sess := newMapSession()
	sess.put("/instances/stable-1/properties", map[string]string{
		"jcr:primaryType": "nt:unstructured",
		"role":            "indexer",
	})

	props, err := readProperties(sess, "/instances", "stable-1")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"role": "indexer"}, props)
}

func TestReadProperties_AbsentPropertiesIsEmptyNotError(t *testing.T) {
	sess := newMapSession()
	props, err := readProperties(sess, "/instances", "stable-404")
	require.NoError(t, err)
	require.Empty(t, props)
}

func TestIsStorageInternalKey(t *testing.T) {
	require.True(t, isStorageInternalKey("jcr:primaryType"))
	require.False(t, isStorageInternalKey("role"))
	require.False(t, isStorageInternalKey("jc"))
}
