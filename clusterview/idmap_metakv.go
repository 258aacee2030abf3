package clusterview

import (
	"sync"

	"github.com/couchbase/clusterview/logging"
	"github.com/couchbase/clusterview/repo"
)

// metakvIdMap is a production IdMap that lazily rebuilds its cache by
// scanning clusterInstancesPath's children on a cache miss. It owns its
// own SessionFactory rather than borrowing the engine's per-call
// session, since the id-mapping service refreshes independently of any
// single view computation.
type metakvIdMap struct {
	mu                   sync.RWMutex
	entries              map[int]string
	sessions             repo.SessionFactory
	clusterInstancesPath string
}

// NewMetakvIdMap builds an IdMap backed by clusterInstancesPath's
// per-member records.
func NewMetakvIdMap(sessions repo.SessionFactory, clusterInstancesPath string) IdMap {
	return &metakvIdMap{
		entries:              make(map[int]string),
		sessions:             sessions,
		clusterInstancesPath: clusterInstancesPath,
	}
}

func (m *metakvIdMap) StableIDOf(slotID int) (string, bool) {
	m.mu.RLock()
	id, ok := m.entries[slotID]
	m.mu.RUnlock()
	if ok {
		return id, true
	}

	if err := m.refresh(); err != nil {
		logging.Current.Warnf("idmap: refresh failed: %v", err)
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok = m.entries[slotID]
	return id, ok
}

func (m *metakvIdMap) Put(slotID int, stableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[slotID] = stableID
}

func (m *metakvIdMap) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[int]string)
}

func (m *metakvIdMap) refresh() error {
	sess, err := m.sessions.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	children, err := sess.ListChildren(m.clusterInstancesPath)
	if err != nil {
		return err
	}

	fresh := make(map[int]string, len(children))
	for _, stableID := range children {
		var dto instanceDTO
		found, _, err := sess.GetJSON(repo.InstancePath(m.clusterInstancesPath, stableID), &dto)
		if err != nil || !found {
			continue
		}
		fresh[dto.SlotID] = stableID
	}

	m.mu.Lock()
	m.entries = fresh
	m.mu.Unlock()
	return nil
}
