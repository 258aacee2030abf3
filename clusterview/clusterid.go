package clusterview

import (
	"time"

	"github.com/couchbase/clusterview/repo"
)

// ClusterIDStore reads or defines a persistent cluster id under the
// parent of clusterInstancesPath.
type ClusterIDStore interface {
	ReadOrDefineClusterId(sess repo.Session, clusterInstancesPath, localStableID string) (string, error)
}

type metakvClusterIDStore struct {
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClusterIDStore builds the default ClusterIDStore. now/sleep default
// to time.Now/time.Sleep when nil; tests inject a fake sleep to avoid
// paying the real 1-second backoff.
func NewClusterIDStore(now func() time.Time, sleep func(time.Duration)) ClusterIDStore {
	return &metakvClusterIDStore{now: now, sleep: sleep}
}

func (s *metakvClusterIDStore) ReadOrDefineClusterId(sess repo.Session, clusterInstancesPath, localStableID string) (string, error) {
	discoveryResourcePath := repo.ParentOf(clusterInstancesPath)
	return repo.ReadOrDefineClusterId(sess, discoveryResourcePath, localStableID, s.now, s.sleep)
}
