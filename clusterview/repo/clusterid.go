package repo

import (
	"time"

	"github.com/google/uuid"
)

// clusterIDRecord is the persistent record stored once under the parent
// of clusterInstancesPath.
type clusterIDRecord struct {
	ClusterID         string `json:"clusterId"`
	ClusterIDDefinedBy string `json:"clusterIdDefinedBy"`
	ClusterIDDefinedAt int64  `json:"clusterIdDefinedAt"`
}

const maxClusterIDAttempts = 5

// ReadOrDefineClusterId reads the cluster id record at
// discoveryResourcePath, defining it if absent. Read-before-write keeps
// this idempotent under concurrent contenders: a losing writer simply
// re-reads and observes the winner's id on its next attempt. Retries are
// bounded with a backoff on CAS conflict; sleep is injectable so tests
// don't pay the real 1-second backoff.
func ReadOrDefineClusterId(sess Session, discoveryResourcePath, localStableID string, now func() time.Time, sleep func(time.Duration)) (string, error) {
	if sleep == nil {
		sleep = time.Sleep
	}
	if now == nil {
		now = time.Now
	}

	var lastErr error
	for attempt := 0; attempt < maxClusterIDAttempts; attempt++ {
		rec := clusterIDRecord{}
		found, rev, err := sess.GetJSON(discoveryResourcePath, &rec)
		if err != nil {
			return "", err
		}
		if found && rec.ClusterID != "" {
			return rec.ClusterID, nil
		}

		fresh := clusterIDRecord{
			ClusterID:          uuid.NewString(),
			ClusterIDDefinedBy: localStableID,
			ClusterIDDefinedAt: now().UnixMilli(),
		}

		if found {
			err = sess.SetJSON(discoveryResourcePath, fresh, rev)
		} else {
			err = sess.AddJSON(discoveryResourcePath, fresh)
		}
		if err == nil {
			return fresh.ClusterID, nil
		}
		if err != ErrConflict {
			return "", err
		}

		lastErr = err
		sleep(time.Second)
	}

	return "", lastErr
}
