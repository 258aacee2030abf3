package clusterview

import (
	"github.com/couchbase/clusterview/logging"
	"github.com/couchbase/clusterview/repo"
)

// InstanceReader reads, for a slot id,
// {stableId, leaderElectionToken, lastSyncToken} from repository
// storage. found=false covers every "unresolved" outcome (no id-map
// entry, missing record, incomplete record) regardless of tolerant;
// tolerant only shapes how loudly that outcome is logged, since the
// view builder, not this reader, decides whether an unresolved slot
// fails the call or is tucked away as partially-started. err is reserved
// for genuine repository failures (I/O, decode) that must become
// REPOSITORY_EXCEPTION further up, never for a plain "not found".
type InstanceReader interface {
	Read(sess repo.Session, idMap IdMap, clusterInstancesPath string, slotID int, tolerant bool) (info InstanceInfo, found bool, err error)
}

// instanceDTO is the wire shape of a per-member record. SlotID is
// written by real member processes so that a metakv-backed IdMap (see
// idmap_metakv.go) can invert stableId->slotId into the slotId->stableId
// direction this core needs, without requiring a second repository
// subsystem this core doesn't own.
type instanceDTO struct {
	SlotID           int    `json:"slotId,omitempty"`
	LeaderElectionID string `json:"leaderElectionId"`
	SyncToken        int64  `json:"syncToken"`
}

type metakvInstanceReader struct{}

// NewMetakvInstanceReader builds the default InstanceReader, backed by
// the same metakv Session used for everything else in this core.
func NewMetakvInstanceReader() InstanceReader {
	return &metakvInstanceReader{}
}

func (r *metakvInstanceReader) Read(sess repo.Session, idMap IdMap, clusterInstancesPath string, slotID int, tolerant bool) (InstanceInfo, bool, error) {
	stableID, ok := idMap.StableIDOf(slotID)
	if !ok {
		logMiss(tolerant, "slot %d has no id-map entry", slotID)
		return InstanceInfo{}, false, nil
	}

	p := repo.InstancePath(clusterInstancesPath, stableID)
	var dto instanceDTO
	found, _, err := sess.GetJSON(p, &dto)
	if err != nil {
		return InstanceInfo{}, false, err
	}
	if !found || dto.LeaderElectionID == "" {
		logMiss(tolerant, "slot %d (stable id %s) has no readable instance record at %s", slotID, stableID, p)
		return InstanceInfo{}, false, nil
	}

	return InstanceInfo{
		SlotID:              slotID,
		StableID:            stableID,
		LeaderElectionToken: dto.LeaderElectionID,
		LastSyncToken:       dto.SyncToken,
	}, true, nil
}

func logMiss(tolerant bool, format string, args ...interface{}) {
	if tolerant {
		logging.Current.Debugf(format, args...)
		return
	}
	logging.Current.Warnf(format, args...)
}

// readProperties loads per-member properties, excluding storage-internal
// keys (notably jcr:primaryType). The properties child is optional; its
// absence is not an error.
func readProperties(sess repo.Session, clusterInstancesPath, stableID string) (map[string]string, error) {
	p := repo.PropertiesPath(clusterInstancesPath, stableID)
	raw := map[string]string{}
	found, _, err := sess.GetJSON(p, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]string{}, nil
	}
	props := make(map[string]string, len(raw))
	for k, v := range raw {
		if isStorageInternalKey(k) {
			continue
		}
		props[k] = v
	}
	return props, nil
}

func isStorageInternalKey(key string) bool {
	const jcrPrefix = "jcr:"
	return len(key) >= len(jcrPrefix) && key[:len(jcrPrefix)] == jcrPrefix
}
