package clusterview

import "github.com/couchbase/clusterview/repo"

// configDTO is the wire shape of the optional settings blob. Pointer
// fields distinguish "key absent, keep the default" from an explicit
// false/zero.
type configDTO struct {
	ClusterInstancesPath              *string `json:"clusterInstancesPath"`
	SyncTokenEnabled                  *bool   `json:"syncTokenEnabled"`
	SuppressPartiallyStartedInstances *bool   `json:"suppressPartiallyStartedInstances"`
	SuppressionTimeoutSeconds         *int    `json:"suppressionTimeoutSeconds"`
	InvertLeaderElectionPrefixOrder   *bool   `json:"invertLeaderElectionPrefixOrder"`
}

// LoadConfig reads the settings blob stored at path and overlays it onto
// defaults, the same read-then-update flow the settings manager uses for
// other metakv-backed settings. An absent blob returns defaults
// unchanged; a host embedding the engine as a library can skip this and
// construct Config directly.
func LoadConfig(sess repo.Session, path string, defaults Config) (Config, error) {
	var dto configDTO
	found, _, err := sess.GetJSON(path, &dto)
	if err != nil {
		return Config{}, err
	}
	if !found {
		return defaults, nil
	}

	cfg := defaults
	if dto.ClusterInstancesPath != nil {
		cfg.ClusterInstancesPath = *dto.ClusterInstancesPath
	}
	if dto.SyncTokenEnabled != nil {
		cfg.SyncTokenEnabled = *dto.SyncTokenEnabled
	}
	if dto.SuppressPartiallyStartedInstances != nil {
		cfg.SuppressPartiallyStartedInstances = *dto.SuppressPartiallyStartedInstances
	}
	if dto.SuppressionTimeoutSeconds != nil {
		cfg.SuppressionTimeoutSeconds = *dto.SuppressionTimeoutSeconds
	}
	if dto.InvertLeaderElectionPrefixOrder != nil {
		cfg.InvertLeaderElectionPrefixOrder = *dto.InvertLeaderElectionPrefixOrder
	}
	return cfg, nil
}
