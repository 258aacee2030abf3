package clusterview

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_AbsentBlobKeepsDefaults(t *testing.T) {
	defaults := Config{
		ClusterInstancesPath: "/discovery/cluster/instances",
		SyncTokenEnabled:     true,
	}
	cfg, err := LoadConfig(newMapSession(), "/discovery/cluster/settings", defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, cfg)
}

func TestLoadConfig_OverlaysOnlyPresentKeys(t *testing.T) {
	defaults := Config{
		ClusterInstancesPath:      "/discovery/cluster/instances",
		SyncTokenEnabled:          true,
		SuppressionTimeoutSeconds: 120,
	}
	sess := newMapSession()
	sess.put("/discovery/cluster/settings", map[string]interface{}{
		"syncTokenEnabled":                  false,
		"suppressPartiallyStartedInstances": true,
	})

	cfg, err := LoadConfig(sess, "/discovery/cluster/settings", defaults)
	require.NoError(t, err)
	require.Equal(t, "/discovery/cluster/instances", cfg.ClusterInstancesPath)
	require.False(t, cfg.SyncTokenEnabled)
	require.True(t, cfg.SuppressPartiallyStartedInstances)
	require.Equal(t, 120, cfg.SuppressionTimeoutSeconds)
}

func TestLoadConfig_ExplicitZeroOverridesDefault(t *testing.T) {
	defaults := Config{SuppressionTimeoutSeconds: 120}
	sess := newMapSession()
	sess.put("/discovery/cluster/settings", map[string]interface{}{
		"suppressionTimeoutSeconds": 0,
	})

	cfg, err := LoadConfig(sess, "/discovery/cluster/settings", defaults)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.SuppressionTimeoutSeconds)
}
