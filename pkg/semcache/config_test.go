package semcache

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.90, cfg.SimilarityThresholds.L1)
	assert.Equal(t, 0.85, cfg.SimilarityThresholds.L2)
	assert.Equal(t, 0.80, cfg.SimilarityThresholds.L3)
	assert.Equal(t, 2000, cfg.BruteForceCutoff)
}

func TestConfig_Validate_RejectsBadValues(t *testing.T) {
	bad := DefaultConfig()
	bad.Dimension = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxEntries = -1
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.LowWatermark = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Isolation = "bogus"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.SourceVersionMode = "bogus"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.SimilarityThresholds.L2 = 1.1
	assert.Error(t, bad.Validate())
}

func TestLoadConfigFromViper_OverlaysDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("cache.semantic.dimension", 768)
	viper.Set("cache.semantic.max_entries", 500)
	viper.Set("cache.semantic.isolation", "per_user")

	cfg, err := LoadConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Dimension)
	assert.Equal(t, 500, cfg.MaxEntries)
	assert.Equal(t, IsolationPerUser, cfg.Isolation)

	// untouched keys keep DefaultConfig's values
	assert.Equal(t, 0.90, cfg.SimilarityThresholds.L1)
	assert.Equal(t, 2000, cfg.BruteForceCutoff)
}

func TestLoadConfigFromViper_RejectsInvalidOverlay(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("cache.semantic.isolation", "not_a_real_mode")
	_, err := LoadConfigFromViper()
	assert.Error(t, err)
}

func TestThresholds_ForLayer(t *testing.T) {
	th := Thresholds{L1: 0.9, L2: 0.8, L3: 0.7}
	assert.Equal(t, 0.9, th.forLayer(LayerL1))
	assert.Equal(t, 0.8, th.forLayer(LayerL2))
	assert.Equal(t, 0.7, th.forLayer(LayerL3))
}
