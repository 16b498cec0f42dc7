package semcache

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Isolation selects how Global-scoped entries are permitted (spec §4.6).
type Isolation string

const (
	IsolationShared  Isolation = "shared"
	IsolationPerUser Isolation = "per_user"
	IsolationPerOrg  Isolation = "per_org"
)

// SourceVersionMode controls how strictly invalidation is enforced.
type SourceVersionMode string

const (
	SourceVersionStrict SourceVersionMode = "strict"
	SourceVersionGrace  SourceVersionMode = "grace"
)

// Thresholds holds the per-layer cosine similarity cutoffs.
type Thresholds struct {
	L1 float64
	L2 float64
	L3 float64
}

func (t Thresholds) forLayer(l Layer) float64 {
	switch l {
	case LayerL1:
		return t.L1
	case LayerL2:
		return t.L2
	default:
		return t.L3
	}
}

// EvictionWeights weighs recency against frequency in the eviction rank
// formula of spec §4.5.
type EvictionWeights struct {
	Recency   float64
	Frequency float64
}

// Config is the immutable configuration record handed to the orchestrator
// at construction (spec §9: "pass an immutable configuration record... ;
// runtime changes are handled by constructing a new orchestrator"). Every
// field here corresponds to an entry in spec §6.4's configuration surface.
type Config struct {
	Dimension int

	SimilarityThresholds Thresholds
	TopK                 int

	MaxEntries        int
	LowWatermark      float64
	EvictionWeights   EvictionWeights
	EvictionBatchRate float64 // fraction of MaxEntries evicted per batch

	TTLSecondsDefault       int64
	TTLSweepIntervalSeconds int64

	Isolation Isolation

	SensitiveRulesVersion string

	SourceVersionMode  SourceVersionMode
	GraceSeconds       int64

	BruteForceCutoff int

	TombstoneRebuildRatio float64

	InvalidateMaxRetries    int
	InvalidateInitialBackoff time.Duration
	InvalidateMaxBackoff     time.Duration
}

// DefaultConfig mirrors the defaults named throughout spec.md.
func DefaultConfig() Config {
	return Config{
		Dimension:            1536,
		SimilarityThresholds: Thresholds{L1: 0.90, L2: 0.85, L3: 0.80},
		TopK:                 8,
		MaxEntries:           10000,
		LowWatermark:         0.9,
		EvictionWeights:      EvictionWeights{Recency: 0.7, Frequency: 0.3},
		EvictionBatchRate:    0.05,

		TTLSecondsDefault:       24 * 3600,
		TTLSweepIntervalSeconds: 3600,

		Isolation: IsolationShared,

		SensitiveRulesVersion: "v1",

		SourceVersionMode: SourceVersionStrict,
		GraceSeconds:      0,

		BruteForceCutoff: 2000,

		TombstoneRebuildRatio: 0.20,

		InvalidateMaxRetries:     5,
		InvalidateInitialBackoff: 200 * time.Millisecond,
		InvalidateMaxBackoff:     10 * time.Second,
	}
}

// LoadConfigFromViper reads the `cache.semantic.*` keys, overlaying
// DefaultConfig(), the same two-step (defaults, then overlay) pattern the
// teacher's own LoadConfigFromViper uses.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if d := viper.GetInt("cache.semantic.dimension"); d > 0 {
		cfg.Dimension = d
	}
	if v := viper.GetFloat64("cache.semantic.similarity_thresholds.l1"); v > 0 {
		cfg.SimilarityThresholds.L1 = v
	}
	if v := viper.GetFloat64("cache.semantic.similarity_thresholds.l2"); v > 0 {
		cfg.SimilarityThresholds.L2 = v
	}
	if v := viper.GetFloat64("cache.semantic.similarity_thresholds.l3"); v > 0 {
		cfg.SimilarityThresholds.L3 = v
	}
	if v := viper.GetInt("cache.semantic.top_k"); v > 0 {
		cfg.TopK = v
	}
	if v := viper.GetInt("cache.semantic.max_entries"); v > 0 {
		cfg.MaxEntries = v
	}
	if v := viper.GetInt64("cache.semantic.ttl_seconds_default"); v >= 0 {
		cfg.TTLSecondsDefault = v
	}
	if v := viper.GetInt64("cache.semantic.ttl_sweep_interval_seconds"); v > 0 {
		cfg.TTLSweepIntervalSeconds = v
	}
	if v := viper.GetString("cache.semantic.isolation"); v != "" {
		cfg.Isolation = Isolation(v)
	}
	if v := viper.GetString("cache.semantic.sensitive_rules_version"); v != "" {
		cfg.SensitiveRulesVersion = v
	}
	if v := viper.GetString("cache.semantic.source_version_mode"); v != "" {
		cfg.SourceVersionMode = SourceVersionMode(v)
	}
	if v := viper.GetInt64("cache.semantic.source_version_grace_seconds"); v > 0 {
		cfg.GraceSeconds = v
	}
	if v := viper.GetInt("cache.semantic.brute_force_cutoff"); v > 0 {
		cfg.BruteForceCutoff = v
	}
	if v := viper.GetFloat64("cache.semantic.eviction_weights.recency"); v > 0 {
		cfg.EvictionWeights.Recency = v
	}
	if v := viper.GetFloat64("cache.semantic.eviction_weights.frequency"); v > 0 {
		cfg.EvictionWeights.Frequency = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid semantic cache config: %w", err)
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be positive")
	}
	if c.LowWatermark <= 0 || c.LowWatermark > 1 {
		return fmt.Errorf("low_watermark must be in (0,1]")
	}
	switch c.Isolation {
	case IsolationShared, IsolationPerUser, IsolationPerOrg:
	default:
		return fmt.Errorf("invalid isolation: %s", c.Isolation)
	}
	switch c.SourceVersionMode {
	case SourceVersionStrict, SourceVersionGrace:
	default:
		return fmt.Errorf("invalid source_version_mode: %s", c.SourceVersionMode)
	}
	for _, t := range []float64{c.SimilarityThresholds.L1, c.SimilarityThresholds.L2, c.SimilarityThresholds.L3} {
		if t < 0 || t > 1 {
			return fmt.Errorf("similarity thresholds must be in [0,1]")
		}
	}
	return nil
}
