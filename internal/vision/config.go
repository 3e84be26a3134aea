package vision

import (
	"fmt"
	"math"
	"time"
)

// Config is the tuning surface of the identity engine.
type Config struct {
	IoUWeight           float64
	AppearanceWeight    float64
	MatchCostCutoff     float64 // pairs costing more are never matched; <= 0 disables the gate
	Matcher             string  // "hungarian" or "greedy"
	EMAMomentum         float32
	TTL                 time.Duration // 0 disables expiry
	AcceptanceThreshold float32
	EmbeddingDim        int
	CompactAfterTTLs    int // 0 disables bank compaction
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		IoUWeight:           0.4,
		AppearanceWeight:    0.6,
		MatchCostCutoff:     0.8,
		Matcher:             MatcherHungarian,
		EMAMomentum:         0.9,
		TTL:                 60 * time.Second,
		AcceptanceThreshold: 0.7,
		EmbeddingDim:        256,
		CompactAfterTTLs:    0,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"iou_weight":           c.IoUWeight,
		"appearance_weight":    c.AppearanceWeight,
		"match_cost_cutoff":    c.MatchCostCutoff,
		"ema_momentum":         float64(c.EMAMomentum),
		"acceptance_threshold": float64(c.AcceptanceThreshold),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite number, got %v", ErrInvalidConfig, name, v)
		}
	}

	switch {
	case c.IoUWeight < 0 || c.AppearanceWeight < 0:
		return fmt.Errorf("%w: cost weights must be non-negative (iou=%v appearance=%v)",
			ErrInvalidConfig, c.IoUWeight, c.AppearanceWeight)
	case c.IoUWeight == 0 && c.AppearanceWeight == 0:
		return fmt.Errorf("%w: at least one cost weight must be positive", ErrInvalidConfig)
	case c.EmbeddingDim <= 0:
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrInvalidConfig, c.EmbeddingDim)
	case c.EMAMomentum < 0 || c.EMAMomentum > 1:
		return fmt.Errorf("%w: ema momentum must be in [0,1], got %v", ErrInvalidConfig, c.EMAMomentum)
	case c.TTL < 0:
		return fmt.Errorf("%w: ttl must not be negative, got %s", ErrInvalidConfig, c.TTL)
	case c.AcceptanceThreshold < -1 || c.AcceptanceThreshold > 1:
		return fmt.Errorf("%w: acceptance threshold must be in [-1,1], got %v", ErrInvalidConfig, c.AcceptanceThreshold)
	case c.CompactAfterTTLs < 0:
		return fmt.Errorf("%w: compact_after_ttls must not be negative", ErrInvalidConfig)
	}
	return nil
}
