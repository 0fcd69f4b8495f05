package types

import "time"

// TraderWeights is the weighted blend used to rank entry candidates.
type TraderWeights struct {
	VolumeRatio   float64 `json:"volume_ratio" yaml:"volume_ratio"`
	Momentum      float64 `json:"momentum" yaml:"momentum"`
	Sentiment     float64 `json:"sentiment" yaml:"sentiment"`
	Institutional float64 `json:"institutional" yaml:"institutional"`
}

// TraderConfig is the auto-trader's tunable state. It lives in the store as
// a versioned record: each cycle reads it at start and writes it back with
// Version+1; a stale write loses (optimistic concurrency).
type TraderConfig struct {
	ID      string        `json:"id"`
	Version int64         `json:"version"`
	Weights TraderWeights `json:"weights"`
	// MinConfidence is the minimum blended score to open a position.
	MinConfidence float64 `json:"min_confidence"`
	// MinVolumeRatio gates entries on recent/baseline volume.
	MinVolumeRatio float64 `json:"min_volume_ratio"`
	// Optimized freezes further weight adaptation once the win rate hits the
	// configured ceiling.
	Optimized bool      `json:"optimized"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultTraderConfig returns the starting configuration before any
// adaptation has run.
func DefaultTraderConfig() TraderConfig {
	return TraderConfig{
		ID:      "default",
		Version: 1,
		Weights: TraderWeights{
			VolumeRatio:   0.35,
			Momentum:      0.30,
			Sentiment:     0.25,
			Institutional: 0.10,
		},
		MinConfidence:  60,
		MinVolumeRatio: 1.5,
		Optimized:      false,
		UpdatedAt:      time.Time{},
	}
}
