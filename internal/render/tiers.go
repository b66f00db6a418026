package render

import (
	"encoding/json"
	"fmt"
)

// QualityTier is a discrete fidelity level. Tiers are ordered by severity:
// TierHigh is full fidelity, TierLow is the most aggressive throttling.
type QualityTier int

const (
	TierHigh QualityTier = iota
	TierMedium
	TierLow
)

// String returns the lowercase tier name used in logs, JSON and the database.
func (t QualityTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseQualityTier converts a tier name back to a QualityTier.
func ParseQualityTier(s string) (QualityTier, error) {
	switch s {
	case "high":
		return TierHigh, nil
	case "medium":
		return TierMedium, nil
	case "low":
		return TierLow, nil
	}
	return TierHigh, fmt.Errorf("unknown quality tier %q", s)
}

// MarshalJSON encodes the tier as its string name.
func (t QualityTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a tier from its string name.
func (t *QualityTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseQualityTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TierConfig holds the thresholds and per-tier budgets for the quality
// controller. Values are fixed at construction; the controller never writes
// back into its config, so one TierConfig may be shared by many readers.
type TierConfig struct {
	// DropFpsLow is the FPS below which High degrades to Medium. Medium
	// degrades to Low at DropFpsLow-5 (the wider band damps oscillation).
	DropFpsLow float64 `json:"drop_fps_low"`

	// RaiseFpsHigh is the FPS above which Medium recovers to High. Low
	// recovers to Medium at RaiseFpsHigh+2.
	RaiseFpsHigh float64 `json:"raise_fps_high"`

	// Marker caps for the degraded tiers. TierHigh is effectively unbounded.
	MarkerCapLow    int `json:"marker_cap_low"`
	MarkerCapMedium int `json:"marker_cap_medium"`

	// Polyline simplification tolerance in meters for the degraded tiers.
	// TierHigh uses 0 (no simplification).
	SimplifyEpsilonLow    float64 `json:"simplify_epsilon_low"`
	SimplifyEpsilonMedium float64 `json:"simplify_epsilon_medium"`

	// MarkerUpdateIntervalLowMs is the minimum spacing between marker
	// refreshes at TierLow. TierMedium uses a fixed 16ms, TierHigh zero.
	MarkerUpdateIntervalLowMs int `json:"marker_update_interval_low_ms"`

	// TileThrottleLowMs is the tile request throttle at TierLow.
	// TierMedium uses a fixed 30ms, TierHigh zero.
	TileThrottleLowMs int `json:"tile_throttle_low_ms"`
}

// StandardTierConfig returns the thresholds used on typical devices.
func StandardTierConfig() TierConfig {
	return TierConfig{
		DropFpsLow:                50,
		RaiseFpsHigh:              55,
		MarkerCapLow:              150,
		MarkerCapMedium:           400,
		SimplifyEpsilonLow:        12,
		SimplifyEpsilonMedium:     5,
		MarkerUpdateIntervalLowMs: 250,
		TileThrottleLowMs:         120,
	}
}

// LowEndTierConfig degrades earlier and throttles harder, for devices that
// cannot hold 60 FPS on a busy map.
func LowEndTierConfig() TierConfig {
	return TierConfig{
		DropFpsLow:                52,
		RaiseFpsHigh:              58,
		MarkerCapLow:              80,
		MarkerCapMedium:           250,
		SimplifyEpsilonLow:        20,
		SimplifyEpsilonMedium:     8,
		MarkerUpdateIntervalLowMs: 400,
		TileThrottleLowMs:         200,
	}
}

// HighEndTierConfig tolerates deeper dips before degrading.
func HighEndTierConfig() TierConfig {
	return TierConfig{
		DropFpsLow:                45,
		RaiseFpsHigh:              52,
		MarkerCapLow:              300,
		MarkerCapMedium:           800,
		SimplifyEpsilonLow:        8,
		SimplifyEpsilonMedium:     3,
		MarkerUpdateIntervalLowMs: 120,
		TileThrottleLowMs:         60,
	}
}

// Validate checks that the thresholds form a usable hysteresis band.
func (c TierConfig) Validate() error {
	if c.DropFpsLow <= 0 {
		return fmt.Errorf("drop_fps_low must be positive, got %v", c.DropFpsLow)
	}
	if c.RaiseFpsHigh <= c.DropFpsLow {
		return fmt.Errorf("raise_fps_high (%v) must exceed drop_fps_low (%v)", c.RaiseFpsHigh, c.DropFpsLow)
	}
	if c.MarkerCapLow <= 0 || c.MarkerCapMedium <= 0 {
		return fmt.Errorf("marker caps must be positive, got low=%d medium=%d", c.MarkerCapLow, c.MarkerCapMedium)
	}
	if c.SimplifyEpsilonLow < 0 || c.SimplifyEpsilonMedium < 0 {
		return fmt.Errorf("simplify epsilons must be non-negative")
	}
	return nil
}
