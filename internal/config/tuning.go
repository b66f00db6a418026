// Package config loads the JSON tuning file for the adaptive quality core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tilepulse/tilepulse/internal/render"
)

// TuningConfig represents the tuning parameters for the adaptive quality
// core. Fields omitted from the JSON file retain their defaults, so partial
// configs are safe. The same schema is accepted for startup configuration
// and runtime updates.
type TuningConfig struct {
	// Tier thresholds and budgets
	DropFpsLow                *float64 `json:"drop_fps_low,omitempty"`
	RaiseFpsHigh              *float64 `json:"raise_fps_high,omitempty"`
	MarkerCapLow              *int     `json:"marker_cap_low,omitempty"`
	MarkerCapMedium           *int     `json:"marker_cap_medium,omitempty"`
	SimplifyEpsilonLow        *float64 `json:"simplify_epsilon_low,omitempty"`
	SimplifyEpsilonMedium     *float64 `json:"simplify_epsilon_medium,omitempty"`
	MarkerUpdateIntervalLowMs *int     `json:"marker_update_interval_low_ms,omitempty"`
	TileThrottleLowMs         *int     `json:"tile_throttle_low_ms,omitempty"`

	// Frame monitor params
	FpsWindowSeconds *int     `json:"fps_window_seconds,omitempty"`
	NotifyDeltaFps   *float64 `json:"notify_delta_fps,omitempty"`

	// Simplification params
	AsyncSimplifyThreshold *int `json:"async_simplify_threshold,omitempty"`

	// Idle scheduler params (duration strings like "5s")
	IdleLowDelay    *string `json:"idle_low_delay,omitempty"`
	IdleMediumDelay *string `json:"idle_medium_delay,omitempty"`
	IdleHighDelay   *string `json:"idle_high_delay,omitempty"`
	FrameBudget     *string `json:"frame_budget,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil; the
// Get* methods then supply every default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.DropFpsLow != nil && *c.DropFpsLow <= 0 {
		return fmt.Errorf("drop_fps_low must be positive, got %f", *c.DropFpsLow)
	}
	if c.DropFpsLow != nil && c.RaiseFpsHigh != nil && *c.RaiseFpsHigh <= *c.DropFpsLow {
		return fmt.Errorf("raise_fps_high (%f) must exceed drop_fps_low (%f)", *c.RaiseFpsHigh, *c.DropFpsLow)
	}
	if c.MarkerCapLow != nil && *c.MarkerCapLow <= 0 {
		return fmt.Errorf("marker_cap_low must be positive, got %d", *c.MarkerCapLow)
	}
	if c.MarkerCapMedium != nil && *c.MarkerCapMedium <= 0 {
		return fmt.Errorf("marker_cap_medium must be positive, got %d", *c.MarkerCapMedium)
	}
	if c.NotifyDeltaFps != nil && *c.NotifyDeltaFps < 0 {
		return fmt.Errorf("notify_delta_fps must be non-negative, got %f", *c.NotifyDeltaFps)
	}

	for name, v := range map[string]*string{
		"idle_low_delay":    c.IdleLowDelay,
		"idle_medium_delay": c.IdleMediumDelay,
		"idle_high_delay":   c.IdleHighDelay,
		"frame_budget":      c.FrameBudget,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

// GetDropFpsLow returns the drop_fps_low value or the default.
func (c *TuningConfig) GetDropFpsLow() float64 {
	if c.DropFpsLow == nil {
		return 50
	}
	return *c.DropFpsLow
}

// GetRaiseFpsHigh returns the raise_fps_high value or the default.
func (c *TuningConfig) GetRaiseFpsHigh() float64 {
	if c.RaiseFpsHigh == nil {
		return 55
	}
	return *c.RaiseFpsHigh
}

// GetMarkerCapLow returns the marker_cap_low value or the default.
func (c *TuningConfig) GetMarkerCapLow() int {
	if c.MarkerCapLow == nil {
		return 150
	}
	return *c.MarkerCapLow
}

// GetMarkerCapMedium returns the marker_cap_medium value or the default.
func (c *TuningConfig) GetMarkerCapMedium() int {
	if c.MarkerCapMedium == nil {
		return 400
	}
	return *c.MarkerCapMedium
}

// GetSimplifyEpsilonLow returns the simplify_epsilon_low value or the default.
func (c *TuningConfig) GetSimplifyEpsilonLow() float64 {
	if c.SimplifyEpsilonLow == nil {
		return 12
	}
	return *c.SimplifyEpsilonLow
}

// GetSimplifyEpsilonMedium returns the simplify_epsilon_medium value or the default.
func (c *TuningConfig) GetSimplifyEpsilonMedium() float64 {
	if c.SimplifyEpsilonMedium == nil {
		return 5
	}
	return *c.SimplifyEpsilonMedium
}

// GetMarkerUpdateIntervalLowMs returns the marker_update_interval_low_ms value or the default.
func (c *TuningConfig) GetMarkerUpdateIntervalLowMs() int {
	if c.MarkerUpdateIntervalLowMs == nil {
		return 250
	}
	return *c.MarkerUpdateIntervalLowMs
}

// GetTileThrottleLowMs returns the tile_throttle_low_ms value or the default.
func (c *TuningConfig) GetTileThrottleLowMs() int {
	if c.TileThrottleLowMs == nil {
		return 120
	}
	return *c.TileThrottleLowMs
}

// GetFpsWindowSeconds returns the fps_window_seconds value or the default.
func (c *TuningConfig) GetFpsWindowSeconds() int {
	if c.FpsWindowSeconds == nil {
		return 2
	}
	return *c.FpsWindowSeconds
}

// GetNotifyDeltaFps returns the notify_delta_fps value or the default.
func (c *TuningConfig) GetNotifyDeltaFps() float64 {
	if c.NotifyDeltaFps == nil {
		return 2.0
	}
	return *c.NotifyDeltaFps
}

// GetAsyncSimplifyThreshold returns the async_simplify_threshold value or the default.
func (c *TuningConfig) GetAsyncSimplifyThreshold() int {
	if c.AsyncSimplifyThreshold == nil {
		return 100
	}
	return *c.AsyncSimplifyThreshold
}

// GetFrameBudget parses and returns the frame_budget as a time.Duration.
func (c *TuningConfig) GetFrameBudget() time.Duration {
	return c.durationOrDefault(c.FrameBudget, 16*time.Millisecond)
}

// GetIdleDelays returns the idle scheduler delay overrides present in the
// config. Absent entries fall back to the scheduler defaults.
func (c *TuningConfig) GetIdleDelays() map[render.IdlePriority]time.Duration {
	delays := make(map[render.IdlePriority]time.Duration)
	if c.IdleLowDelay != nil {
		delays[render.IdleLow] = c.durationOrDefault(c.IdleLowDelay, 5*time.Second)
	}
	if c.IdleMediumDelay != nil {
		delays[render.IdleMedium] = c.durationOrDefault(c.IdleMediumDelay, 2*time.Second)
	}
	if c.IdleHighDelay != nil {
		delays[render.IdleHigh] = c.durationOrDefault(c.IdleHighDelay, time.Second)
	}
	return delays
}

func (c *TuningConfig) durationOrDefault(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}

// TierConfig materializes a render.TierConfig from the tuning values.
func (c *TuningConfig) TierConfig() render.TierConfig {
	return render.TierConfig{
		DropFpsLow:                c.GetDropFpsLow(),
		RaiseFpsHigh:              c.GetRaiseFpsHigh(),
		MarkerCapLow:              c.GetMarkerCapLow(),
		MarkerCapMedium:           c.GetMarkerCapMedium(),
		SimplifyEpsilonLow:        c.GetSimplifyEpsilonLow(),
		SimplifyEpsilonMedium:     c.GetSimplifyEpsilonMedium(),
		MarkerUpdateIntervalLowMs: c.GetMarkerUpdateIntervalLowMs(),
		TileThrottleLowMs:         c.GetTileThrottleLowMs(),
	}
}
