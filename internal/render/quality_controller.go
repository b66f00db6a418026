package render

import (
	"math"
	"sync"
	"time"

	"github.com/tilepulse/tilepulse/internal/monitoring"
)

// PoolLimits are the per-tier limits pushed to pool managers on a tier change.
type PoolLimits struct {
	MaxMarkers            int
	BitmapCacheMaxEntries int
	BitmapCacheMaxBytes   int64
}

// PoolManager is implemented by external pools (marker pool, bitmap cache)
// that the controller reconfigures on every tier change.
type PoolManager interface {
	Configure(limits PoolLimits)
}

// TierRecorder receives tier transitions for telemetry. The controller calls
// it after observers; errors are logged and otherwise ignored.
type TierRecorder interface {
	RecordTierChange(from, to QualityTier, fps float64, at time.Time) error
}

// QualityController runs the hysteresis state machine that maps the smoothed
// FPS estimate onto a quality tier, and derives all cost budgets from the
// active tier. The tier only ever moves one severity step per update:
//
//	High   -> Medium  when fps < DropFpsLow
//	Medium -> Low     when fps < DropFpsLow - 5
//	Medium -> High    when fps > RaiseFpsHigh
//	Low    -> Medium  when fps > RaiseFpsHigh + 2
//
// There is no direct High<->Low transition; ForceMode and Reset are the only
// entry points that bypass the machine.
type QualityController struct {
	mu sync.Mutex

	config          TierConfig
	tier            QualityTier
	tierChangeCount int

	pools     []PoolManager
	observers []func(tier QualityTier)
	recorder  TierRecorder
	lastFps   float64
}

// NewQualityController creates a controller at TierHigh with the given
// budgets. Pool managers registered here are configured immediately so they
// start with the High-tier limits.
func NewQualityController(config TierConfig, pools ...PoolManager) *QualityController {
	c := &QualityController{
		config:  config,
		tier:    TierHigh,
		pools:   pools,
		lastFps: 60.0,
	}
	c.configurePoolsLocked()
	return c
}

// SetRecorder attaches an optional telemetry recorder.
func (c *QualityController) SetRecorder(r TierRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// OnTierChanged registers an observer invoked after every tier transition,
// including forced ones.
func (c *QualityController) OnTierChanged(cb func(tier QualityTier)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, cb)
}

// RegisterPool adds a pool manager and immediately pushes the current limits.
func (c *QualityController) RegisterPool(p PoolManager) {
	c.mu.Lock()
	limits := c.limitsForTierLocked(c.tier)
	c.pools = append(c.pools, p)
	c.mu.Unlock()
	p.Configure(limits)
}

// UpdateFps feeds one FPS estimate through the state machine. Intended to be
// wired to FrameMonitor.OnFpsChanged.
func (c *QualityController) UpdateFps(fps float64) {
	c.mu.Lock()
	c.lastFps = fps

	next := c.tier
	switch c.tier {
	case TierHigh:
		if fps < c.config.DropFpsLow {
			next = TierMedium
		}
	case TierMedium:
		if fps < c.config.DropFpsLow-5 {
			next = TierLow
		} else if fps > c.config.RaiseFpsHigh {
			next = TierHigh
		}
	case TierLow:
		if fps > c.config.RaiseFpsHigh+2 {
			next = TierMedium
		}
	}

	if next == c.tier {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(next, fps)
}

// ForceMode sets the tier directly, bypassing the state machine. Pool
// reconfiguration, observers and telemetry still run.
func (c *QualityController) ForceMode(tier QualityTier) {
	c.mu.Lock()
	if tier == c.tier {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(tier, c.lastFps)
}

// Reset returns the controller to TierHigh, e.g. when a new map session
// starts. A no-op when already at TierHigh.
func (c *QualityController) Reset() {
	c.ForceMode(TierHigh)
}

// transitionLocked commits a tier change. Called with c.mu held; releases it.
func (c *QualityController) transitionLocked(next QualityTier, fps float64) {
	prev := c.tier
	c.tier = next
	c.tierChangeCount++
	c.configurePoolsLocked()

	observers := append([]func(QualityTier){}, c.observers...)
	recorder := c.recorder
	c.mu.Unlock()

	monitoring.Logf("quality: tier %s -> %s (fps=%.1f)", prev, next, fps)
	for _, cb := range observers {
		cb(next)
	}
	if recorder != nil {
		if err := recorder.RecordTierChange(prev, next, fps, time.Now()); err != nil {
			monitoring.Logf("quality: telemetry record failed: %v", err)
		}
	}
}

// configurePoolsLocked pushes the current tier's limits to all pools.
func (c *QualityController) configurePoolsLocked() {
	limits := c.limitsForTierLocked(c.tier)
	for _, p := range c.pools {
		p.Configure(limits)
	}
}

func (c *QualityController) limitsForTierLocked(tier QualityTier) PoolLimits {
	switch tier {
	case TierLow:
		return PoolLimits{
			MaxMarkers:            c.config.MarkerCapLow,
			BitmapCacheMaxEntries: 64,
			BitmapCacheMaxBytes:   8 << 20,
		}
	case TierMedium:
		return PoolLimits{
			MaxMarkers:            c.config.MarkerCapMedium,
			BitmapCacheMaxEntries: 192,
			BitmapCacheMaxBytes:   24 << 20,
		}
	default:
		return PoolLimits{
			MaxMarkers:            math.MaxInt32,
			BitmapCacheMaxEntries: 512,
			BitmapCacheMaxBytes:   64 << 20,
		}
	}
}

// CurrentTier returns the active tier.
func (c *QualityController) CurrentTier() QualityTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// TierChangeCount returns how many transitions have occurred this session.
func (c *QualityController) TierChangeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tierChangeCount
}

// MarkerCap returns the maximum marker count for the active tier.
// TierHigh is effectively unbounded.
func (c *QualityController) MarkerCap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.tier {
	case TierLow:
		return c.config.MarkerCapLow
	case TierMedium:
		return c.config.MarkerCapMedium
	default:
		return math.MaxInt32
	}
}

// PolySimplifyEpsilon returns the simplification tolerance in meters for the
// active tier. Zero at TierHigh means no simplification.
func (c *QualityController) PolySimplifyEpsilon() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.tier {
	case TierLow:
		return c.config.SimplifyEpsilonLow
	case TierMedium:
		return c.config.SimplifyEpsilonMedium
	default:
		return 0
	}
}

// MarkerUpdateInterval returns the minimum spacing between marker refreshes
// for the active tier.
func (c *QualityController) MarkerUpdateInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.tier {
	case TierLow:
		return time.Duration(c.config.MarkerUpdateIntervalLowMs) * time.Millisecond
	case TierMedium:
		return 16 * time.Millisecond
	default:
		return 0
	}
}

// TileThrottleMs returns the tile request throttle for the active tier.
func (c *QualityController) TileThrottleMs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.tier {
	case TierLow:
		return c.config.TileThrottleLowMs
	case TierMedium:
		return 30
	default:
		return 0
	}
}
