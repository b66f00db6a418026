package render

import (
	"math"
	"sync"
	"testing"
	"time"
)

// mockPool implements PoolManager for testing.
type mockPool struct {
	mu      sync.Mutex
	configs []PoolLimits
}

func (m *mockPool) Configure(limits PoolLimits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = append(m.configs, limits)
}

func (m *mockPool) lastLimits() PoolLimits {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.configs) == 0 {
		return PoolLimits{}
	}
	return m.configs[len(m.configs)-1]
}

func (m *mockPool) configureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.configs)
}

// mockRecorder implements TierRecorder for testing.
type mockRecorder struct {
	mu      sync.Mutex
	changes [][2]QualityTier
}

func (m *mockRecorder) RecordTierChange(from, to QualityTier, fps float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, [2]QualityTier{from, to})
	return nil
}

func TestControllerStartsHigh(t *testing.T) {
	c := NewQualityController(StandardTierConfig())
	if c.CurrentTier() != TierHigh {
		t.Errorf("initial tier = %s, want high", c.CurrentTier())
	}
	if c.TierChangeCount() != 0 {
		t.Errorf("initial change count = %d, want 0", c.TierChangeCount())
	}
}

// Standard config: drop below 50, Medium->Low below 45, raise above 55,
// Low->Medium above 57.
func TestControllerScenarioDegradation(t *testing.T) {
	c := NewQualityController(StandardTierConfig())

	fpsTrace := []float64{60, 60, 48, 47, 44}
	want := []QualityTier{TierHigh, TierHigh, TierMedium, TierMedium, TierLow}

	for i, fps := range fpsTrace {
		c.UpdateFps(fps)
		if got := c.CurrentTier(); got != want[i] {
			t.Errorf("after fps=%v tier = %s, want %s", fps, got, want[i])
		}
	}
}

func TestControllerNeverSkipsTier(t *testing.T) {
	c := NewQualityController(StandardTierConfig())
	var transitions [][2]QualityTier
	prev := c.CurrentTier()
	c.OnTierChanged(func(tier QualityTier) {
		transitions = append(transitions, [2]QualityTier{prev, tier})
		prev = tier
	})

	// Violent swings; the tier must still move one step at a time.
	for _, fps := range []float64{10, 5, 90, 120, 8, 3, 70, 60, 2} {
		c.UpdateFps(fps)
	}
	for _, tr := range transitions {
		diff := int(tr[1]) - int(tr[0])
		if diff != 1 && diff != -1 {
			t.Errorf("transition %s -> %s skips a tier", tr[0], tr[1])
		}
	}
}

func TestControllerHysteresisBand(t *testing.T) {
	c := NewQualityController(StandardTierConfig())

	c.UpdateFps(49) // High -> Medium
	if c.CurrentTier() != TierMedium {
		t.Fatalf("tier = %s, want medium", c.CurrentTier())
	}
	// Inside the band: neither 46 (>= drop-5) nor 54 (<= raise) moves it.
	c.UpdateFps(46)
	c.UpdateFps(54)
	if c.CurrentTier() != TierMedium {
		t.Errorf("tier left medium inside hysteresis band: %s", c.CurrentTier())
	}

	c.UpdateFps(44) // Medium -> Low
	if c.CurrentTier() != TierLow {
		t.Fatalf("tier = %s, want low", c.CurrentTier())
	}
	// Low needs raise+2, not just raise.
	c.UpdateFps(56)
	if c.CurrentTier() != TierLow {
		t.Errorf("low recovered below raise+2: %s", c.CurrentTier())
	}
	c.UpdateFps(58) // Low -> Medium
	if c.CurrentTier() != TierMedium {
		t.Errorf("tier = %s, want medium", c.CurrentTier())
	}
	c.UpdateFps(58) // Medium -> High
	if c.CurrentTier() != TierHigh {
		t.Errorf("tier = %s, want high", c.CurrentTier())
	}
}

func TestControllerForceModeAndReset(t *testing.T) {
	pool := &mockPool{}
	c := NewQualityController(StandardTierConfig(), pool)
	before := pool.configureCount()

	c.ForceMode(TierLow)
	if c.CurrentTier() != TierLow {
		t.Fatalf("ForceMode: tier = %s, want low", c.CurrentTier())
	}
	if pool.configureCount() != before+1 {
		t.Errorf("ForceMode did not reconfigure pools")
	}
	if got := pool.lastLimits().MaxMarkers; got != StandardTierConfig().MarkerCapLow {
		t.Errorf("low tier marker limit = %d, want %d", got, StandardTierConfig().MarkerCapLow)
	}

	c.Reset()
	if c.CurrentTier() != TierHigh {
		t.Errorf("Reset: tier = %s, want high", c.CurrentTier())
	}
	if c.TierChangeCount() != 2 {
		t.Errorf("change count = %d, want 2", c.TierChangeCount())
	}

	// Forcing the current tier is a no-op.
	count := c.TierChangeCount()
	c.ForceMode(TierHigh)
	if c.TierChangeCount() != count {
		t.Errorf("ForceMode to current tier counted a transition")
	}
}

func TestControllerBudgetsPureFunctionOfTier(t *testing.T) {
	cfg := StandardTierConfig()
	c := NewQualityController(cfg)

	type budgets struct {
		cap      int
		eps      float64
		interval time.Duration
		throttle int
	}
	read := func() budgets {
		return budgets{c.MarkerCap(), c.PolySimplifyEpsilon(), c.MarkerUpdateInterval(), c.TileThrottleMs()}
	}

	high := read()
	if high.cap != math.MaxInt32 || high.eps != 0 || high.interval != 0 || high.throttle != 0 {
		t.Errorf("high budgets = %+v, want unbounded/zero", high)
	}

	c.ForceMode(TierMedium)
	medium := read()
	if medium.cap != cfg.MarkerCapMedium || medium.eps != cfg.SimplifyEpsilonMedium {
		t.Errorf("medium budgets = %+v", medium)
	}
	if medium.interval != 16*time.Millisecond || medium.throttle != 30 {
		t.Errorf("medium interval/throttle = %v/%d, want 16ms/30", medium.interval, medium.throttle)
	}

	c.ForceMode(TierLow)
	low := read()
	if low.cap != cfg.MarkerCapLow || low.eps != cfg.SimplifyEpsilonLow {
		t.Errorf("low budgets = %+v", low)
	}
	if low.interval != time.Duration(cfg.MarkerUpdateIntervalLowMs)*time.Millisecond {
		t.Errorf("low interval = %v", low.interval)
	}
	if low.throttle != cfg.TileThrottleLowMs {
		t.Errorf("low throttle = %d", low.throttle)
	}

	// Same tier again after history elsewhere: identical values.
	c.ForceMode(TierMedium)
	c.ForceMode(TierLow)
	if read() != low {
		t.Errorf("budgets depend on history: %+v != %+v", read(), low)
	}
}

func TestControllerRecorderInvoked(t *testing.T) {
	rec := &mockRecorder{}
	c := NewQualityController(StandardTierConfig())
	c.SetRecorder(rec)

	c.UpdateFps(40) // High -> Medium
	c.UpdateFps(40) // Medium -> Low

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.changes) != 2 {
		t.Fatalf("recorded %d changes, want 2", len(rec.changes))
	}
	if rec.changes[0] != [2]QualityTier{TierHigh, TierMedium} {
		t.Errorf("first change = %v", rec.changes[0])
	}
	if rec.changes[1] != [2]QualityTier{TierMedium, TierLow} {
		t.Errorf("second change = %v", rec.changes[1])
	}
}

func TestControllerRegisterPoolPushesCurrentLimits(t *testing.T) {
	c := NewQualityController(StandardTierConfig())
	c.ForceMode(TierMedium)

	pool := &mockPool{}
	c.RegisterPool(pool)
	if pool.configureCount() != 1 {
		t.Fatalf("RegisterPool did not configure")
	}
	if got := pool.lastLimits().MaxMarkers; got != StandardTierConfig().MarkerCapMedium {
		t.Errorf("registered pool limits = %d, want medium cap", got)
	}
}
