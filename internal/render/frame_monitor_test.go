package render

import (
	"reflect"
	"sync"
	"testing"
)

// mockTimingSource implements FrameTimingSource for testing.
type mockTimingSource struct {
	mu        sync.Mutex
	callbacks []func([]FrameSample)
}

func (m *mockTimingSource) AddTimingsCallback(cb func([]FrameSample)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func (m *mockTimingSource) RemoveTimingsCallback(cb func([]FrameSample)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := reflect.ValueOf(cb).Pointer()
	for i, existing := range m.callbacks {
		if reflect.ValueOf(existing).Pointer() == target {
			m.callbacks = append(m.callbacks[:i], m.callbacks[i+1:]...)
			return
		}
	}
}

func (m *mockTimingSource) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callbacks)
}

// sampleAtFps builds a FrameSample whose build+raster time yields the given rate.
func sampleAtFps(fps float64) FrameSample {
	micros := int64(1e6 / fps)
	return FrameSample{BuildMicros: micros / 2, RasterMicros: micros - micros/2}
}

func TestFrameMonitorDefaultFps(t *testing.T) {
	m := NewFrameMonitor(FrameMonitorConfig{})
	if got := m.CurrentFPS(); got != 60.0 {
		t.Errorf("default fps = %v, want 60.0", got)
	}
	if m.WindowSize() != 0 {
		t.Errorf("window should start empty")
	}
}

func TestFrameMonitorComputesFps(t *testing.T) {
	m := NewFrameMonitor(FrameMonitorConfig{})
	batch := make([]FrameSample, 30)
	for i := range batch {
		batch[i] = sampleAtFps(50)
	}
	m.RecordSamples(batch)

	got := m.CurrentFPS()
	if got < 49 || got > 51 {
		t.Errorf("fps = %v, want ~50", got)
	}
}

func TestFrameMonitorClampsAtMaxRate(t *testing.T) {
	m := NewFrameMonitor(FrameMonitorConfig{})
	m.RecordSamples([]FrameSample{{BuildMicros: 100, RasterMicros: 100}})
	if got := m.CurrentFPS(); got != 120 {
		t.Errorf("fps = %v, want clamp at 120", got)
	}
}

func TestFrameMonitorEmptyBatchNoNotification(t *testing.T) {
	m := NewFrameMonitor(FrameMonitorConfig{})
	notified := 0
	m.OnFpsChanged(func(float64) { notified++ })
	m.RecordSamples(nil)
	m.RecordSamples([]FrameSample{})
	if notified != 0 {
		t.Errorf("empty batches must not notify, got %d notifications", notified)
	}
}

func TestFrameMonitorNotifyThreshold(t *testing.T) {
	m := NewFrameMonitor(FrameMonitorConfig{WindowSeconds: 1, MaxFrameRate: 10})
	var reported []float64
	m.OnFpsChanged(func(fps float64) { reported = append(reported, fps) })

	// Last reported starts at 60; feeding ~59 fps is within the 2.0 delta.
	for i := 0; i < 10; i++ {
		m.RecordSamples([]FrameSample{sampleAtFps(59)})
	}
	if len(reported) != 0 {
		t.Fatalf("sub-threshold change notified: %v", reported)
	}

	// A drop to ~40 crosses the threshold once; later identical values stay
	// within the delta of the newly reported estimate.
	for i := 0; i < 20; i++ {
		m.RecordSamples([]FrameSample{sampleAtFps(40)})
	}
	if len(reported) == 0 {
		t.Fatal("threshold crossing did not notify")
	}
	for i := 1; i < len(reported); i++ {
		if abs(reported[i]-reported[i-1]) < 2.0 {
			t.Errorf("consecutive reports closer than threshold: %v then %v", reported[i-1], reported[i])
		}
	}
}

func TestFrameMonitorWindowEviction(t *testing.T) {
	m := NewFrameMonitor(FrameMonitorConfig{WindowSeconds: 1, MaxFrameRate: 10})
	// Fill beyond the 10 sample capacity with slow frames, then flood with
	// fast ones; the estimate must converge to the recent rate.
	for i := 0; i < 10; i++ {
		m.RecordSamples([]FrameSample{sampleAtFps(20)})
	}
	for i := 0; i < 10; i++ {
		m.RecordSamples([]FrameSample{sampleAtFps(60)})
	}
	if m.WindowSize() != 10 {
		t.Errorf("window size = %d, want capacity 10", m.WindowSize())
	}
	got := m.CurrentFPS()
	if got < 58 || got > 62 {
		t.Errorf("fps after eviction = %v, want ~60", got)
	}
}

func TestFrameMonitorStartStopIdempotent(t *testing.T) {
	source := &mockTimingSource{}
	m := NewFrameMonitor(FrameMonitorConfig{Source: source})

	m.Start()
	m.Start()
	if source.count() != 1 {
		t.Errorf("double Start subscribed %d times, want 1", source.count())
	}
	if !m.IsActive() {
		t.Error("monitor should be active after Start")
	}

	m.Stop()
	m.Stop()
	if source.count() != 0 {
		t.Errorf("Stop left %d subscriptions", source.count())
	}
	if m.IsActive() {
		t.Error("monitor should be inactive after Stop")
	}
}

func TestFrameMonitorSummary(t *testing.T) {
	m := NewFrameMonitor(FrameMonitorConfig{})
	if s := m.Summary(); s.Samples != 0 {
		t.Errorf("empty summary samples = %d, want 0", s.Samples)
	}

	batch := make([]FrameSample, 60)
	for i := range batch {
		batch[i] = sampleAtFps(50)
	}
	m.RecordSamples(batch)

	s := m.Summary()
	if s.Samples != 60 {
		t.Errorf("summary samples = %d, want 60", s.Samples)
	}
	if s.Mean < 49 || s.Mean > 51 {
		t.Errorf("summary mean = %v, want ~50", s.Mean)
	}
	if s.Min > s.P50 || s.P50 > s.P95 {
		t.Errorf("quantiles out of order: min=%v p50=%v p95=%v", s.Min, s.P50, s.P95)
	}
}
