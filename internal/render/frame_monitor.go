// Package render implements the frame-budget-aware adaptive quality core for
// a live map surface: frame timing aggregation, tier selection, spatial
// decimation, polyline simplification and idle maintenance scheduling.
package render

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// FrameSample is one frame's timing as reported by the host frame pipeline.
// Samples are transient; they only live inside the monitor's window.
type FrameSample struct {
	BuildMicros  int64
	RasterMicros int64
}

// FrameTimingSource delivers per-frame timing batches. The monitor subscribes
// on Start and unsubscribes on Stop; the host's frame pipeline implements it.
type FrameTimingSource interface {
	AddTimingsCallback(cb func([]FrameSample))
	RemoveTimingsCallback(cb func([]FrameSample))
}

// FrameMonitorConfig configures a FrameMonitor. Zero values select defaults.
type FrameMonitorConfig struct {
	// WindowSeconds is the length of the rolling sample window (default 2).
	WindowSeconds int
	// MaxFrameRate is the assumed ceiling used both to size the window and
	// to clamp the FPS estimate (default 120).
	MaxFrameRate int
	// NotifyDeltaFps is the minimum change against the last reported value
	// before observers are notified again (default 2.0).
	NotifyDeltaFps float64
	// Source is optional; when nil the host calls RecordSamples directly.
	Source FrameTimingSource
}

// FrameMonitor converts a stream of FrameSample batches into a smoothed FPS
// estimate over a bounded rolling window. It never blocks and never errors;
// an empty window simply produces no notification.
type FrameMonitor struct {
	mu sync.Mutex

	samples  []FrameSample
	head     int
	size     int
	capacity int

	currentFps   float64
	lastReported float64
	notifyDelta  float64
	maxFrameRate float64

	active    bool
	source    FrameTimingSource
	sourceCb  func([]FrameSample)
	observers []func(fps float64)
}

// NewFrameMonitor creates a monitor with the given configuration.
func NewFrameMonitor(cfg FrameMonitorConfig) *FrameMonitor {
	windowSeconds := cfg.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 2
	}
	maxRate := cfg.MaxFrameRate
	if maxRate <= 0 {
		maxRate = 120
	}
	notifyDelta := cfg.NotifyDeltaFps
	if notifyDelta <= 0 {
		notifyDelta = 2.0
	}

	capacity := windowSeconds * maxRate
	return &FrameMonitor{
		samples:      make([]FrameSample, capacity),
		capacity:     capacity,
		currentFps:   60.0,
		lastReported: 60.0,
		notifyDelta:  notifyDelta,
		maxFrameRate: float64(maxRate),
		source:       cfg.Source,
	}
}

// OnFpsChanged registers an observer invoked whenever the smoothed estimate
// moves by at least the configured notify delta. Observers run on the
// recording goroutine and must return quickly.
func (m *FrameMonitor) OnFpsChanged(cb func(fps float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, cb)
}

// Start subscribes to the timing source. Calling Start twice is a no-op.
func (m *FrameMonitor) Start() {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	source := m.source
	if source != nil && m.sourceCb == nil {
		m.sourceCb = func(batch []FrameSample) { m.RecordSamples(batch) }
	}
	cb := m.sourceCb
	m.mu.Unlock()

	if source != nil {
		source.AddTimingsCallback(cb)
	}
}

// Stop unsubscribes from the timing source. Calling Stop twice is a no-op.
// The window and last estimate are retained so a restart resumes smoothly.
func (m *FrameMonitor) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	source := m.source
	cb := m.sourceCb
	m.mu.Unlock()

	if source != nil && cb != nil {
		source.RemoveTimingsCallback(cb)
	}
}

// IsActive reports whether the monitor is currently subscribed.
func (m *FrameMonitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// RecordSamples appends a batch to the rolling window, evicting the oldest
// samples past capacity, recomputes the FPS estimate and notifies observers
// when the estimate moved by at least the notify delta.
func (m *FrameMonitor) RecordSamples(batch []FrameSample) {
	if len(batch) == 0 {
		return
	}

	m.mu.Lock()
	for _, s := range batch {
		m.samples[m.head] = s
		m.head = (m.head + 1) % m.capacity
		if m.size < m.capacity {
			m.size++
		}
	}

	var totalMicros int64
	for i := 0; i < m.size; i++ {
		idx := (m.head - m.size + i + m.capacity) % m.capacity
		totalMicros += m.samples[idx].BuildMicros + m.samples[idx].RasterMicros
	}
	if totalMicros <= 0 {
		m.mu.Unlock()
		return
	}

	avgMicros := float64(totalMicros) / float64(m.size)
	fps := 1e6 / avgMicros
	if fps > m.maxFrameRate {
		fps = m.maxFrameRate
	}
	m.currentFps = fps

	var notify []func(float64)
	if abs(fps-m.lastReported) >= m.notifyDelta {
		m.lastReported = fps
		notify = append(notify, m.observers...)
	}
	m.mu.Unlock()

	for _, cb := range notify {
		cb(fps)
	}
}

// CurrentFPS returns the last computed estimate (60.0 before any samples).
func (m *FrameMonitor) CurrentFPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentFps
}

// WindowSize returns how many samples the window currently holds.
func (m *FrameMonitor) WindowSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// FpsSummary aggregates the distribution of instantaneous per-frame rates
// currently held in the window.
type FpsSummary struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	Min     float64 `json:"min"`
}

// Summary computes distribution statistics over the window. An empty window
// yields a zero summary.
func (m *FrameMonitor) Summary() FpsSummary {
	m.mu.Lock()
	rates := make([]float64, 0, m.size)
	for i := 0; i < m.size; i++ {
		idx := (m.head - m.size + i + m.capacity) % m.capacity
		micros := m.samples[idx].BuildMicros + m.samples[idx].RasterMicros
		if micros <= 0 {
			continue
		}
		rate := 1e6 / float64(micros)
		if rate > m.maxFrameRate {
			rate = m.maxFrameRate
		}
		rates = append(rates, rate)
	}
	m.mu.Unlock()

	if len(rates) == 0 {
		return FpsSummary{}
	}

	sort.Float64s(rates)
	mean, std := stat.MeanStdDev(rates, nil)
	if len(rates) < 2 {
		std = 0
	}
	return FpsSummary{
		Samples: len(rates),
		Mean:    mean,
		StdDev:  std,
		P50:     stat.Quantile(0.5, stat.Empirical, rates, nil),
		P95:     stat.Quantile(0.95, stat.Empirical, rates, nil),
		Min:     rates[0],
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
