package render

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tilepulse/tilepulse/internal/monitoring"
)

// IdlePriority orders idle maintenance work. Higher values run first.
type IdlePriority int

const (
	IdleLow IdlePriority = iota
	IdleMedium
	IdleHigh
	IdleCritical
)

// String returns the priority name used in logs.
func (p IdlePriority) String() string {
	switch p {
	case IdleCritical:
		return "critical"
	case IdleHigh:
		return "high"
	case IdleMedium:
		return "medium"
	default:
		return "low"
	}
}

// IdleTask is one unit of deferred maintenance work. Tasks are immutable
// after enqueue and consumed exactly once.
type IdleTask struct {
	ID         string
	Name       string
	Priority   IdlePriority
	Action     func() error
	EnqueuedAt time.Time
}

// IdleStats is a snapshot of scheduler counters.
type IdleStats struct {
	Queued           int     `json:"queued"`
	Total            int     `json:"total"`
	Completed        int     `json:"completed"`
	DeferredOverruns int     `json:"deferred_overruns"`
	OverrunRate      float64 `json:"overrun_rate"`
	IsProcessing     bool    `json:"is_processing"`
}

// IdleSchedulerConfig configures an IdleScheduler. Zero values select the
// production defaults.
type IdleSchedulerConfig struct {
	// Delays maps each priority to the wait between a task becoming head of
	// the queue and its execution. Defaults: Critical 0, High 1s, Medium 2s,
	// Low 5s.
	Delays map[IdlePriority]time.Duration
	// FrameBudget is the execution time past which a completed task counts
	// as an overrun (default 16ms). Overrunning tasks are not aborted.
	FrameBudget time.Duration
	// HintInterval is the minimum spacing between memory-pressure hints
	// (default 2 minutes).
	HintInterval time.Duration
}

// IdleScheduler runs low-priority background tasks one at a time, in strict
// priority order, each after its priority tier's delay. Task failures and
// panics are logged and never stop the scheduler.
type IdleScheduler struct {
	mu sync.Mutex

	queue       []*IdleTask
	processing  bool
	closed      bool
	timer       *time.Timer
	delays      map[IdlePriority]time.Duration
	frameBudget time.Duration

	total     int
	completed int
	overruns  int

	hintInterval time.Duration
	lastHint     time.Time
}

// NewIdleScheduler creates a scheduler with the given configuration.
func NewIdleScheduler(cfg IdleSchedulerConfig) *IdleScheduler {
	delays := map[IdlePriority]time.Duration{
		IdleCritical: 0,
		IdleHigh:     1 * time.Second,
		IdleMedium:   2 * time.Second,
		IdleLow:      5 * time.Second,
	}
	for p, d := range cfg.Delays {
		delays[p] = d
	}
	frameBudget := cfg.FrameBudget
	if frameBudget <= 0 {
		frameBudget = 16 * time.Millisecond
	}
	hintInterval := cfg.HintInterval
	if hintInterval <= 0 {
		hintInterval = 2 * time.Minute
	}
	return &IdleScheduler{
		delays:       delays,
		frameBudget:  frameBudget,
		hintInterval: hintInterval,
	}
}

// Schedule enqueues an idle task. If nothing is executing, the highest
// priority head of the queue is armed to run after its tier's delay.
func (s *IdleScheduler) Schedule(action func() error, priority IdlePriority, name string) {
	if action == nil {
		return
	}
	task := &IdleTask{
		ID:         uuid.NewString(),
		Name:       name,
		Priority:   priority,
		Action:     action,
		EnqueuedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, task)
	s.total++
	// Stable sort keeps FIFO order within one priority tier.
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].Priority > s.queue[j].Priority
	})
	// Re-arm in case the new task outranks the one the timer was armed for.
	if !s.processing && s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armLocked()
	s.mu.Unlock()
}

// armLocked schedules the head task once its tier delay (measured from
// enqueue) has elapsed. Called with s.mu held; a no-op when a task is
// already executing or armed.
func (s *IdleScheduler) armLocked() {
	if s.processing || s.timer != nil || len(s.queue) == 0 {
		return
	}
	head := s.queue[0]
	wait := time.Until(head.EnqueuedAt.Add(s.delays[head.Priority]))
	if wait < 0 {
		wait = 0
	}
	s.timer = time.AfterFunc(wait, s.runNext)
}

// runNext dequeues and executes the head task, then arms the next one.
func (s *IdleScheduler) runNext() {
	s.mu.Lock()
	if s.closed || s.processing || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	// An enqueue may have re-sorted the queue between this timer firing and
	// the lock being taken. If the new head is not yet due, re-arm for it
	// instead of starting it before its tier delay.
	head := s.queue[0]
	if time.Now().Before(head.EnqueuedAt.Add(s.delays[head.Priority])) {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.armLocked()
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	task := head
	s.queue = s.queue[1:]
	s.processing = true
	s.mu.Unlock()

	start := time.Now()
	err := runIdleAction(task)
	elapsed := time.Since(start)

	if err != nil {
		monitoring.Logf("idle: task %q (%s) failed: %v", task.Name, task.Priority, err)
	}

	s.mu.Lock()
	s.processing = false
	s.completed++
	if elapsed > s.frameBudget {
		s.overruns++
		monitoring.Logf("idle: task %q overran frame budget: %v > %v", task.Name, elapsed, s.frameBudget)
	}
	if !s.closed {
		s.armLocked()
	}
	s.mu.Unlock()
}

// runIdleAction executes one task action, converting a panic into an error
// so a misbehaving task cannot stop the scheduler.
func runIdleAction(task *IdleTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in idle task: %v", r)
		}
	}()
	return task.Action()
}

// Stats returns a snapshot of the scheduler counters.
func (s *IdleScheduler) Stats() IdleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate := 0.0
	if s.completed > 0 {
		rate = float64(s.overruns) / float64(s.completed)
	}
	return IdleStats{
		Queued:           len(s.queue),
		Total:            s.total,
		Completed:        s.completed,
		DeferredOverruns: s.overruns,
		OverrunRate:      rate,
		IsProcessing:     s.processing,
	}
}

// Clear discards all not-yet-started tasks. A currently executing task is
// never interrupted.
func (s *IdleScheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close stops the scheduler. Pending tasks are discarded; a running task
// finishes on its own goroutine.
func (s *IdleScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// MaybeHint asks the runtime to return free memory to the OS, at most once
// per configured hint interval. Best effort; extra calls are dropped.
func (s *IdleScheduler) MaybeHint(reason string) {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.lastHint) < s.hintInterval {
		s.mu.Unlock()
		return
	}
	s.lastHint = now
	s.mu.Unlock()

	monitoring.Logf("idle: memory hint (%s)", reason)
	debug.FreeOSMemory()
}
