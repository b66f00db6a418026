package render

import (
	"sync"
	"time"

	"github.com/tilepulse/tilepulse/internal/monitoring"
)

// DeferredNotifier coalesces repeated "something changed" signals into at
// most one callback per quantum. The first signal arms a one-shot timer;
// further signals inside the quantum are absorbed.
type DeferredNotifier struct {
	mu       sync.Mutex
	quantum  time.Duration
	callback func()
	timer    *time.Timer
	pending  bool
	closed   bool
	fired    int
	absorbed int
}

// NewDeferredNotifier creates a notifier delivering cb at most once per
// quantum (default 16ms, one frame).
func NewDeferredNotifier(quantum time.Duration, cb func()) *DeferredNotifier {
	if quantum <= 0 {
		quantum = 16 * time.Millisecond
	}
	return &DeferredNotifier{
		quantum:  quantum,
		callback: cb,
	}
}

// Signal requests a notification. Safe to call from any goroutine at any
// rate; delivery is coalesced.
func (n *DeferredNotifier) Signal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if n.pending {
		n.absorbed++
		return
	}
	n.pending = true
	n.timer = time.AfterFunc(n.quantum, n.fire)
}

func (n *DeferredNotifier) fire() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.pending = false
	n.fired++
	cb := n.callback
	n.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// FiredCount returns how many notifications have been delivered.
func (n *DeferredNotifier) FiredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fired
}

// AbsorbedCount returns how many signals were coalesced away.
func (n *DeferredNotifier) AbsorbedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.absorbed
}

// Close cancels any armed timer. Signals after Close are dropped.
func (n *DeferredNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.pending = false
}

// ThrottledTaskQueue serializes async update tasks with a fixed minimum
// spacing between consecutive starts, so bursts of rebuild work do not
// overlap or starve the frame loop.
type ThrottledTaskQueue struct {
	mu        sync.Mutex
	spacing   time.Duration
	queue     []func()
	running   bool
	closed    bool
	lastStart time.Time
}

// NewThrottledTaskQueue creates a queue with the given minimum spacing
// between task starts (default 100ms).
func NewThrottledTaskQueue(spacing time.Duration) *ThrottledTaskQueue {
	if spacing <= 0 {
		spacing = 100 * time.Millisecond
	}
	return &ThrottledTaskQueue{spacing: spacing}
}

// Submit enqueues a task. Tasks run one at a time in submission order, each
// starting no sooner than the spacing after the previous start.
func (q *ThrottledTaskQueue) Submit(task func()) {
	if task == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.queue = append(q.queue, task)
	if !q.running {
		q.running = true
		go q.drain()
	}
}

func (q *ThrottledTaskQueue) drain() {
	for {
		q.mu.Lock()
		if q.closed || len(q.queue) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		wait := q.spacing - time.Since(q.lastStart)
		if wait > 0 {
			q.mu.Unlock()
			time.Sleep(wait)
			continue
		}
		task := q.queue[0]
		q.queue = q.queue[1:]
		q.lastStart = time.Now()
		q.mu.Unlock()

		runThrottledTask(task)
	}
}

// runThrottledTask isolates panics so one bad task cannot kill the drain
// goroutine.
func runThrottledTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("throttled queue: task panic: %v", r)
		}
	}()
	task()
}

// Pending returns how many tasks are waiting to start.
func (q *ThrottledTaskQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Close discards queued tasks; a running task finishes.
func (q *ThrottledTaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.queue = nil
}
