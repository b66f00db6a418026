package render

import (
	"fmt"
	"time"

	"github.com/tilepulse/tilepulse/internal/monitoring"
)

// SimplifyExecutor runs a simplification request somewhere other than the
// caller's goroutine. Implementations receive immutable input and return a
// fresh output slice; they share no state with the caller. A returned error
// makes the Simplifier fall back to the synchronous path.
type SimplifyExecutor interface {
	Simplify(points []LatLng, epsilonMeters float64) ([]LatLng, error)
}

// InlineExecutor runs requests synchronously on the calling goroutine. It is
// the executor of choice for tests and for hosts without spare cores.
type InlineExecutor struct{}

// Simplify runs the algorithm inline. It never fails.
func (InlineExecutor) Simplify(points []LatLng, epsilonMeters float64) ([]LatLng, error) {
	return Simplify(points, epsilonMeters), nil
}

type simplifyRequest struct {
	points  []LatLng
	epsilon float64
	reply   chan []LatLng
}

// AsyncExecutor hands requests to a dedicated worker goroutine via message
// passing. The worker owns no shared state; a full queue or a closed
// executor yields an error so callers can run synchronously instead.
type AsyncExecutor struct {
	requests chan simplifyRequest
	quit     chan struct{}
	timeout  time.Duration
}

// NewAsyncExecutor starts the worker goroutine. queueDepth bounds how many
// requests may be in flight; timeout bounds how long a caller waits for a
// reply before falling back (default 2s).
func NewAsyncExecutor(queueDepth int, timeout time.Duration) *AsyncExecutor {
	if queueDepth <= 0 {
		queueDepth = 8
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	e := &AsyncExecutor{
		requests: make(chan simplifyRequest, queueDepth),
		quit:     make(chan struct{}),
		timeout:  timeout,
	}
	go e.run()
	return e
}

func (e *AsyncExecutor) run() {
	for {
		select {
		case req := <-e.requests:
			req.reply <- Simplify(req.points, req.epsilon)
		case <-e.quit:
			return
		}
	}
}

// Simplify submits a request and waits for the reply. Errors (queue full,
// timeout, closed executor) are expected to be handled by falling back to
// the synchronous path; they are logged here and never fatal.
func (e *AsyncExecutor) Simplify(points []LatLng, epsilonMeters float64) ([]LatLng, error) {
	req := simplifyRequest{
		points:  points,
		epsilon: epsilonMeters,
		reply:   make(chan []LatLng, 1),
	}

	select {
	case e.requests <- req:
	case <-e.quit:
		return nil, fmt.Errorf("simplify executor closed")
	default:
		monitoring.Logf("simplify: worker queue full, running synchronously")
		return nil, fmt.Errorf("simplify worker queue full")
	}

	select {
	case result := <-req.reply:
		return result, nil
	case <-time.After(e.timeout):
		monitoring.Logf("simplify: worker timed out after %v, running synchronously", e.timeout)
		return nil, fmt.Errorf("simplify worker timed out")
	case <-e.quit:
		return nil, fmt.Errorf("simplify executor closed")
	}
}

// Close stops the worker goroutine. Safe to call once; in-flight requests
// fall back synchronously.
func (e *AsyncExecutor) Close() {
	close(e.quit)
}

// Verify at compile time that both executors satisfy SimplifyExecutor.
var (
	_ SimplifyExecutor = InlineExecutor{}
	_ SimplifyExecutor = (*AsyncExecutor)(nil)
)
