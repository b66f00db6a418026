package render

import (
	"math"
	"sync"
)

// Simplify reduces a polyline with the Douglas-Peucker algorithm at a
// tolerance of epsilonMeters. The result is a sub-sequence of the input with
// the first and last point always retained; re-simplifying an already
// simplified line at the same epsilon returns it unchanged. Inputs of two or
// fewer points, or a non-positive epsilon, are returned as-is.
func Simplify(points []LatLng, epsilonMeters float64) []LatLng {
	if len(points) <= 2 || epsilonMeters <= 0 {
		return points
	}

	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true
	douglasPeucker(points, 0, len(points)-1, epsilonMeters, keep)

	result := make([]LatLng, 0, len(points))
	for i, k := range keep {
		if k {
			result = append(result, points[i])
		}
	}
	return result
}

// douglasPeucker marks the points to keep within points[first..last] using
// index-range recursion over the shared slice; no sub-sequences are copied.
func douglasPeucker(points []LatLng, first, last int, epsilon float64, keep []bool) {
	if last-first < 2 {
		return
	}

	maxDist := 0.0
	maxIdx := -1
	for i := first + 1; i < last; i++ {
		d := perpendicularDistanceMeters(points[i], points[first], points[last])
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxIdx < 0 || maxDist <= epsilon {
		// Everything between the endpoints collapses onto the chord.
		return
	}

	keep[maxIdx] = true
	douglasPeucker(points, first, maxIdx, epsilon, keep)
	douglasPeucker(points, maxIdx, last, epsilon, keep)
}

// perpendicularDistanceMeters is the distance from p to the chord start-end,
// computed via Heron's formula over the three geodesic distances. Coincident
// endpoints degrade to the plain point distance.
func perpendicularDistanceMeters(p, start, end LatLng) float64 {
	base := HaversineMeters(start, end)
	d1 := HaversineMeters(start, p)
	if base == 0 {
		return d1
	}
	d2 := HaversineMeters(end, p)

	s := (base + d1 + d2) / 2
	areaSq := s * (s - base) * (s - d1) * (s - d2)
	if areaSq <= 0 {
		// Collinear (or numerically degenerate): no perpendicular offset.
		return 0
	}
	return 2 * math.Sqrt(areaSq) / base
}

// Simplifier runs polyline simplification, optionally offloading large
// inputs to an asynchronous executor. The algorithm itself is agnostic of
// where it runs; any executor failure falls back to the synchronous path, so
// callers never observe an error.
type Simplifier struct {
	executor  SimplifyExecutor
	threshold int
}

// SimplifierConfig configures a Simplifier. Zero values select defaults.
type SimplifierConfig struct {
	// AsyncThreshold is the point count above which work is dispatched to
	// the executor (default 100).
	AsyncThreshold int
	// Executor handles large inputs; nil means everything runs inline.
	Executor SimplifyExecutor
}

// NewSimplifier creates a Simplifier.
func NewSimplifier(cfg SimplifierConfig) *Simplifier {
	threshold := cfg.AsyncThreshold
	if threshold <= 0 {
		threshold = 100
	}
	return &Simplifier{
		executor:  cfg.Executor,
		threshold: threshold,
	}
}

// Simplify reduces one polyline, dispatching to the executor when the input
// exceeds the size threshold.
func (s *Simplifier) Simplify(points []LatLng, epsilonMeters float64) []LatLng {
	if len(points) <= 2 || epsilonMeters <= 0 {
		return points
	}
	if s.executor == nil || len(points) <= s.threshold {
		return Simplify(points, epsilonMeters)
	}
	result, err := s.executor.Simplify(points, epsilonMeters)
	if err != nil {
		return Simplify(points, epsilonMeters)
	}
	return result
}

// SimplifyBatch reduces multiple named polylines, dispatching each
// independently (inline if small, via the executor if large) and joining all
// results before returning. Result ordering between lines is irrelevant;
// each line's own point order is preserved.
func (s *Simplifier) SimplifyBatch(lines map[string][]LatLng, epsilonMeters float64) map[string][]LatLng {
	result := make(map[string][]LatLng, len(lines))
	if epsilonMeters <= 0 {
		for name, pts := range lines {
			result[name] = pts
		}
		return result
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, pts := range lines {
		if s.executor == nil || len(pts) <= s.threshold {
			result[name] = s.Simplify(pts, epsilonMeters)
			continue
		}
		wg.Add(1)
		go func(name string, pts []LatLng) {
			defer wg.Done()
			simplified := s.Simplify(pts, epsilonMeters)
			mu.Lock()
			result[name] = simplified
			mu.Unlock()
		}(name, pts)
	}
	wg.Wait()
	return result
}
