package render

import (
	"fmt"
	"sort"
)

// SpatialItem is any renderable item with a geographic position.
type SpatialItem interface {
	Position() LatLng
}

// PrioritizedItem is optionally implemented by items that carry a numeric
// priority. Items without one are treated as priority 0.
type PrioritizedItem interface {
	Priority() float64
}

// DecimationStrategy selects how a marker set is reduced to the tier cap.
type DecimationStrategy int

const (
	// StrategyGrid keeps the first item per screen-space grid cell.
	StrategyGrid DecimationStrategy = iota
	// StrategyDistanceCluster greedily clusters by geodesic distance and
	// keeps one representative per cluster.
	StrategyDistanceCluster
	// StrategyPriority keeps the highest-priority items.
	StrategyPriority
	// StrategyHybrid is grid occupancy with per-cell priority, then a
	// priority truncation if the overfilled result still exceeds the cap.
	StrategyHybrid
)

// String returns the strategy name used in logs and config.
func (s DecimationStrategy) String() string {
	switch s {
	case StrategyGrid:
		return "grid"
	case StrategyDistanceCluster:
		return "distance"
	case StrategyPriority:
		return "priority"
	case StrategyHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// DecimateOptions parametrize the spatial strategies.
type DecimateOptions struct {
	// Zoom is the map zoom used to project positions for grid strategies
	// (default 12).
	Zoom float64
	// CellSizePx is the grid cell side in pixels (default 48).
	CellSizePx float64
	// MinDistanceMeters is the clustering radius for the distance strategy
	// (default 50).
	MinDistanceMeters float64
}

// hybridOverfill lets the grid pass keep 20% more cells than the cap before
// the priority truncation, so dense areas do not starve sparse ones.
const hybridOverfill = 1.2

func (o DecimateOptions) withDefaults() DecimateOptions {
	if o.Zoom <= 0 {
		o.Zoom = 12
	}
	if o.CellSizePx <= 0 {
		o.CellSizePx = 48
	}
	if o.MinDistanceMeters <= 0 {
		o.MinDistanceMeters = 50
	}
	return o
}

// Decimate reduces items to at most cap elements using the given strategy.
// The input is never mutated; the result is always a subset of the input in
// input order (except for the priority strategies, which order by priority).
// Degraded inputs (cap <= 0, or already within the cap) return the input
// unchanged.
func Decimate(items []SpatialItem, strategy DecimationStrategy, cap int, opts DecimateOptions) []SpatialItem {
	if cap <= 0 || len(items) <= cap {
		return items
	}
	opts = opts.withDefaults()

	switch strategy {
	case StrategyDistanceCluster:
		return decimateDistance(items, cap, opts.MinDistanceMeters)
	case StrategyPriority:
		return decimatePriority(items, cap)
	case StrategyHybrid:
		return decimateHybrid(items, cap, opts)
	default:
		return decimateGrid(items, cap, opts)
	}
}

// decimateGrid keeps the first item encountered per screen-space cell,
// stopping once cap cells are occupied. Single pass, deterministic for a
// fixed input order.
func decimateGrid(items []SpatialItem, cap int, opts DecimateOptions) []SpatialItem {
	seen := make(map[gridKey]struct{}, cap)
	result := make([]SpatialItem, 0, cap)

	for _, item := range items {
		x, y := ProjectPixels(item.Position(), opts.Zoom)
		key := cellKey(x, y, opts.CellSizePx)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
		if len(result) >= cap {
			break
		}
	}
	return result
}

// decimateDistance forms greedy clusters of all unprocessed items within
// minDistanceMeters of each seed and emits the seed as representative. The
// representative is deliberately the first member encountered, not a
// centroid, so the output stays a subset of the input.
func decimateDistance(items []SpatialItem, cap int, minDistanceMeters float64) []SpatialItem {
	processed := make([]bool, len(items))
	result := make([]SpatialItem, 0, cap)

	for i, item := range items {
		if processed[i] {
			continue
		}
		processed[i] = true
		pos := item.Position()
		for j := i + 1; j < len(items); j++ {
			if processed[j] {
				continue
			}
			if HaversineMeters(pos, items[j].Position()) <= minDistanceMeters {
				processed[j] = true
			}
		}
		result = append(result, item)
		if len(result) >= cap {
			break
		}
	}
	return result
}

// decimatePriority keeps the cap highest-priority items. The sort is stable,
// so ties keep their original order.
func decimatePriority(items []SpatialItem, cap int) []SpatialItem {
	sorted := make([]SpatialItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return itemPriority(sorted[i]) > itemPriority(sorted[j])
	})
	return sorted[:cap]
}

// decimateHybrid runs the grid pass keeping the highest-priority occupant per
// cell, with an overfill margin; if the overfilled set still exceeds the cap
// it falls back to a priority truncation.
func decimateHybrid(items []SpatialItem, cap int, opts DecimateOptions) []SpatialItem {
	overfilled := int(float64(cap) * hybridOverfill)

	best := make(map[gridKey]int, overfilled)
	order := make([]gridKey, 0, overfilled)

	for i, item := range items {
		x, y := ProjectPixels(item.Position(), opts.Zoom)
		key := cellKey(x, y, opts.CellSizePx)
		prev, ok := best[key]
		if !ok {
			if len(order) >= overfilled {
				continue
			}
			best[key] = i
			order = append(order, key)
			continue
		}
		if itemPriority(item) > itemPriority(items[prev]) {
			best[key] = i
		}
	}

	result := make([]SpatialItem, 0, len(order))
	for _, key := range order {
		result = append(result, items[best[key]])
	}
	if len(result) > cap {
		result = decimatePriority(result, cap)
	}
	return result
}

func itemPriority(item SpatialItem) float64 {
	if p, ok := item.(PrioritizedItem); ok {
		return p.Priority()
	}
	return 0
}
