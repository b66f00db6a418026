package render

import "math"

const (
	earthRadiusMeters = 6371000.0

	// tileSizePx is the logical size of one Web Mercator tile, used when
	// projecting geographic coordinates to screen pixels for grid decimation.
	tileSizePx = 256.0
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180.0
	dLng := (b.Lng - a.Lng) * math.Pi / 180.0

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ProjectPixels converts a coordinate to global Web Mercator pixel space at
// the given zoom level. Latitude is clamped to the Mercator limit.
func ProjectPixels(p LatLng, zoom float64) (x, y float64) {
	scale := tileSizePx * math.Exp2(zoom)

	lat := p.Lat
	if lat > 85.05112878 {
		lat = 85.05112878
	} else if lat < -85.05112878 {
		lat = -85.05112878
	}

	x = (p.Lng + 180.0) / 360.0 * scale
	sinLat := math.Sin(lat * math.Pi / 180.0)
	y = (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * scale
	return x, y
}

// gridKey identifies one screen-space cell. Quantized pixel coordinates are
// used as a deduplication key only; keys are never persisted.
type gridKey struct {
	cx int32
	cy int32
}

// cellKey quantizes a projected pixel position into a cell of side cellSizePx.
func cellKey(x, y, cellSizePx float64) gridKey {
	return gridKey{
		cx: int32(math.Floor(x / cellSizePx)),
		cy: int32(math.Floor(y / cellSizePx)),
	}
}
