package domain

import "math"

// GeoPoint is a planar coordinate pair.
// Distances are Euclidean in the caller's units, not geodesic.
type GeoPoint struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DistanceTo returns the straight-line distance between two points
func (p GeoPoint) DistanceTo(o GeoPoint) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Within reports whether o lies inside the circle of the given radius around p
func (p GeoPoint) Within(o GeoPoint, radius float64) bool {
	return p.DistanceTo(o) <= radius
}
