// Package geofence decides whether a reported position lies inside the circular
// boundary around a classroom.
package geofence

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Point is a position in signed decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point is a finite coordinate on the globe.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) || math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h marginally above 1 for antipodal points
	h = math.Min(1, h)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// WithinRadius reports whether point is at most radiusMeters away from center.
func WithinRadius(center, point Point, radiusMeters float64) bool {
	return Distance(center, point) <= radiusMeters
}

// Result is the outcome of evaluating a position against a class geofence.
type Result struct {
	// Enforced is false when the class has no configured location and the
	// geofence was bypassed.
	Enforced bool
	Distance float64
	Inside   bool
}

// Evaluate checks point against the geofence around center. A nil center means the
// class has no location: the check is bypassed and reported as not enforced. A nil
// point with a non-nil center is never inside.
func Evaluate(center, point *Point, radiusMeters float64) Result {
	if center == nil {
		return Result{Enforced: false, Inside: true}
	}
	if point == nil {
		return Result{Enforced: true}
	}

	distance := Distance(*center, *point)
	return Result{
		Enforced: true,
		Distance: distance,
		Inside:   distance <= radiusMeters,
	}
}
