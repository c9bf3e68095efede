// Package geo provides great-circle distance math for geofence checks.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the haversine distance between two points in meters.
// It is symmetric and Distance(p, p) == 0.
func Distance(a, b Point) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := toRad(b.Latitude - a.Latitude)
	dLng := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// WithinRadius reports whether p lies inside the circular fence centered at
// center, and returns the computed distance either way so callers can show
// how far off a rejected point was.
func WithinRadius(p, center Point, radiusMeters float64) (bool, float64) {
	d := Distance(p, center)
	return d <= radiusMeters, d
}

// Valid reports whether the point is a plausible WGS84 coordinate.
func Valid(p Point) bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

func toRad(deg float64) float64 { return deg * (math.Pi / 180) }
