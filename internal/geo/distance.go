// Package geo holds the small amount of spherical geometry used for stop search.
package geo

import "math"

const earthRadiusMeters = 6_371_000

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBoxRadius returns the latitude and longitude offsets in degrees
// that cover radiusMeters around a point at lat.
func BoundingBoxRadius(lat, radiusMeters float64) (latDeg, lonDeg float64) {
	latDeg = radiusMeters / earthRadiusMeters * (180 / math.Pi)
	cos := math.Cos(toRad(lat))
	if cos < 1e-6 {
		return latDeg, 180
	}
	return latDeg, min(latDeg/cos, 180)
}

// BoxDegrees returns a single half-width in degrees for a square box that
// contains the circle of radiusMeters around a point at lat.
func BoxDegrees(lat, radiusMeters float64) float64 {
	latDeg, lonDeg := BoundingBoxRadius(lat, radiusMeters)
	return max(latDeg, lonDeg)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
