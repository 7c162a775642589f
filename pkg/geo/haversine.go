// Package geo holds the great-circle math shared by both search paths.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by every distance in the service.
const EarthRadiusKm = 6371.0

// Coordinates represents geographical coordinates in degrees
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Valid reports whether the coordinates fall inside [-90,90] x [-180,180]
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// DistanceKm calculates the distance between two points using the Haversine formula
func DistanceKm(from, to Coordinates) float64 {
	lat1Rad := toRadians(from.Latitude)
	lat2Rad := toRadians(to.Latitude)
	deltaLat := toRadians(to.Latitude - from.Latitude)
	deltaLon := toRadians(to.Longitude - from.Longitude)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BoundingBox returns the lat/lon rectangle that encloses a circle of radiusKm.
// It is a prefilter only; callers still compare DistanceKm against the radius.
func BoundingBox(center Coordinates, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	angular := radiusKm / EarthRadiusKm
	latDelta := angular * 180 / math.Pi
	minLat = math.Max(center.Latitude-latDelta, -90)
	maxLat = math.Min(center.Latitude+latDelta, 90)

	ratio := math.Sin(angular) / math.Cos(toRadians(center.Latitude))
	if minLat <= -90 || maxLat >= 90 || ratio >= 1 {
		return minLat, maxLat, -180, 180
	}

	lonDelta := math.Asin(ratio) * 180 / math.Pi
	minLon = center.Longitude - lonDelta
	maxLon = center.Longitude + lonDelta
	if minLon < -180 || maxLon > 180 {
		// TODO: split the box in two at the antimeridian instead of widening it
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLon, maxLon
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
