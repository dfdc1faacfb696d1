// Package geo provides the geospatial model used to place transactions:
// sampling merchant locations around a reference point and great-circle
// distance and velocity math.
package geo

import (
	"math"
	"math/rand/v2"
)

const (
	// EarthRadiusKm is the mean Earth radius used by DistanceKm.
	EarthRadiusKm = 6371.0

	// KmPerDegree approximates the length of one degree of latitude.
	KmPerDegree = 111.1

	// minCosLatitude keeps the longitude conversion finite at the poles.
	minCosLatitude = 1e-6

	coordinateScale = 1e6
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceTo returns the great-circle distance to q in kilometres.
func (p Point) DistanceTo(q Point) float64 {
	return DistanceKm(p.Latitude, p.Longitude, q.Latitude, q.Longitude)
}

// SampleNearby draws a point whose latitude and longitude offsets are each
// uniform within maxDistanceKm expressed in degrees at the origin latitude.
// The sample area is a degree box, not a disk, so corners reach up to
// sqrt(2) * maxDistanceKm. Latitude is clamped to [-90, 90], longitude is
// wrapped into [-180, 180), and both are rounded to 6 decimals.
func SampleNearby(rng *rand.Rand, lat, lon, maxDistanceKm float64) (float64, float64) {
	radiusLat := maxDistanceKm / KmPerDegree
	cosLat := math.Abs(math.Cos(radians(lat)))
	if cosLat < minCosLatitude {
		cosLat = minCosLatitude
	}
	radiusLon := maxDistanceKm / (KmPerDegree * cosLat)

	deltaLat := uniform(rng, -radiusLat, radiusLat)
	deltaLon := uniform(rng, -radiusLon, radiusLon)

	newLat := Round6(ClampLatitude(lat + deltaLat))
	newLon := Round6(WrapLongitude(lon + deltaLon))
	if newLon >= 180 {
		newLon -= 360
	}
	return newLat, newLon
}

// SamplePoint is SampleNearby over Point values.
func SamplePoint(rng *rand.Rand, origin Point, maxDistanceKm float64) Point {
	lat, lon := SampleNearby(rng, origin.Latitude, origin.Longitude, maxDistanceKm)
	return Point{Latitude: lat, Longitude: lon}
}

// ClampLatitude limits lat to [-90, 90].
func ClampLatitude(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// WrapLongitude maps lon into [-180, 180).
func WrapLongitude(lon float64) float64 {
	wrapped := math.Mod(lon+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped - 180
}

// Round6 rounds v to 6 decimal places.
func Round6(v float64) float64 {
	return math.Round(v*coordinateScale) / coordinateScale
}

// DistanceKm returns the haversine distance between two points in kilometres.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	phi1 := radians(lat1)
	phi2 := radians(lat2)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon
	// Rounding can push a marginally past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// VelocityKmh converts a distance covered in the given number of seconds to
// km/h. seconds must be positive.
func VelocityKmh(distanceKm, seconds float64) float64 {
	return distanceKm / seconds * 3600
}

// SecondsAtVelocity returns how long covering distanceKm takes at kmh.
func SecondsAtVelocity(distanceKm, kmh float64) float64 {
	return distanceKm / kmh * 3600
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
