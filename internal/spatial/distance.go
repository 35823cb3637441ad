package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters

	// coordGridDecimals is the rounding used when two coordinates should be
	// considered "the same place" (merge keys, cache keys). Four decimal
	// degrees is roughly an 11m cell.
	coordGridDecimals = 4
)

// HaversineDistance calculates the great-circle distance between two points
// in meters.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// NormalizeCoords snaps a coordinate pair to the shared grid so that nearby
// requests and nearby POIs land on identical keys.
func NormalizeCoords(lat, lon float64) (float64, float64) {
	scale := math.Pow10(coordGridDecimals)
	return math.Round(lat*scale) / scale, math.Round(lon*scale) / scale
}

// DistanceBucket quantizes a distance in meters into buckets of the given
// width. Used by the name-based dedup pass, where POIs within the same
// bucket count as duplicates.
func DistanceBucket(distanceM, widthM float64) int {
	if widthM <= 0 {
		return 0
	}
	return int(distanceM / widthM)
}
