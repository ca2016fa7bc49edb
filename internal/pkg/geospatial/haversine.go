package geospatial

import (
	"math"

	"github.com/samirrijal/geowire/internal/pkg/geom"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// Displacement returns the largest distance in meters between matching
// coordinates of two geometries of the same shape, such as a geometry and
// its transformed copy. Coordinates are paired in traversal order.
func Displacement(a, b geom.Geometry) float64 {
	var bs []geom.Coord
	for c := range b.Coords() {
		bs = append(bs, c)
	}
	var maxDist float64
	i := 0
	for c := range a.Coords() {
		if i >= len(bs) {
			break
		}
		d := Haversine(c[1], c[0], bs[i][1], bs[i][0])
		if d > maxDist {
			maxDist = d
		}
		i++
	}
	return maxDist
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
