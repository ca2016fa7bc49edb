package geospatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCJ02ToWGS84_RegionEdge(t *testing.T) {
	var points [][2]float64
	for lat := 1.0; lat < chinaMaxLat; lat += 0.5 {
		points = append(points, [2]float64{lat, chinaMinLon + 1e-4}, [2]float64{lat, chinaMaxLon - 1e-4})
	}
	for lon := 73.0; lon < chinaMaxLon; lon += 0.5 {
		points = append(points, [2]float64{chinaMinLat + 1e-4, lon}, [2]float64{chinaMaxLat - 1e-4, lon})
	}

	for _, g := range points {
		lat, lon := GCJ02ToWGS84(g[0], g[1])
		dLat, dLon := gcjDelta(lat, lon)
		require.InDeltaf(t, g[0], lat+dLat, 1e-8, "lat at %v", g)
		require.InDeltaf(t, g[1], lon+dLon, 1e-8, "lon at %v", g)
	}
}
