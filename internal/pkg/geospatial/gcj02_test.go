package geospatial_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

func TestInChina(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"beijing", 39.9042, 116.4074, true},
		{"shanghai", 31.2304, 121.4737, true},
		{"london", 51.5074, -0.1278, false},
		{"bilbao", 43.2630, -2.9350, false},
		{"south of region", 0.5, 100, false},
		{"east of region", 30, 140, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, geospatial.InChina(test.lat, test.lon))
		})
	}
}

func TestWGS84ToGCJ02(t *testing.T) {
	lat, lon := geospatial.WGS84ToGCJ02(39.9042, 116.4074)
	require.NotEqual(t, 39.9042, lat)
	require.NotEqual(t, 116.4074, lon)

	shift := geospatial.Haversine(39.9042, 116.4074, lat, lon)
	require.Greater(t, shift, 100.0)
	require.Less(t, shift, 1000.0)

	lat, lon = geospatial.WGS84ToGCJ02(51.5074, -0.1278)
	require.Equal(t, 51.5074, lat)
	require.Equal(t, -0.1278, lon)
}

func TestGCJ02ToWGS84(t *testing.T) {
	for _, p := range [][2]float64{
		{39.9042, 116.4074},
		{22.5431, 114.0579},
		{43.8256, 87.6168},
	} {
		gLat, gLon := geospatial.WGS84ToGCJ02(p[0], p[1])
		lat, lon := geospatial.GCJ02ToWGS84(gLat, gLon)
		require.InDelta(t, p[0], lat, 1e-8)
		require.InDelta(t, p[1], lon, 1e-8)
	}

	lat, lon := geospatial.GCJ02ToWGS84(51.5074, -0.1278)
	require.Equal(t, 51.5074, lat)
	require.Equal(t, -0.1278, lon)
}

func TestApply(t *testing.T) {
	ls := geom.WithSRID(geom.NewLineString(geom.XYZ,
		geom.Coord{116.4074, 39.9042, 44},
		geom.Coord{-0.1278, 51.5074, 11},
	), geom.WGS84)

	fwd := geospatial.Apply(ls, geospatial.Forward)
	require.Equal(t, geom.WGS84, fwd.SRID())
	require.Equal(t, geom.XYZ, fwd.Layout())

	out := fwd.(geom.LineString)
	lat, lon := geospatial.WGS84ToGCJ02(39.9042, 116.4074)
	require.Equal(t, geom.Coord{lon, lat, 44}, out.Coord(0))
	require.Equal(t, geom.Coord{-0.1278, 51.5074, 11}, out.Coord(1))

	// the input is not modified
	require.Equal(t, geom.Coord{116.4074, 39.9042, 44}, ls.(geom.LineString).Coord(0))

	d := geospatial.Displacement(ls, fwd)
	require.Greater(t, d, 100.0)
	require.Less(t, d, 1000.0)

	back := geospatial.Apply(fwd, geospatial.Inverse).(geom.LineString)
	require.InDeltaSlice(t, []float64{116.4074, 39.9042, 44}, back.Coord(0), 1e-8)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]geospatial.Direction{
		"forward":  geospatial.Forward,
		"to_gcj02": geospatial.Forward,
		"Inverse":  geospatial.Inverse,
		"to_wgs84": geospatial.Inverse,
	} {
		got, err := geospatial.ParseDirection(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := geospatial.ParseDirection("sideways")
	require.Error(t, err)

	b, err := json.Marshal(struct{ D geospatial.Direction }{geospatial.Inverse})
	require.NoError(t, err)
	require.JSONEq(t, `{"D":"to_wgs84"}`, string(b))

	var out struct{ D geospatial.Direction }
	require.NoError(t, json.Unmarshal([]byte(`{"D":"forward"}`), &out))
	require.Equal(t, geospatial.Forward, out.D)
}

func TestHaversine(t *testing.T) {
	// one degree of latitude on the mean sphere
	require.InDelta(t, 111194.9, geospatial.Haversine(0, 0, 1, 0), 0.1)
	require.Zero(t, geospatial.Haversine(43.263, -2.935, 43.263, -2.935))

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(43.263, -2.935, 500)
	require.Less(t, minLat, 43.263)
	require.Less(t, minLon, -2.935)
	require.Greater(t, maxLat, 43.263)
	require.Greater(t, maxLon, -2.935)
	require.InDelta(t, 500, geospatial.Haversine(43.263, -2.935, maxLat, -2.935), 1)
}
