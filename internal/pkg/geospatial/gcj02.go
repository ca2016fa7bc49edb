package geospatial

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/samirrijal/geowire/internal/pkg/geom"
)

// Krasovsky 1940 ellipsoid, as used by the GCJ-02 offset.
const (
	gcjSemiMajor = 6378245.0
	gcjEccSq     = 0.00669342162296594323
)

// Region the offset applies to. Outside it both directions are the identity.
const (
	chinaMinLon = 72.004
	chinaMaxLon = 137.8347
	chinaMinLat = 0.8293
	chinaMaxLat = 55.8271
)

const (
	inverseTolerance = 1e-9
	inverseMaxIter   = 30
)

// InChina reports whether lat/lon falls inside the region where GCJ-02
// differs from WGS-84.
func InChina(lat, lon float64) bool {
	return lon >= chinaMinLon && lon <= chinaMaxLon && lat >= chinaMinLat && lat <= chinaMaxLat
}

// WGS84ToGCJ02 applies the GCJ-02 offset to a WGS-84 coordinate.
func WGS84ToGCJ02(lat, lon float64) (float64, float64) {
	if !InChina(lat, lon) {
		return lat, lon
	}
	dLat, dLon := gcjDelta(lat, lon)
	return lat + dLat, lon + dLon
}

// GCJ02ToWGS84 removes the GCJ-02 offset. The forward transform has no
// closed-form inverse, so this iterates until the round trip is within
// 1e-9 degrees. Only the input is checked against the region: near its edge
// the WGS-84 estimate may fall just outside it and must still be offset.
func GCJ02ToWGS84(lat, lon float64) (float64, float64) {
	if !InChina(lat, lon) {
		return lat, lon
	}
	dLat, dLon := gcjDelta(lat, lon)
	wLat, wLon := lat-dLat, lon-dLon
	for range inverseMaxIter {
		dLat, dLon = gcjDelta(wLat, wLon)
		eLat, eLon := wLat+dLat-lat, wLon+dLon-lon
		if math.Abs(eLat) < inverseTolerance && math.Abs(eLon) < inverseTolerance {
			break
		}
		wLat -= eLat
		wLon -= eLon
	}
	return wLat, wLon
}

func gcjDelta(lat, lon float64) (float64, float64) {
	x, y := lon-105.0, lat-35.0
	dLat := gcjLat(x, y)
	dLon := gcjLon(x, y)

	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - gcjEccSq*magic*magic
	sqrtMagic := math.Sqrt(magic)

	dLat = (dLat * 180.0) / ((gcjSemiMajor * (1 - gcjEccSq)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (gcjSemiMajor / sqrtMagic * math.Cos(radLat) * math.Pi)
	return dLat, dLon
}

func gcjLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320.0*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func gcjLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}

// ToGCJ02 returns g with every coordinate shifted into GCJ-02. X is read as
// longitude and Y as latitude; Z, M, SRID and layout are untouched.
func ToGCJ02(g geom.Geometry) geom.Geometry {
	return geom.Map(g, func(c geom.Coord) geom.Coord {
		c[1], c[0] = WGS84ToGCJ02(c[1], c[0])
		return c
	})
}

// FromGCJ02 is the inverse of ToGCJ02.
func FromGCJ02(g geom.Geometry) geom.Geometry {
	return geom.Map(g, func(c geom.Coord) geom.Coord {
		c[1], c[0] = GCJ02ToWGS84(c[1], c[0])
		return c
	})
}

// Direction selects which way Apply converts.
type Direction int

const (
	Forward Direction = iota // WGS-84 to GCJ-02
	Inverse                  // GCJ-02 to WGS-84
)

func (d Direction) String() string {
	if d == Inverse {
		return "to_wgs84"
	}
	return "to_gcj02"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDirection accepts "forward"/"to_gcj02" and "inverse"/"to_wgs84".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "to_gcj02", "":
		return Forward, nil
	case "inverse", "to_wgs84":
		return Inverse, nil
	}
	return Forward, errors.Newf("unknown transform direction %q", s)
}

// Apply converts g in direction d.
func Apply(g geom.Geometry, d Direction) geom.Geometry {
	if d == Inverse {
		return FromGCJ02(g)
	}
	return ToGCJ02(g)
}
