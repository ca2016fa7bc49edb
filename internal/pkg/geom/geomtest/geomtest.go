// Package geomtest provides fixtures and assertions for codec tests.
package geomtest

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/samirrijal/geowire/internal/pkg/geom"
)

var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Layouts lists every coordinate layout.
var Layouts = []geom.Layout{geom.XY, geom.XYZ, geom.XYM, geom.XYZM}

// C builds a coordinate for l from x and y, deriving z and m from them.
func C(l geom.Layout, x, y float64) geom.Coord {
	c := geom.Coord{x, y}
	if l.HasZ() {
		c = append(c, x+y+0.25)
	}
	if l.HasM() {
		c = append(c, x*y-0.5)
	}
	return c
}

// Square returns a closed ring with its lower-left corner at (x, y).
func Square(l geom.Layout, x, y, size float64) geom.Ring {
	return geom.Ring{
		C(l, x, y),
		C(l, x+size, y),
		C(l, x+size, y+size),
		C(l, x, y+size),
		C(l, x, y),
	}
}

// Case is a named geometry fixture.
type Case struct {
	Name string
	Geom geom.Geometry
}

// Samples returns one or more fixtures of every variant in layout l,
// including empty ones and a nested collection.
func Samples(l geom.Layout) []Case {
	pt := geom.NewPoint(l, C(l, 1, 2))
	ls := geom.NewLineString(l, C(l, 0, 0), C(l, 1.5, -1), C(l, 2, 2.125))
	poly := geom.NewPolygon(l, Square(l, 0, 0, 10), Square(l, 2, 2, 3))
	cases := []Case{
		{"point", pt},
		{"point empty", geom.NewPointEmpty(l)},
		{"point srid", geom.WithSRID(pt, geom.WGS84)},
		{"linestring", ls},
		{"linestring empty", geom.NewLineString(l)},
		{"polygon", poly},
		{"polygon empty", geom.NewPolygon(l)},
		{"multipoint", geom.NewMultiPoint(l, pt, geom.NewPoint(l, C(l, -3, 4)))},
		{"multilinestring", geom.NewMultiLineString(l, ls, geom.NewLineString(l, C(l, 5, 5), C(l, 6, 7)))},
		{"multipolygon", geom.WithSRID(geom.NewMultiPolygon(l, poly, geom.NewPolygon(l, Square(l, 20, 20, 1))), 3857)},
		{"collection", geom.NewGeometryCollection(l, pt, ls)},
		{"collection nested", geom.NewGeometryCollection(l,
			poly,
			geom.NewGeometryCollection(l, geom.NewMultiPoint(l, pt)),
			geom.NewGeometryCollection(l),
		)},
		{"collection empty", geom.NewGeometryCollection(l)},
	}
	for i := range cases {
		cases[i].Name = fmt.Sprintf("%s/%s", l, cases[i].Name)
	}
	return cases
}

// RequireEqual fails the test unless the geometries are identical,
// treating NaN as equal to NaN.
func RequireEqual(t testing.TB, want, got geom.Geometry) {
	t.Helper()
	if diff := cmp.Diff(want, got, exportAll, cmpopts.EquateNaNs(), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("geometry mismatch (-want +got):\n%s", diff)
	}
}

// RequireApprox fails the test unless the geometries have the same shape
// and every ordinate is within tol.
func RequireApprox(t testing.TB, want, got geom.Geometry, tol float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, exportAll, cmpopts.EquateApprox(0, tol), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("geometry mismatch beyond %g (-want +got):\n%s", tol, diff)
	}
}
