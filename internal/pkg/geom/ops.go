package geom

import "github.com/cockroachdb/errors"

// DefaultMaxDepth is the default limit on how many levels a geometry may
// nest below its top level.
const DefaultMaxDepth = 64

// WithSRID returns a copy of g carrying srid.
func WithSRID(g Geometry, srid SRID) Geometry {
	switch g := g.(type) {
	case Point:
		g.srid = srid
		return g
	case LineString:
		g.srid = srid
		return g
	case Polygon:
		g.srid = srid
		return g
	case MultiPoint:
		g.srid = srid
		return g
	case MultiLineString:
		g.srid = srid
		return g
	case MultiPolygon:
		g.srid = srid
		return g
	case GeometryCollection:
		g.srid = srid
		return g
	}
	return g
}

// Validate checks that every coordinate matches the declared layout, that
// members share their parent's layout and that every ring is closed.
func Validate(g Geometry) error {
	return ValidateDepth(g, DefaultMaxDepth)
}

// ValidateDepth is Validate with an explicit nesting limit.
func ValidateDepth(g Geometry, maxDepth int) error {
	if g == nil {
		return errors.Wrap(ErrUnsupported, "nil geometry")
	}
	return validate(g, g.Layout(), 0, maxDepth)
}

func validate(g Geometry, want Layout, depth, maxDepth int) error {
	if g == nil {
		return errors.Wrap(ErrUnsupported, "nil collection member")
	}
	if depth > maxDepth {
		return errors.Wrapf(ErrMaxDepth, "depth %d exceeds limit %d", depth, maxDepth)
	}
	if g.Layout() != want {
		return errors.Wrapf(ErrInconsistentDimensionality,
			"%s has layout %s, expected %s", g.Type(), g.Layout(), want)
	}
	switch g := g.(type) {
	case Point:
		if g.coord != nil {
			return checkStride(g.coord, want, g.Type(), 0)
		}
	case LineString:
		for i, c := range g.coords {
			if err := checkStride(c, want, g.Type(), i); err != nil {
				return err
			}
		}
	case Polygon:
		for i, r := range g.rings {
			if err := checkRing(r, want, i); err != nil {
				return err
			}
		}
	case MultiPoint:
		for _, p := range g.points {
			if err := validate(p, want, depth+1, maxDepth); err != nil {
				return err
			}
		}
	case MultiLineString:
		for _, ls := range g.lines {
			if err := validate(ls, want, depth+1, maxDepth); err != nil {
				return err
			}
		}
	case MultiPolygon:
		for _, p := range g.polygons {
			if err := validate(p, want, depth+1, maxDepth); err != nil {
				return err
			}
		}
	case GeometryCollection:
		for _, m := range g.geoms {
			if err := validate(m, want, depth+1, maxDepth); err != nil {
				return err
			}
		}
	default:
		return errors.Wrapf(ErrInvalidType, "unknown geometry %T", g)
	}
	return nil
}

func checkStride(c Coord, l Layout, t Type, i int) error {
	if len(c) != l.Stride() {
		return errors.Wrapf(ErrInconsistentDimensionality,
			"%s coordinate %d has %d ordinates, layout %s needs %d", t, i, len(c), l, l.Stride())
	}
	return nil
}

func checkRing(r Ring, l Layout, idx int) error {
	for i, c := range r {
		if err := checkStride(c, l, PolygonType, i); err != nil {
			return err
		}
	}
	if len(r) < 4 {
		return errors.Wrapf(ErrUnclosedRing, "ring %d has %d coordinates, need at least 4", idx, len(r))
	}
	if !r.IsClosed() {
		return errors.Wrapf(ErrUnclosedRing, "ring %d starts at %v but ends at %v", idx, r[0], r[len(r)-1])
	}
	return nil
}

// Map returns a geometry of the same shape with fn applied to every
// coordinate. Layout and SRID are preserved.
func Map(g Geometry, fn func(Coord) Coord) Geometry {
	switch g := g.(type) {
	case Point:
		if g.coord != nil {
			g.coord = fn(g.coord.Clone())
		}
		return g
	case LineString:
		g.coords = mapCoords(g.coords, fn)
		return g
	case Polygon:
		g.rings = mapPolygon(g.rings, fn)
		return g
	case MultiPoint:
		points := make([]Point, len(g.points))
		for i, p := range g.points {
			points[i] = Map(p, fn).(Point)
		}
		g.points = nilIfEmpty(points)
		return g
	case MultiLineString:
		lines := make([]LineString, len(g.lines))
		for i, ls := range g.lines {
			lines[i] = Map(ls, fn).(LineString)
		}
		g.lines = nilIfEmpty(lines)
		return g
	case MultiPolygon:
		polygons := make([]Polygon, len(g.polygons))
		for i, p := range g.polygons {
			polygons[i] = Map(p, fn).(Polygon)
		}
		g.polygons = nilIfEmpty(polygons)
		return g
	case GeometryCollection:
		geoms := make([]Geometry, len(g.geoms))
		for i, m := range g.geoms {
			geoms[i] = Map(m, fn)
		}
		g.geoms = nilIfEmpty(geoms)
		return g
	}
	return g
}

func mapCoords(coords []Coord, fn func(Coord) Coord) []Coord {
	if len(coords) == 0 {
		return nil
	}
	out := make([]Coord, len(coords))
	for i, c := range coords {
		out[i] = fn(c.Clone())
	}
	return out
}

func mapPolygon(rings []Ring, fn func(Coord) Coord) []Ring {
	if len(rings) == 0 {
		return nil
	}
	out := make([]Ring, len(rings))
	for i, r := range rings {
		out[i] = mapCoords(r, fn)
	}
	return out
}

// Equal reports whether a and b have the same shape, layout, SRID and
// coordinates.
func Equal(a, b Geometry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() || a.Layout() != b.Layout() || a.SRID() != b.SRID() {
		return false
	}
	switch a := a.(type) {
	case Point:
		return a.coord.Equal(b.(Point).coord)
	case LineString:
		return coordsEqual(a.coords, b.(LineString).coords)
	case Polygon:
		br := b.(Polygon).rings
		if len(a.rings) != len(br) {
			return false
		}
		for i := range a.rings {
			if !coordsEqual(a.rings[i], br[i]) {
				return false
			}
		}
		return true
	case MultiPoint:
		return membersEqual(a.points, b.(MultiPoint).points)
	case MultiLineString:
		return membersEqual(a.lines, b.(MultiLineString).lines)
	case MultiPolygon:
		return membersEqual(a.polygons, b.(MultiPolygon).polygons)
	case GeometryCollection:
		return membersEqual(a.geoms, b.(GeometryCollection).geoms)
	}
	return false
}

func coordsEqual(a, b []Coord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func membersEqual[T Geometry](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
