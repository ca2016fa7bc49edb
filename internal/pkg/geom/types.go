package geom

import "iter"

type base struct {
	layout Layout
	srid   SRID
}

func (b base) Layout() Layout { return b.layout }
func (b base) SRID() SRID     { return b.srid }
func (base) sealed()          {}

// Point is a single coordinate. A Point without a coordinate is empty.
type Point struct {
	base
	coord Coord
}

// NewPoint returns a point at c.
func NewPoint(l Layout, c Coord) Point {
	return Point{base: base{layout: l}, coord: c.Clone()}
}

// NewPointEmpty returns POINT EMPTY.
func NewPointEmpty(l Layout) Point {
	return Point{base: base{layout: l}}
}

func (Point) Type() Type      { return PointType }
func (p Point) IsEmpty() bool { return p.coord == nil }
func (p Point) Coord() Coord  { return p.coord }
func (p Point) Coords() iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		if p.coord != nil {
			yield(p.coord)
		}
	}
}

// LineString is an ordered sequence of coordinates.
type LineString struct {
	base
	coords []Coord
}

func NewLineString(l Layout, coords ...Coord) LineString {
	return LineString{base: base{layout: l}, coords: cloneCoords(coords)}
}

func (LineString) Type() Type           { return LineStringType }
func (ls LineString) IsEmpty() bool     { return len(ls.coords) == 0 }
func (ls LineString) NumCoords() int    { return len(ls.coords) }
func (ls LineString) Coord(i int) Coord { return ls.coords[i] }
func (ls LineString) Coords() iter.Seq[Coord] {
	return seqOf(ls.coords)
}

// Ring is a linear ring: at least four coordinates, first equal to last.
type Ring []Coord

// IsClosed reports whether r satisfies the linear ring invariant.
func (r Ring) IsClosed() bool {
	return len(r) >= 4 && r[0].Equal(r[len(r)-1])
}

// Polygon is an exterior ring followed by zero or more holes.
type Polygon struct {
	base
	rings []Ring
}

func NewPolygon(l Layout, rings ...Ring) Polygon {
	return Polygon{base: base{layout: l}, rings: cloneRings(rings)}
}

func (Polygon) Type() Type        { return PolygonType }
func (p Polygon) IsEmpty() bool   { return len(p.rings) == 0 }
func (p Polygon) NumRings() int   { return len(p.rings) }
func (p Polygon) Ring(i int) Ring { return p.rings[i] }
func (p Polygon) Rings() iter.Seq[Ring] {
	return seqOf(p.rings)
}

func (p Polygon) Coords() iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		for _, r := range p.rings {
			for _, c := range r {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// MultiPoint is a collection of points sharing one layout.
type MultiPoint struct {
	base
	points []Point
}

func NewMultiPoint(l Layout, points ...Point) MultiPoint {
	return MultiPoint{base: base{layout: l}, points: cloneSlice(points)}
}

func (MultiPoint) Type() Type           { return MultiPointType }
func (mp MultiPoint) IsEmpty() bool     { return len(mp.points) == 0 }
func (mp MultiPoint) NumPoints() int    { return len(mp.points) }
func (mp MultiPoint) Point(i int) Point { return mp.points[i] }
func (mp MultiPoint) Points() iter.Seq[Point] {
	return seqOf(mp.points)
}

func (mp MultiPoint) Coords() iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		for _, p := range mp.points {
			if p.coord != nil && !yield(p.coord) {
				return
			}
		}
	}
}

// MultiLineString is a collection of line strings sharing one layout.
type MultiLineString struct {
	base
	lines []LineString
}

func NewMultiLineString(l Layout, lines ...LineString) MultiLineString {
	return MultiLineString{base: base{layout: l}, lines: cloneSlice(lines)}
}

func (MultiLineString) Type() Type                     { return MultiLineStringType }
func (ml MultiLineString) IsEmpty() bool               { return len(ml.lines) == 0 }
func (ml MultiLineString) NumLineStrings() int         { return len(ml.lines) }
func (ml MultiLineString) LineString(i int) LineString { return ml.lines[i] }
func (ml MultiLineString) LineStrings() iter.Seq[LineString] {
	return seqOf(ml.lines)
}

func (ml MultiLineString) Coords() iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		for _, ls := range ml.lines {
			for _, c := range ls.coords {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// MultiPolygon is a collection of polygons sharing one layout.
type MultiPolygon struct {
	base
	polygons []Polygon
}

func NewMultiPolygon(l Layout, polygons ...Polygon) MultiPolygon {
	return MultiPolygon{base: base{layout: l}, polygons: cloneSlice(polygons)}
}

func (MultiPolygon) Type() Type               { return MultiPolygonType }
func (mp MultiPolygon) IsEmpty() bool         { return len(mp.polygons) == 0 }
func (mp MultiPolygon) NumPolygons() int      { return len(mp.polygons) }
func (mp MultiPolygon) Polygon(i int) Polygon { return mp.polygons[i] }
func (mp MultiPolygon) Polygons() iter.Seq[Polygon] {
	return seqOf(mp.polygons)
}

func (mp MultiPolygon) Coords() iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		for _, p := range mp.polygons {
			for c := range p.Coords() {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// GeometryCollection is an ordered, possibly nested, list of geometries.
type GeometryCollection struct {
	base
	geoms []Geometry
}

func NewGeometryCollection(l Layout, geoms ...Geometry) GeometryCollection {
	return GeometryCollection{base: base{layout: l}, geoms: cloneSlice(geoms)}
}

func (GeometryCollection) Type() Type                 { return GeometryCollectionType }
func (gc GeometryCollection) IsEmpty() bool           { return len(gc.geoms) == 0 }
func (gc GeometryCollection) NumGeometries() int      { return len(gc.geoms) }
func (gc GeometryCollection) Geometry(i int) Geometry { return gc.geoms[i] }
func (gc GeometryCollection) Geometries() iter.Seq[Geometry] {
	return seqOf(gc.geoms)
}

func (gc GeometryCollection) Coords() iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		for _, g := range gc.geoms {
			for c := range g.Coords() {
				if !yield(c) {
					return
				}
			}
		}
	}
}

func seqOf[T any](s []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range s {
			if !yield(v) {
				return
			}
		}
	}
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

// cloneSlice copies the member list. Members are themselves immutable, so
// they are shared.
func cloneSlice[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return append([]T(nil), s...)
}

// cloneCoords deep-copies coords into a single backing array.
func cloneCoords(coords []Coord) []Coord {
	if len(coords) == 0 {
		return nil
	}
	n := 0
	for _, c := range coords {
		n += len(c)
	}
	flat := make([]float64, 0, n)
	out := make([]Coord, len(coords))
	for i, c := range coords {
		start := len(flat)
		flat = append(flat, c...)
		out[i] = Coord(flat[start:len(flat):len(flat)])
	}
	return out
}

func cloneRings(rings []Ring) []Ring {
	if len(rings) == 0 {
		return nil
	}
	out := make([]Ring, len(rings))
	for i, r := range rings {
		out[i] = cloneCoords(r)
	}
	return out
}
