// Package geom is the geometry model shared by the EWKB and TWKB codecs.
//
// Geometries are immutable values. Constructors copy the coordinates and
// rings they are given, so later changes to the caller's slices do not
// reach the geometry. Accessors such as Coord and Ring return views into
// the geometry and must be treated as read-only.
package geom

import (
	"fmt"
	"iter"
)

// Type is the base geometry type code, shared by EWKB and TWKB.
type Type uint32

const (
	PointType              Type = 1
	LineStringType         Type = 2
	PolygonType            Type = 3
	MultiPointType         Type = 4
	MultiLineStringType    Type = 5
	MultiPolygonType       Type = 6
	GeometryCollectionType Type = 7
)

var typeNames = [...]string{
	PointType:              "Point",
	LineStringType:         "LineString",
	PolygonType:            "Polygon",
	MultiPointType:         "MultiPoint",
	MultiLineStringType:    "MultiLineString",
	MultiPolygonType:       "MultiPolygon",
	GeometryCollectionType: "GeometryCollection",
}

// Valid reports whether t is one of the seven known base types.
func (t Type) Valid() bool {
	return t >= PointType && t <= GeometryCollectionType
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", uint32(t))
	}
	return typeNames[t]
}

// Layout declares which optional ordinates every coordinate of a geometry
// carries.
type Layout uint8

const (
	XY Layout = iota
	XYZ
	XYM
	XYZM
)

// LayoutOf returns the layout with the given optional ordinates.
func LayoutOf(hasZ, hasM bool) Layout {
	switch {
	case hasZ && hasM:
		return XYZM
	case hasZ:
		return XYZ
	case hasM:
		return XYM
	default:
		return XY
	}
}

func (l Layout) HasZ() bool { return l == XYZ || l == XYZM }
func (l Layout) HasM() bool { return l == XYM || l == XYZM }

// Stride is the number of ordinates per coordinate.
func (l Layout) Stride() int {
	switch l {
	case XYZ, XYM:
		return 3
	case XYZM:
		return 4
	default:
		return 2
	}
}

// ZIndex returns the index of z within a coordinate, or -1.
func (l Layout) ZIndex() int {
	if l.HasZ() {
		return 2
	}
	return -1
}

// MIndex returns the index of m within a coordinate, or -1.
func (l Layout) MIndex() int {
	switch l {
	case XYM:
		return 2
	case XYZM:
		return 3
	default:
		return -1
	}
}

func (l Layout) String() string {
	switch l {
	case XY:
		return "XY"
	case XYZ:
		return "XYZ"
	case XYM:
		return "XYM"
	case XYZM:
		return "XYZM"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// Coord holds x, y and then the optional z and m ordinates, in that order.
type Coord []float64

func (c Coord) X() float64 { return c[0] }
func (c Coord) Y() float64 { return c[1] }

// Clone returns a deep copy of c.
func (c Coord) Clone() Coord {
	if c == nil {
		return nil
	}
	return append(Coord(nil), c...)
}

// Equal compares ordinates bit for bit, treating NaN as equal to NaN.
func (c Coord) Equal(o Coord) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] && !(c[i] != c[i] && o[i] != o[i]) {
			return false
		}
	}
	return true
}

// SRID is a spatial reference identifier. Zero means none is attached.
type SRID int32

const (
	UnknownSRID SRID = 0
	WGS84       SRID = 4326
)

// Geometry is implemented by the seven geometry variants of this package.
type Geometry interface {
	Type() Type
	Layout() Layout
	SRID() SRID
	IsEmpty() bool
	// Coords yields every coordinate in depth-first order. The yielded
	// coordinates alias the geometry and must not be modified.
	Coords() iter.Seq[Coord]

	sealed()
}
