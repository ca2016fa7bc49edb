package ewkb

import (
	"math"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/wire"
)

// emptyOrdinate is the quiet NaN PostGIS writes for POINT EMPTY.
var emptyOrdinate = math.Float64frombits(0x7ff8000000000000)

// Encode returns the EWKB encoding of g in the given byte order.
func Encode(g geom.Geometry, order ByteOrder, opts ...Option) ([]byte, error) {
	return Append(nil, g, order, opts...)
}

// Append appends the EWKB encoding of g to dst. The geometry is validated
// first; on error dst is returned unchanged.
func Append(dst []byte, g geom.Geometry, order ByteOrder, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	if err := geom.ValidateDepth(g, o.maxDepth); err != nil {
		return dst, err
	}
	return appendGeometry(dst, g, order, true), nil
}

func appendGeometry(dst []byte, g geom.Geometry, order ByteOrder, top bool) []byte {
	if order == XDR {
		dst = append(dst, xdrMarker)
	} else {
		dst = append(dst, ndrMarker)
	}

	word := uint32(g.Type())
	if g.Layout().HasZ() {
		word |= zFlag
	}
	if g.Layout().HasM() {
		word |= mFlag
	}
	withSRID := top && g.SRID() != geom.UnknownSRID
	if withSRID {
		word |= sridFlag
	}
	dst = wire.AppendUint32(dst, order, word)
	if withSRID {
		dst = wire.AppendUint32(dst, order, uint32(g.SRID()))
	}

	switch g := g.(type) {
	case geom.Point:
		if g.IsEmpty() {
			for range g.Layout().Stride() {
				dst = wire.AppendFloat64(dst, order, emptyOrdinate)
			}
			return dst
		}
		return appendCoord(dst, g.Coord(), order)
	case geom.LineString:
		dst = wire.AppendUint32(dst, order, uint32(g.NumCoords()))
		for c := range g.Coords() {
			dst = appendCoord(dst, c, order)
		}
	case geom.Polygon:
		dst = wire.AppendUint32(dst, order, uint32(g.NumRings()))
		for r := range g.Rings() {
			dst = wire.AppendUint32(dst, order, uint32(len(r)))
			for _, c := range r {
				dst = appendCoord(dst, c, order)
			}
		}
	case geom.MultiPoint:
		dst = wire.AppendUint32(dst, order, uint32(g.NumPoints()))
		for p := range g.Points() {
			dst = appendGeometry(dst, p, order, false)
		}
	case geom.MultiLineString:
		dst = wire.AppendUint32(dst, order, uint32(g.NumLineStrings()))
		for ls := range g.LineStrings() {
			dst = appendGeometry(dst, ls, order, false)
		}
	case geom.MultiPolygon:
		dst = wire.AppendUint32(dst, order, uint32(g.NumPolygons()))
		for p := range g.Polygons() {
			dst = appendGeometry(dst, p, order, false)
		}
	case geom.GeometryCollection:
		dst = wire.AppendUint32(dst, order, uint32(g.NumGeometries()))
		for m := range g.Geometries() {
			dst = appendGeometry(dst, m, order, false)
		}
	}
	return dst
}

func appendCoord(dst []byte, c geom.Coord, order ByteOrder) []byte {
	for _, v := range c {
		dst = wire.AppendFloat64(dst, order, v)
	}
	return dst
}
