package ewkb

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/wire"
)

// Decode parses one EWKB geometry from b. Trailing bytes are ignored.
func Decode(b []byte, opts ...Option) (geom.Geometry, error) {
	return Read(wire.NewReader(b), opts...)
}

// Read parses one EWKB geometry at the cursor and leaves the cursor after it.
func Read(r *wire.Reader, opts ...Option) (geom.Geometry, error) {
	d := decoder{r: r, opts: newOptions(opts)}
	h, err := d.header()
	if err != nil {
		return nil, err
	}
	g, err := d.body(h, 0)
	if err != nil {
		return nil, err
	}
	if h.srid != geom.UnknownSRID {
		g = geom.WithSRID(g, h.srid)
	}
	return g, nil
}

type header struct {
	offset int
	order  ByteOrder
	typ    geom.Type
	layout geom.Layout
	srid   geom.SRID
}

type decoder struct {
	r    *wire.Reader
	opts options
}

func (d *decoder) header() (header, error) {
	h := header{offset: d.r.Offset()}
	marker, err := d.r.Byte("byte order")
	if err != nil {
		return h, err
	}
	switch marker {
	case xdrMarker:
		h.order = XDR
	case ndrMarker:
		h.order = NDR
	default:
		return h, errors.Wrapf(geom.ErrInvalidByteOrder,
			"offset %d: byte order marker %d, expected 0 or 1", h.offset, marker)
	}

	word, err := d.r.Uint32(h.order, "type word")
	if err != nil {
		return h, err
	}
	hasZ := word&zFlag != 0
	hasM := word&mFlag != 0
	code := word &^ flagMask
	// ISO WKB spells dimensions as a thousands offset on the type code.
	if code >= 1000 && code < 4000 {
		dim := code / 1000
		code %= 1000
		hasZ = hasZ || dim == 1 || dim == 3
		hasM = hasM || dim == 2 || dim == 3
	}
	h.typ = geom.Type(code)
	if !h.typ.Valid() {
		return h, errors.Wrapf(geom.ErrInvalidType,
			"offset %d: type code %d, expected 1..7", h.offset+1, code)
	}
	h.layout = geom.LayoutOf(hasZ, hasM)

	if word&sridFlag != 0 {
		srid, err := d.r.Uint32(h.order, "srid")
		if err != nil {
			return h, err
		}
		h.srid = geom.SRID(int32(srid))
	}
	return h, nil
}

func (d *decoder) body(h header, depth int) (geom.Geometry, error) {
	if depth > d.opts.maxDepth {
		return nil, errors.Wrapf(geom.ErrMaxDepth,
			"offset %d: nesting depth %d exceeds limit %d", h.offset, depth, d.opts.maxDepth)
	}
	switch h.typ {
	case geom.PointType:
		c, err := d.coords(h, 1)
		if err != nil {
			return nil, err
		}
		if allNaN(c[0]) {
			return geom.NewPointEmpty(h.layout), nil
		}
		return geom.NewPoint(h.layout, c[0]), nil
	case geom.LineStringType:
		n, err := d.count(h, "point count", h.layout.Stride()*8)
		if err != nil {
			return nil, err
		}
		c, err := d.coords(h, n)
		if err != nil {
			return nil, err
		}
		return geom.NewLineString(h.layout, c...), nil
	case geom.PolygonType:
		rings, err := d.rings(h)
		if err != nil {
			return nil, err
		}
		return geom.NewPolygon(h.layout, rings...), nil
	case geom.MultiPointType:
		members, err := d.members(h, depth, geom.PointType)
		if err != nil {
			return nil, err
		}
		points := make([]geom.Point, len(members))
		for i, m := range members {
			points[i] = m.(geom.Point)
		}
		return geom.NewMultiPoint(h.layout, points...), nil
	case geom.MultiLineStringType:
		members, err := d.members(h, depth, geom.LineStringType)
		if err != nil {
			return nil, err
		}
		lines := make([]geom.LineString, len(members))
		for i, m := range members {
			lines[i] = m.(geom.LineString)
		}
		return geom.NewMultiLineString(h.layout, lines...), nil
	case geom.MultiPolygonType:
		members, err := d.members(h, depth, geom.PolygonType)
		if err != nil {
			return nil, err
		}
		polygons := make([]geom.Polygon, len(members))
		for i, m := range members {
			polygons[i] = m.(geom.Polygon)
		}
		return geom.NewMultiPolygon(h.layout, polygons...), nil
	default:
		members, err := d.members(h, depth, 0)
		if err != nil {
			return nil, err
		}
		return geom.NewGeometryCollection(h.layout, members...), nil
	}
}

// count reads an element count and rejects counts the remaining input
// cannot possibly hold, so a corrupt count never drives a huge allocation.
func (d *decoder) count(h header, field string, minSize int) (int, error) {
	off := d.r.Offset()
	n, err := d.r.Uint32(h.order, field)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(d.r.Len()) {
		return 0, errors.Wrapf(geom.ErrUnexpectedEOF,
			"offset %d: %s %d needs at least %d bytes, have %d", off, field, n, uint64(n)*uint64(minSize), d.r.Len())
	}
	return int(n), nil
}

func (d *decoder) coords(h header, n int) ([]geom.Coord, error) {
	stride := h.layout.Stride()
	flat := make([]float64, n*stride)
	coords := make([]geom.Coord, n)
	for i := range coords {
		c := flat[i*stride : (i+1)*stride : (i+1)*stride]
		for j := range c {
			v, err := d.r.Float64(h.order, "ordinate")
			if err != nil {
				return nil, err
			}
			c[j] = v
		}
		coords[i] = c
	}
	return coords, nil
}

func (d *decoder) rings(h header) ([]geom.Ring, error) {
	nr, err := d.count(h, "ring count", 4)
	if err != nil {
		return nil, err
	}
	rings := make([]geom.Ring, nr)
	for i := range rings {
		off := d.r.Offset()
		n, err := d.count(h, "ring point count", h.layout.Stride()*8)
		if err != nil {
			return nil, err
		}
		c, err := d.coords(h, n)
		if err != nil {
			return nil, err
		}
		r := geom.Ring(c)
		if !r.IsClosed() {
			return nil, errors.Wrapf(geom.ErrUnclosedRing,
				"offset %d: ring %d has %d points, expected a closed ring of at least 4", off, i, n)
		}
		rings[i] = r
	}
	return rings, nil
}

func (d *decoder) members(h header, depth int, want geom.Type) ([]geom.Geometry, error) {
	// smallest member: byte order, type word and an empty count
	n, err := d.count(h, "member count", 9)
	if err != nil {
		return nil, err
	}
	members := make([]geom.Geometry, n)
	for i := range members {
		mh, err := d.header()
		if err != nil {
			return nil, err
		}
		if want != 0 && mh.typ != want {
			return nil, errors.Wrapf(geom.ErrInvalidType,
				"offset %d: %s member %d is a %s, expected %s", mh.offset, h.typ, i, mh.typ, want)
		}
		if mh.layout != h.layout {
			return nil, errors.Wrapf(geom.ErrInconsistentDimensionality,
				"offset %d: %s member %d declares %s, collection declares %s", mh.offset, h.typ, i, mh.layout, h.layout)
		}
		if members[i], err = d.body(mh, depth+1); err != nil {
			return nil, err
		}
	}
	return members, nil
}

func allNaN(c geom.Coord) bool {
	for _, v := range c {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}
