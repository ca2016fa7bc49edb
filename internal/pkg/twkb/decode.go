package twkb

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/wire"
)

// Decode parses one TWKB geometry from b. Trailing bytes are ignored.
func Decode(b []byte, opts ...Option) (geom.Geometry, error) {
	return Read(wire.NewReader(b), opts...)
}

// DecodeWithInfo is Decode that also reports the top level precision,
// size prefix, bounding box and id list.
func DecodeWithInfo(b []byte, opts ...Option) (geom.Geometry, Info, error) {
	d := decoder{r: wire.NewReader(b), opts: newOptions(opts)}
	return d.geometry(0, nil)
}

// Read parses one TWKB geometry at the cursor and leaves the cursor after it.
func Read(r *wire.Reader, opts ...Option) (geom.Geometry, error) {
	d := decoder{r: r, opts: newOptions(opts)}
	g, _, err := d.geometry(0, nil)
	return g, err
}

type header struct {
	offset int
	typ    geom.Type
	meta   byte
	prec   precisions
	scales []float64
}

type decoder struct {
	r    *wire.Reader
	opts options
}

// geometry reads a complete TWKB geometry. parent is the enclosing
// collection's layout, or nil at top level.
func (d *decoder) geometry(depth int, parent *geom.Layout) (geom.Geometry, Info, error) {
	info := Info{Size: -1}
	h, err := d.header()
	if err != nil {
		return nil, info, err
	}
	if parent != nil && h.prec.layout != *parent {
		return nil, info, errors.Wrapf(geom.ErrInconsistentDimensionality,
			"offset %d: member declares %s, collection declares %s", h.offset, h.prec.layout, *parent)
	}
	if depth > d.opts.maxDepth {
		return nil, info, errors.Wrapf(geom.ErrMaxDepth,
			"offset %d: nesting depth %d exceeds limit %d", h.offset, depth, d.opts.maxDepth)
	}
	info.Precision, info.ZPrecision, info.MPrecision = h.prec.xy, h.prec.z, h.prec.m

	if h.meta&flagSize != 0 {
		off := d.r.Offset()
		size, err := d.r.Uvarint("size")
		if err != nil {
			return nil, info, err
		}
		if size > uint64(d.r.Len()) {
			return nil, info, errors.Wrapf(geom.ErrUnexpectedEOF,
				"offset %d: size prefix %d, have %d bytes", off, size, d.r.Len())
		}
		info.Size = int(size)
	}
	start := d.r.Offset()
	g, err := d.body(depth, h, &info)
	if err != nil {
		return nil, info, err
	}
	if used := d.r.Offset() - start; info.Size >= 0 && used != info.Size {
		return nil, info, errors.Wrapf(geom.ErrSizeMismatch,
			"offset %d: size prefix %d, geometry used %d bytes", h.offset, info.Size, used)
	}
	return g, info, nil
}

// body reads everything after the size prefix: the bounding box, id list
// and coordinates.
func (d *decoder) body(depth int, h header, info *Info) (geom.Geometry, error) {
	if h.meta&flagBBox != 0 {
		bbox, err := d.bbox(h)
		if err != nil {
			return nil, err
		}
		info.BBox = &bbox
	}
	if h.meta&flagEmpty != 0 {
		return empty(h.typ, h.prec.layout), nil
	}

	var st deltaState
	l := h.prec.layout
	switch h.typ {
	case geom.PointType:
		c, err := d.coords(h, &st, 1)
		if err != nil {
			return nil, err
		}
		return geom.NewPoint(l, c[0]), nil
	case geom.LineStringType:
		ls, err := d.lineString(h, &st)
		return ls, err
	case geom.PolygonType:
		p, err := d.polygon(h, &st)
		return p, err
	}

	n, err := d.count("member count", 1)
	if err != nil {
		return nil, err
	}
	if h.meta&flagIDList != 0 {
		if info.IDs, err = d.ids(n); err != nil {
			return nil, err
		}
	}
	if n > 0 && depth+1 > d.opts.maxDepth {
		return nil, errors.Wrapf(geom.ErrMaxDepth,
			"offset %d: nesting depth %d exceeds limit %d", d.r.Offset(), depth+1, d.opts.maxDepth)
	}

	switch h.typ {
	case geom.MultiPointType:
		c, err := d.coords(h, &st, n)
		if err != nil {
			return nil, err
		}
		points := make([]geom.Point, n)
		for i := range points {
			points[i] = geom.NewPoint(l, c[i])
		}
		return geom.NewMultiPoint(l, points...), nil
	case geom.MultiLineStringType:
		lines := make([]geom.LineString, n)
		for i := range lines {
			if lines[i], err = d.lineString(h, &st); err != nil {
				return nil, err
			}
		}
		return geom.NewMultiLineString(l, lines...), nil
	case geom.MultiPolygonType:
		polygons := make([]geom.Polygon, n)
		for i := range polygons {
			if polygons[i], err = d.polygon(h, &st); err != nil {
				return nil, err
			}
		}
		return geom.NewMultiPolygon(l, polygons...), nil
	default:
		members := make([]geom.Geometry, n)
		for i := range members {
			if members[i], _, err = d.geometry(depth+1, &l); err != nil {
				return nil, err
			}
		}
		return geom.NewGeometryCollection(l, members...), nil
	}
}

func (d *decoder) header() (header, error) {
	h := header{offset: d.r.Offset()}
	b, err := d.r.Byte("type and precision")
	if err != nil {
		return h, err
	}
	h.typ = geom.Type(b & 0x0f)
	if !h.typ.Valid() {
		return h, errors.Wrapf(geom.ErrInvalidType,
			"offset %d: type code %d, expected 1..7", h.offset, b&0x0f)
	}
	h.prec.xy = int(protowire.DecodeZigZag(uint64(b >> 4)))

	if h.meta, err = d.r.Byte("metadata"); err != nil {
		return h, err
	}
	if h.meta&flagExt != 0 {
		ext, err := d.r.Byte("extended dimensions")
		if err != nil {
			return h, err
		}
		h.prec.layout = geom.LayoutOf(ext&0x01 != 0, ext&0x02 != 0)
		h.prec.z = int(ext>>2) & 0x07
		h.prec.m = int(ext>>5) & 0x07
	}
	h.scales = h.prec.scales()
	return h, nil
}

func (d *decoder) bbox(h header) (geom.Bounds, error) {
	b := geom.NewBounds(h.prec.layout)
	stride := len(h.scales)
	b.Min = make(geom.Coord, stride)
	b.Max = make(geom.Coord, stride)
	for i, s := range h.scales {
		lo, err := d.r.Varint("bbox minimum")
		if err != nil {
			return b, err
		}
		delta, err := d.r.Varint("bbox extent")
		if err != nil {
			return b, err
		}
		b.Min[i] = float64(lo) / s
		b.Max[i] = float64(lo+delta) / s
	}
	return b, nil
}

func (d *decoder) ids(n int) ([]int64, error) {
	ids := make([]int64, n)
	for i := range ids {
		id, err := d.r.Varint("id")
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// count reads an element count and rejects counts the remaining input
// cannot hold at minSize bytes per element.
func (d *decoder) count(field string, minSize int) (int, error) {
	off := d.r.Offset()
	n, err := d.r.Uvarint(field)
	if err != nil {
		return 0, err
	}
	if n > uint64(d.r.Len()/minSize) {
		return 0, errors.Wrapf(geom.ErrUnexpectedEOF,
			"offset %d: %s %d needs at least %d bytes per element, have %d", off, field, n, minSize, d.r.Len())
	}
	return int(n), nil
}

func (d *decoder) coords(h header, st *deltaState, n int) ([]geom.Coord, error) {
	stride := len(h.scales)
	flat := make([]float64, n*stride)
	coords := make([]geom.Coord, n)
	for i := range coords {
		c := flat[i*stride : (i+1)*stride : (i+1)*stride]
		for j, s := range h.scales {
			off := d.r.Offset()
			delta, err := d.r.Varint("ordinate delta")
			if err != nil {
				return nil, err
			}
			v := st[j] + delta
			if (delta > 0 && v < st[j]) || (delta < 0 && v > st[j]) {
				return nil, errors.Wrapf(geom.ErrVarintOverflow,
					"offset %d: delta %d overflows running value %d", off, delta, st[j])
			}
			st[j] = v
			c[j] = float64(v) / s
		}
		coords[i] = c
	}
	return coords, nil
}

func (d *decoder) lineString(h header, st *deltaState) (geom.LineString, error) {
	n, err := d.count("point count", len(h.scales))
	if err != nil {
		return geom.LineString{}, err
	}
	c, err := d.coords(h, st, n)
	if err != nil {
		return geom.LineString{}, err
	}
	return geom.NewLineString(h.prec.layout, c...), nil
}

func (d *decoder) polygon(h header, st *deltaState) (geom.Polygon, error) {
	nr, err := d.count("ring count", 1)
	if err != nil {
		return geom.Polygon{}, err
	}
	rings := make([]geom.Ring, nr)
	for i := range rings {
		off := d.r.Offset()
		n, err := d.count("ring point count", len(h.scales))
		if err != nil {
			return geom.Polygon{}, err
		}
		c, err := d.coords(h, st, n)
		if err != nil {
			return geom.Polygon{}, err
		}
		r := geom.Ring(c)
		if !r.IsClosed() {
			return geom.Polygon{}, errors.Wrapf(geom.ErrUnclosedRing,
				"offset %d: ring %d has %d points, expected a closed ring of at least 4", off, i, n)
		}
		rings[i] = r
	}
	return geom.NewPolygon(h.prec.layout, rings...), nil
}

func empty(t geom.Type, l geom.Layout) geom.Geometry {
	switch t {
	case geom.PointType:
		return geom.NewPointEmpty(l)
	case geom.LineStringType:
		return geom.NewLineString(l)
	case geom.PolygonType:
		return geom.NewPolygon(l)
	case geom.MultiPointType:
		return geom.NewMultiPoint(l)
	case geom.MultiLineStringType:
		return geom.NewMultiLineString(l)
	case geom.MultiPolygonType:
		return geom.NewMultiPolygon(l)
	}
	return geom.NewGeometryCollection(l)
}
