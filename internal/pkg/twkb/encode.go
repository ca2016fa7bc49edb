package twkb

import (
	"iter"
	"math"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/wire"
)

// Encode returns the TWKB encoding of g with XY ordinates rounded to
// precision decimal digits. TWKB has no SRID; it is dropped.
func Encode(g geom.Geometry, precision int, opts ...Option) ([]byte, error) {
	return Append(nil, g, precision, opts...)
}

// Append appends the TWKB encoding of g to dst. On error dst is returned
// unchanged.
func Append(dst []byte, g geom.Geometry, precision int, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	if precision < MinPrecision || precision > MaxPrecision {
		return dst, errors.Wrapf(geom.ErrUnsupportedPrecision,
			"precision %d, expected %d..%d", precision, MinPrecision, MaxPrecision)
	}
	for _, p := range []int{o.zPrecision, o.mPrecision} {
		if p < 0 || p > MaxExtPrecision {
			return dst, errors.Wrapf(geom.ErrUnsupportedPrecision,
				"z/m precision %d, expected 0..%d", p, MaxExtPrecision)
		}
	}
	if err := geom.ValidateDepth(g, o.maxDepth); err != nil {
		return dst, err
	}
	if o.ids != nil {
		if n := memberCount(g); n < 0 || n != len(o.ids) {
			return dst, errors.Wrapf(geom.ErrUnsupported,
				"%d ids for a %s with %d members", len(o.ids), g.Type(), max(n, 0))
		}
	}

	e := encoder{opts: o, prec: precisions{
		xy:     precision,
		z:      o.zPrecision,
		m:      o.mPrecision,
		layout: g.Layout(),
	}}
	e.scales = e.prec.scales()
	out, err := e.geometry(dst, g, o.ids)
	if err != nil {
		return dst, err
	}
	return out, nil
}

type encoder struct {
	opts   options
	prec   precisions
	scales []float64
}

func (e *encoder) geometry(dst []byte, g geom.Geometry, ids []int64) ([]byte, error) {
	empty := g.IsEmpty()
	meta := byte(0)
	var bounds geom.Bounds
	if e.opts.bbox && !empty {
		// a collection of empty members has no extent to record
		if bounds = geom.ComputeBounds(g); !bounds.IsEmpty() {
			meta |= flagBBox
		}
	}
	if e.opts.size {
		meta |= flagSize
	}
	if len(ids) > 0 {
		meta |= flagIDList
	}
	if e.prec.layout != geom.XY {
		meta |= flagExt
	}
	if empty {
		meta |= flagEmpty
	}

	dst = append(dst, byte(g.Type())|byte(protowire.EncodeZigZag(int64(e.prec.xy)))<<4, meta)
	if meta&flagExt != 0 {
		ext := byte(e.prec.z&0x07)<<2 | byte(e.prec.m&0x07)<<5
		if e.prec.layout.HasZ() {
			ext |= 0x01
		}
		if e.prec.layout.HasM() {
			ext |= 0x02
		}
		dst = append(dst, ext)
	}

	start := len(dst)
	var err error
	if meta&flagBBox != 0 {
		if dst, err = e.bbox(dst, bounds); err != nil {
			return nil, err
		}
	}
	if !empty {
		if dst, err = e.body(dst, g, ids); err != nil {
			return nil, err
		}
	}
	if meta&flagSize != 0 {
		dst = insertSize(dst, start)
	}
	return dst, nil
}

func (e *encoder) body(dst []byte, g geom.Geometry, ids []int64) ([]byte, error) {
	var st deltaState
	var err error
	switch g := g.(type) {
	case geom.Point:
		return e.coord(dst, &st, g.Coord())
	case geom.LineString:
		return e.coords(dst, &st, g.Coords(), g.NumCoords())
	case geom.Polygon:
		return e.polygon(dst, &st, g)
	case geom.MultiPoint:
		dst = e.members(dst, g.NumPoints(), ids)
		for i := range g.NumPoints() {
			p := g.Point(i)
			if p.IsEmpty() {
				return nil, emptyMember(g, i)
			}
			if dst, err = e.coord(dst, &st, p.Coord()); err != nil {
				return nil, err
			}
		}
	case geom.MultiLineString:
		dst = e.members(dst, g.NumLineStrings(), ids)
		for i := range g.NumLineStrings() {
			ls := g.LineString(i)
			if ls.IsEmpty() {
				return nil, emptyMember(g, i)
			}
			if dst, err = e.coords(dst, &st, ls.Coords(), ls.NumCoords()); err != nil {
				return nil, err
			}
		}
	case geom.MultiPolygon:
		dst = e.members(dst, g.NumPolygons(), ids)
		for i := range g.NumPolygons() {
			p := g.Polygon(i)
			if p.IsEmpty() {
				return nil, emptyMember(g, i)
			}
			if dst, err = e.polygon(dst, &st, p); err != nil {
				return nil, err
			}
		}
	case geom.GeometryCollection:
		dst = e.members(dst, g.NumGeometries(), ids)
		for m := range g.Geometries() {
			// members are complete geometries with a fresh delta state
			if dst, err = e.geometry(dst, m, nil); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}

func (e *encoder) members(dst []byte, n int, ids []int64) []byte {
	dst = wire.AppendUvarint(dst, uint64(n))
	for _, id := range ids {
		dst = wire.AppendVarint(dst, id)
	}
	return dst
}

func (e *encoder) polygon(dst []byte, st *deltaState, p geom.Polygon) ([]byte, error) {
	dst = wire.AppendUvarint(dst, uint64(p.NumRings()))
	var err error
	for r := range p.Rings() {
		dst = wire.AppendUvarint(dst, uint64(len(r)))
		for _, c := range r {
			if dst, err = e.coord(dst, st, c); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}

func (e *encoder) coords(dst []byte, st *deltaState, seq iter.Seq[geom.Coord], n int) ([]byte, error) {
	dst = wire.AppendUvarint(dst, uint64(n))
	var err error
	for c := range seq {
		if dst, err = e.coord(dst, st, c); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (e *encoder) coord(dst []byte, st *deltaState, c geom.Coord) ([]byte, error) {
	for j, s := range e.scales {
		q, ok := quantize(c[j], s)
		if !ok {
			return nil, errors.Wrapf(geom.ErrVarintOverflow,
				"ordinate %d value %v does not fit at scale %g", j, c[j], s)
		}
		// both terms are within 2^62, so the difference cannot wrap
		dst = wire.AppendVarint(dst, q-st[j])
		st[j] = q
	}
	return dst, nil
}

func (e *encoder) bbox(dst []byte, b geom.Bounds) ([]byte, error) {
	for j, s := range e.scales {
		lo, ok := quantize(b.Min[j], s)
		hi, ok2 := quantize(b.Max[j], s)
		if !ok || !ok2 {
			return nil, errors.Wrapf(geom.ErrVarintOverflow,
				"bounding box ordinate %d does not fit at scale %g", j, s)
		}
		dst = wire.AppendVarint(dst, lo)
		dst = wire.AppendVarint(dst, hi-lo)
	}
	return dst, nil
}

// insertSize shifts dst[start:] right and writes its length as a uvarint
// at start.
func insertSize(dst []byte, start int) []byte {
	size := uint64(len(dst) - start)
	n := wire.SizeUvarint(size)
	dst = append(dst, make([]byte, n)...)
	copy(dst[start+n:], dst[start:len(dst)-n])
	wire.AppendUvarint(dst[start:start], size)
	return dst
}

// quantize scales v to the nearest integer at scale s. It fails for NaN,
// infinities and magnitudes beyond 2^62.
func quantize(v, s float64) (int64, bool) {
	q := math.Round(v * s)
	if math.IsNaN(q) || q > maxQuantized || q < -maxQuantized {
		return 0, false
	}
	return int64(q), true
}

func memberCount(g geom.Geometry) int {
	switch g := g.(type) {
	case geom.MultiPoint:
		return g.NumPoints()
	case geom.MultiLineString:
		return g.NumLineStrings()
	case geom.MultiPolygon:
		return g.NumPolygons()
	case geom.GeometryCollection:
		return g.NumGeometries()
	}
	return -1
}

func emptyMember(g geom.Geometry, i int) error {
	return errors.Wrapf(geom.ErrUnsupported,
		"%s member %d is empty; TWKB cannot encode empty parts", g.Type(), i)
}
