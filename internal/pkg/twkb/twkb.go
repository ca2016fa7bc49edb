// Package twkb reads and writes Tiny Well-Known Binary, the compact
// delta and varint encoded geometry format produced by PostGIS ST_AsTWKB.
package twkb

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/wire"
)

// Metadata bits following the type and precision byte.
const (
	flagBBox   byte = 0x01
	flagSize   byte = 0x02
	flagIDList byte = 0x04
	flagExt    byte = 0x08
	flagEmpty  byte = 0x10
)

// Precision limits. The XY precision shares a nibble with the type code;
// Z and M precisions get three bits each in the extended byte.
const (
	MinPrecision    = -8
	MaxPrecision    = 7
	MaxExtPrecision = 7

	// quantized values and deltas must stay within this magnitude
	maxQuantized = 1 << 62
)

// Info describes the optional blocks found on a decoded geometry.
type Info struct {
	Precision  int
	ZPrecision int
	MPrecision int
	// Size is the byte count that followed the size prefix, or -1.
	Size int
	// BBox is the decoded bounding box, or nil when absent.
	BBox *geom.Bounds
	IDs  []int64
}

type options struct {
	zPrecision int
	mPrecision int
	size       bool
	bbox       bool
	ids        []int64
	maxDepth   int
}

// Option configures Encode and Decode.
type Option func(*options)

// WithZPrecision sets the decimal precision of Z ordinates.
func WithZPrecision(p int) Option {
	return func(o *options) { o.zPrecision = p }
}

// WithMPrecision sets the decimal precision of M ordinates.
func WithMPrecision(p int) Option {
	return func(o *options) { o.mPrecision = p }
}

// WithSize writes a size prefix so readers can skip the geometry unparsed.
func WithSize() Option {
	return func(o *options) { o.size = true }
}

// WithBBox writes a bounding box block.
func WithBBox() Option {
	return func(o *options) { o.bbox = true }
}

// WithIDs writes an id list on a top level multi geometry or collection.
// There must be one id per member.
func WithIDs(ids ...int64) Option {
	return func(o *options) { o.ids = ids }
}

// WithMaxDepth limits how deeply collections may nest.
func WithMaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

func newOptions(opts []Option) options {
	o := options{maxDepth: geom.DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// precisions holds the per-ordinate decimal precision in stride order.
type precisions struct {
	xy, z, m int
	layout   geom.Layout
}

func (p precisions) scales() []float64 {
	s := make([]float64, 0, 4)
	s = append(s, math.Pow10(p.xy), math.Pow10(p.xy))
	if p.layout.HasZ() {
		s = append(s, math.Pow10(p.z))
	}
	if p.layout.HasM() {
		s = append(s, math.Pow10(p.m))
	}
	return s
}

// deltaState carries the previous quantized value of each ordinate. A fresh
// state starts every TWKB geometry, and it runs on across rings and the
// parts of a multi geometry.
type deltaState [4]int64

// Skip returns the byte length of the first geometry in b. A size prefix is
// used when present; otherwise the geometry is parsed in full.
func Skip(b []byte) (int, error) {
	r := wire.NewReader(b)
	if _, err := r.Byte("type and precision"); err != nil {
		return 0, err
	}
	meta, err := r.Byte("metadata")
	if err != nil {
		return 0, err
	}
	if meta&flagExt != 0 {
		if _, err := r.Byte("extended dimensions"); err != nil {
			return 0, err
		}
	}
	if meta&flagSize != 0 {
		off := r.Offset()
		size, err := r.Uvarint("size")
		if err != nil {
			return 0, err
		}
		if size > uint64(r.Len()) {
			return 0, errors.Wrapf(geom.ErrUnexpectedEOF,
				"offset %d: size prefix %d, have %d bytes", off, size, r.Len())
		}
		return r.Offset() + int(size), nil
	}

	r = wire.NewReader(b)
	if _, err := Read(r); err != nil {
		return 0, err
	}
	return r.Offset(), nil
}
