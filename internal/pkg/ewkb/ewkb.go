// Package ewkb reads and writes the PostGIS extended well-known binary
// geometry format.
package ewkb

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/samirrijal/geowire/internal/pkg/geom"
)

// ByteOrder is satisfied by binary.LittleEndian and binary.BigEndian.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

var (
	// NDR is little-endian, byte order marker 1.
	NDR ByteOrder = binary.LittleEndian
	// XDR is big-endian, byte order marker 0.
	XDR ByteOrder = binary.BigEndian
)

const (
	xdrMarker = 0
	ndrMarker = 1

	zFlag    uint32 = 0x80000000
	mFlag    uint32 = 0x40000000
	sridFlag uint32 = 0x20000000
	flagMask        = zFlag | mFlag | sridFlag
)

type options struct {
	maxDepth int
}

// Option configures Decode and Encode.
type Option func(*options)

// WithMaxDepth limits how deeply collections may nest.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

func newOptions(opts []Option) options {
	o := options{maxDepth: geom.DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ParseByteOrder maps "ndr"/"little" and "xdr"/"big" to a byte order.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(s) {
	case "ndr", "little", "le", "":
		return NDR, nil
	case "xdr", "big", "be":
		return XDR, nil
	}
	return nil, errors.Wrapf(geom.ErrInvalidByteOrder, "unknown byte order %q", s)
}

// DecodeHex decodes the hex text form PostGIS prints for geometry values.
func DecodeHex(s string, opts ...Option) (geom.Geometry, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode ewkb hex")
	}
	return Decode(b, opts...)
}

// EncodeHex returns the upper-case hex form of the EWKB encoding of g.
func EncodeHex(g geom.Geometry, order ByteOrder, opts ...Option) (string, error) {
	b, err := Encode(g, order, opts...)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
