// Package wire holds the byte-level primitives shared by the geometry codecs:
// a bounds-checked cursor for reading and append-style writers.
package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/samirrijal/geowire/internal/pkg/geom"
)

// Reader is a cursor over an in-memory buffer. Every read reports the
// offset it failed at.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Len is the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.off }

// Remaining returns the unread bytes without consuming them.
func (r *Reader) Remaining() []byte { return r.buf[r.off:] }

func (r *Reader) need(n int, field string) error {
	if r.Len() < n {
		return errors.Wrapf(geom.ErrUnexpectedEOF,
			"offset %d: reading %s: need %d bytes, have %d", r.off, field, n, r.Len())
	}
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int, field string) error {
	if err := r.need(n, field); err != nil {
		return err
	}
	r.off += n
	return nil
}

func (r *Reader) Byte(field string) (byte, error) {
	if err := r.need(1, field); err != nil {
		return 0, err
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *Reader) Uint32(order binary.ByteOrder, field string) (uint32, error) {
	if err := r.need(4, field); err != nil {
		return 0, err
	}
	v := order.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) Float64(order binary.ByteOrder, field string) (float64, error) {
	if err := r.need(8, field); err != nil {
		return 0, err
	}
	v := math.Float64frombits(order.Uint64(r.buf[r.off:]))
	r.off += 8
	return v, nil
}

// Uvarint reads an unsigned LEB128 varint.
func (r *Reader) Uvarint(field string) (uint64, error) {
	v, n := protowire.ConsumeVarint(r.buf[r.off:])
	if n < 0 {
		if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
			return 0, errors.Wrapf(geom.ErrUnexpectedEOF,
				"offset %d: reading %s: varint runs past end of input", r.off, field)
		}
		return 0, errors.Wrapf(geom.ErrVarintOverflow,
			"offset %d: reading %s: varint exceeds 64 bits", r.off, field)
	}
	r.off += n
	return v, nil
}

// Varint reads a zig-zag encoded signed varint.
func (r *Reader) Varint(field string) (int64, error) {
	v, err := r.Uvarint(field)
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func AppendUint32(dst []byte, order binary.AppendByteOrder, v uint32) []byte {
	return order.AppendUint32(dst, v)
}

func AppendFloat64(dst []byte, order binary.AppendByteOrder, v float64) []byte {
	return order.AppendUint64(dst, math.Float64bits(v))
}

func AppendUvarint(dst []byte, v uint64) []byte {
	return protowire.AppendVarint(dst, v)
}

// AppendVarint zig-zag encodes v and appends it as a varint.
func AppendVarint(dst []byte, v int64) []byte {
	return protowire.AppendVarint(dst, protowire.EncodeZigZag(v))
}

// SizeUvarint returns the encoded length of v.
func SizeUvarint(v uint64) int {
	return protowire.SizeVarint(v)
}
