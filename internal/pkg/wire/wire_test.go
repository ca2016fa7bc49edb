package wire_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/wire"
)

func TestVarint(t *testing.T) {
	tests := []struct {
		v   int64
		enc []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x01}},
		{1, []byte{0x02}},
		{-2, []byte{0x03}},
		{63, []byte{0x7e}},
		{-64, []byte{0x7f}},
		{64, []byte{0x80, 0x01}},
		{math.MaxInt64, []byte{0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
		{math.MinInt64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}

	for _, test := range tests {
		got := wire.AppendVarint(nil, test.v)
		require.Equal(t, test.enc, got)

		r := wire.NewReader(got)
		v, err := r.Varint("value")
		require.NoError(t, err)
		require.Equal(t, test.v, v)
		require.Zero(t, r.Len())
	}
}

func TestUvarintErrors(t *testing.T) {
	_, err := wire.NewReader([]byte{0x80, 0x80}).Uvarint("size")
	require.True(t, errors.Is(err, geom.ErrUnexpectedEOF), "got %v", err)

	overflow := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}
	_, err = wire.NewReader(overflow).Uvarint("size")
	require.True(t, errors.Is(err, geom.ErrVarintOverflow), "got %v", err)
}

func TestFixedWidth(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		buf := wire.AppendUint32(nil, order.(binary.AppendByteOrder), 0x20000001)
		buf = wire.AppendFloat64(buf, order.(binary.AppendByteOrder), -0.5)

		r := wire.NewReader(buf)
		u, err := r.Uint32(order, "type")
		require.NoError(t, err)
		require.Equal(t, uint32(0x20000001), u)
		f, err := r.Float64(order, "x")
		require.NoError(t, err)
		require.Equal(t, -0.5, f)
		require.Equal(t, 12, r.Offset())

		_, err = r.Byte("order")
		require.True(t, errors.Is(err, geom.ErrUnexpectedEOF))
		require.Contains(t, err.Error(), "offset 12")
	}
}

func TestTruncatedFloat(t *testing.T) {
	r := wire.NewReader([]byte{1, 2, 3})
	_, err := r.Float64(binary.LittleEndian, "y")
	require.True(t, errors.Is(err, geom.ErrUnexpectedEOF))
	require.Contains(t, err.Error(), "need 8 bytes, have 3")
	require.Zero(t, r.Offset())
}
