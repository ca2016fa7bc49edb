package twkb_test

import (
	"encoding/hex"
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/geom/geomtest"
	"github.com/samirrijal/geowire/internal/pkg/twkb"
	"github.com/samirrijal/geowire/internal/pkg/wire"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestGolden(t *testing.T) {
	tests := []struct {
		name      string
		g         geom.Geometry
		precision int
		opts      []twkb.Option
		hex       string
	}{
		{
			name: "point",
			g:    geom.NewPoint(geom.XY, geom.Coord{1, 2}),
			hex:  "01000204",
		},
		{
			name: "linestring",
			g:    geom.NewLineString(geom.XY, geom.Coord{1, 1}, geom.Coord{5, 5}),
			hex:  "02000202020808",
		},
		{
			name:      "point precision 2",
			g:         geom.NewPoint(geom.XY, geom.Coord{1.23, 4.56}),
			precision: 2,
			hex:       "4100f6019007",
		},
		{
			name: "point z",
			g:    geom.NewPoint(geom.XYZ, geom.Coord{1, 2, 3}),
			hex:  "010801020406",
		},
		{
			name: "point empty",
			g:    geom.NewPointEmpty(geom.XY),
			hex:  "0110",
		},
		{
			name: "linestring size",
			g:    geom.NewLineString(geom.XY, geom.Coord{1, 1}, geom.Coord{5, 5}),
			opts: []twkb.Option{twkb.WithSize()},
			hex:  "0202050202020808",
		},
		{
			name: "linestring bbox",
			g:    geom.NewLineString(geom.XY, geom.Coord{1, 1}, geom.Coord{5, 5}),
			opts: []twkb.Option{twkb.WithBBox()},
			hex:  "0201020802080202020808",
		},
		{
			name: "multipoint deltas run across members",
			g: geom.NewMultiPoint(geom.XY,
				geom.NewPoint(geom.XY, geom.Coord{1, 1}),
				geom.NewPoint(geom.XY, geom.Coord{3, 3}),
			),
			hex: "04000202020404",
		},
		{
			name: "multipoint ids",
			g: geom.NewMultiPoint(geom.XY,
				geom.NewPoint(geom.XY, geom.Coord{1, 1}),
				geom.NewPoint(geom.XY, geom.Coord{3, 3}),
			),
			opts: []twkb.Option{twkb.WithIDs(10, -1)},
			hex:  "040402140102020404",
		},
		{
			name: "collection members start fresh",
			g: geom.NewGeometryCollection(geom.XY,
				geom.NewPoint(geom.XY, geom.Coord{1, 1}),
				geom.NewPoint(geom.XY, geom.Coord{3, 3}),
			),
			hex: "0700020100020201000606",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			want := mustHex(t, test.hex)

			got, err := twkb.Encode(test.g, test.precision, test.opts...)
			require.NoError(t, err)
			require.Equal(t, want, got)

			g, err := twkb.Decode(want)
			require.NoError(t, err)
			geomtest.RequireApprox(t, test.g, g, 1e-9)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, l := range geomtest.Layouts {
		for _, c := range geomtest.Samples(l) {
			for _, p := range []int{-1, 0, 3, 5, 7} {
				t.Run(fmt.Sprintf("%s/p%d", c.Name, p), func(t *testing.T) {
					ext := max(p, 0)
					b, err := twkb.Encode(c.Geom, p, twkb.WithZPrecision(ext), twkb.WithMPrecision(ext))
					require.NoError(t, err)

					g, err := twkb.Decode(b)
					require.NoError(t, err)
					// TWKB carries no SRID
					geomtest.RequireApprox(t, geom.WithSRID(c.Geom, geom.UnknownSRID), g, math.Pow10(-p))
				})
			}
		}
	}
}

func TestLineStringPrecision5(t *testing.T) {
	ls := geom.NewLineString(geom.XY, geom.Coord{0, 0}, geom.Coord{1, 1}, geom.Coord{2, 2})
	b, err := twkb.Encode(ls, 5)
	require.NoError(t, err)

	g, err := twkb.Decode(b)
	require.NoError(t, err)
	geomtest.RequireApprox(t, ls, g, 1e-5)
}

func TestDecodeWithInfo(t *testing.T) {
	mp := geom.NewMultiPoint(geom.XYZ,
		geom.NewPoint(geom.XYZ, geom.Coord{-1.5, 2.25, 10}),
		geom.NewPoint(geom.XYZ, geom.Coord{3.75, -4, 20}),
	)
	b, err := twkb.Encode(mp, 2,
		twkb.WithZPrecision(1), twkb.WithSize(), twkb.WithBBox(), twkb.WithIDs(7, 9))
	require.NoError(t, err)

	g, info, err := twkb.DecodeWithInfo(b)
	require.NoError(t, err)
	geomtest.RequireApprox(t, mp, g, 1e-9)

	require.Equal(t, 2, info.Precision)
	require.Equal(t, 1, info.ZPrecision)
	require.Equal(t, 0, info.MPrecision)
	require.Equal(t, []int64{7, 9}, info.IDs)
	require.NotNil(t, info.BBox)
	require.InDeltaSlice(t, []float64{-1.5, -4, 10}, info.BBox.Min, 1e-9)
	require.InDeltaSlice(t, []float64{3.75, 2.25, 20}, info.BBox.Max, 1e-9)

	// header, metadata and extended byte, then the size varint
	require.Equal(t, len(b)-4, info.Size)

	_, info, err = twkb.DecodeWithInfo(mustHex(t, "01000204"))
	require.NoError(t, err)
	require.Equal(t, -1, info.Size)
	require.Nil(t, info.BBox)
	require.Nil(t, info.IDs)
}

func TestSkip(t *testing.T) {
	first := geom.NewPolygon(geom.XY, geomtest.Square(geom.XY, 0, 0, 5))
	second := geom.NewPoint(geom.XY, geom.Coord{9, 9})

	for _, opts := range [][]twkb.Option{nil, {twkb.WithSize()}} {
		a, err := twkb.Encode(first, 1, opts...)
		require.NoError(t, err)
		b, err := twkb.Append(a, second, 1, opts...)
		require.NoError(t, err)

		n, err := twkb.Skip(b)
		require.NoError(t, err)
		require.Equal(t, len(a), n)

		r := wire.NewReader(b)
		_, err = twkb.Read(r)
		require.NoError(t, err)
		require.Equal(t, len(a), r.Offset())
		g, err := twkb.Read(r)
		require.NoError(t, err)
		geomtest.RequireApprox(t, second, g, 1e-9)
		require.Zero(t, r.Len())
	}
}

func TestEncodeErrors(t *testing.T) {
	pt := geom.NewPoint(geom.XY, geom.Coord{1, 2})
	tests := []struct {
		name      string
		g         geom.Geometry
		precision int
		opts      []twkb.Option
		err       error
	}{
		{"precision too high", pt, 8, nil, geom.ErrUnsupportedPrecision},
		{"precision too low", pt, -9, nil, geom.ErrUnsupportedPrecision},
		{"z precision", geom.NewPoint(geom.XYZ, geom.Coord{1, 2, 3}), 0, []twkb.Option{twkb.WithZPrecision(8)}, geom.ErrUnsupportedPrecision},
		{"nan", geom.NewPoint(geom.XY, geom.Coord{math.NaN(), 0}), 0, nil, geom.ErrVarintOverflow},
		{"inf", geom.NewPoint(geom.XY, geom.Coord{0, math.Inf(-1)}), 0, nil, geom.ErrVarintOverflow},
		{"too large", geom.NewPoint(geom.XY, geom.Coord{1e300, 0}), 7, nil, geom.ErrVarintOverflow},
		{"empty multipoint member", geom.NewMultiPoint(geom.XY, pt, geom.NewPointEmpty(geom.XY)), 0, nil, geom.ErrUnsupported},
		{"empty multilinestring member", geom.NewMultiLineString(geom.XY, geom.NewLineString(geom.XY)), 0, nil, geom.ErrUnsupported},
		{"id count", geom.NewMultiPoint(geom.XY, pt), 0, []twkb.Option{twkb.WithIDs(1, 2)}, geom.ErrUnsupported},
		{"ids on a point", pt, 0, []twkb.Option{twkb.WithIDs(1)}, geom.ErrUnsupported},
		{"unclosed ring", geom.NewPolygon(geom.XY, geom.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}), 0, nil, geom.ErrUnclosedRing},
		{"missing z", geom.NewLineString(geom.XYZ, geom.Coord{0, 0}), 0, nil, geom.ErrInconsistentDimensionality},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			prefix := []byte{0xAA}
			b, err := twkb.Append(prefix, test.g, test.precision, test.opts...)
			require.True(t, errors.Is(err, test.err), "got %v", err)
			require.Equal(t, prefix, b)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		err  error
	}{
		{"type zero", "00000204", geom.ErrInvalidType},
		{"type eight", "08000204", geom.ErrInvalidType},
		{"varint overflow", "0100ffffffffffffffffff7f", geom.ErrVarintOverflow},
		{"unclosed ring", "030001040000020000020100", geom.ErrUnclosedRing},
		{"short ring", "03000103000002000002", geom.ErrUnclosedRing},
		{"size beyond input", "02020a020202", geom.ErrUnexpectedEOF},
		{"size longer than body", "0102" + "03" + "0204" + "00", geom.ErrSizeMismatch},
		{"size shorter than body", "0102" + "01" + "0204", geom.ErrSizeMismatch},
		{"huge point count", "0200ffffffff0f", geom.ErrUnexpectedEOF},
		{"collection member layout", "070001" + "010801020406", geom.ErrInconsistentDimensionality},
		{"empty input", "", geom.ErrUnexpectedEOF},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := hex.DecodeString(test.hex)
			require.NoError(t, err)
			_, err = twkb.Decode(b)
			require.Error(t, err)
			require.True(t, errors.Is(err, test.err), "got %v", err)
		})
	}
}

func TestTruncated(t *testing.T) {
	for _, l := range geomtest.Layouts {
		for _, c := range geomtest.Samples(l) {
			full, err := twkb.Encode(c.Geom, 3, twkb.WithSize(), twkb.WithBBox(), twkb.WithZPrecision(2))
			require.NoError(t, err)
			for i := range full {
				_, err := twkb.Decode(full[:i])
				require.Truef(t, errors.Is(err, geom.ErrUnexpectedEOF), "%s cut at %d: %v", c.Name, i, err)
			}
			n, err := twkb.Skip(full)
			require.NoError(t, err)
			require.Equal(t, len(full), n)
		}
	}
}

func TestMaxDepth(t *testing.T) {
	var g geom.Geometry = geom.NewMultiPoint(geom.XY, geom.NewPoint(geom.XY, geom.Coord{1, 1}))
	for range 3 {
		g = geom.NewGeometryCollection(geom.XY, g)
	}
	// the point sits four levels below the top
	b, err := twkb.Encode(g, 0)
	require.NoError(t, err)

	_, err = twkb.Decode(b, twkb.WithMaxDepth(3))
	require.True(t, errors.Is(err, geom.ErrMaxDepth), "got %v", err)

	got, err := twkb.Decode(b, twkb.WithMaxDepth(4))
	require.NoError(t, err)
	geomtest.RequireEqual(t, g, got)

	_, err = twkb.Encode(g, 0, twkb.WithMaxDepth(3))
	require.True(t, errors.Is(err, geom.ErrMaxDepth))
}
