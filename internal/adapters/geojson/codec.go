package geojson

import (
	"github.com/cockroachdb/errors"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/samirrijal/geowire/internal/pkg/geom"
)

// Codec reads and writes GeoJSON geometry objects. GeoJSON coordinates are
// always WGS-84 lon/lat; decoded geometries carry SRID 4326.
type Codec struct{}

// Marshal encodes g as a GeoJSON geometry. Layouts with M are rejected:
// GeoJSON positions have no measure slot.
func (Codec) Marshal(g geom.Geometry) ([]byte, error) {
	if g.Layout().HasM() {
		return nil, errors.Wrapf(geom.ErrUnsupported, "geojson cannot carry %s coordinates", g.Layout())
	}
	t, err := FromGeom(g)
	if err != nil {
		return nil, err
	}
	b, err := geojson.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "marshal geojson")
	}
	return b, nil
}

// Unmarshal decodes a GeoJSON geometry object.
func (Codec) Unmarshal(data []byte) (geom.Geometry, error) {
	var t gogeom.T
	if err := geojson.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "unmarshal geojson")
	}
	g, err := ToGeom(t)
	if err != nil {
		return nil, err
	}
	return geom.WithSRID(g, geom.WGS84), nil
}

// WKTCodec reads and writes Well-Known Text. WKT has no SRID.
type WKTCodec struct{}

func (WKTCodec) Marshal(g geom.Geometry) ([]byte, error) {
	t, err := FromGeom(g)
	if err != nil {
		return nil, err
	}
	s, err := wkt.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "marshal wkt")
	}
	return []byte(s), nil
}

func (WKTCodec) Unmarshal(data []byte) (geom.Geometry, error) {
	t, err := wkt.Unmarshal(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal wkt")
	}
	return ToGeom(t)
}
