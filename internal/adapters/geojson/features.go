package geojson

import (
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/pkg/geom"
)

// ParseFeatureCollection reads a GeoJSON FeatureCollection into features of
// layer. A feature without an id takes its index in the collection; the
// "name" property, when a string, becomes the feature name.
func ParseFeatureCollection(data []byte, layer string) ([]domain.Feature, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, "unmarshal feature collection")
	}
	out := make([]domain.Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, errors.Newf("feature %d has no geometry", i)
		}
		g, err := ToGeom(f.Geometry)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		id := f.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		feat := domain.Feature{
			ID:         id,
			Layer:      layer,
			Properties: f.Properties,
			Geometry:   geom.WithSRID(g, geom.WGS84),
		}
		if name, ok := f.Properties["name"].(string); ok {
			feat.Name = name
		}
		out = append(out, feat)
	}
	return out, nil
}

// MarshalFeature writes f as a GeoJSON Feature. The name and layer travel
// as properties.
func MarshalFeature(f *domain.Feature) ([]byte, error) {
	gf, err := toFeature(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(gf)
}

// MarshalFeatureCollection writes features as a GeoJSON FeatureCollection.
func MarshalFeatureCollection(features []domain.Feature) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for i := range features {
		gf, err := toFeature(&features[i])
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, gf)
	}
	return json.Marshal(&fc)
}

func toFeature(f *domain.Feature) (*geojson.Feature, error) {
	if f.Geometry.Layout().HasM() {
		return nil, errors.Wrapf(geom.ErrUnsupported, "feature %s: geojson cannot carry %s coordinates", f.ID, f.Geometry.Layout())
	}
	t, err := FromGeom(f.Geometry)
	if err != nil {
		return nil, errors.Wrapf(err, "feature %s", f.ID)
	}
	props := make(map[string]any, len(f.Properties)+3)
	for k, v := range f.Properties {
		props[k] = v
	}
	if f.Name != "" {
		props["name"] = f.Name
	}
	props["layer"] = f.Layer
	if f.Frame != "" {
		props["frame"] = f.Frame
	}
	return &geojson.Feature{
		ID:         f.ID,
		Geometry:   t,
		Properties: props,
	}, nil
}
