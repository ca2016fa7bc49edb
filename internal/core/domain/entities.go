package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

var (
	// ErrNotFound is returned when a feature does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed requests and undecodable geometry.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable is returned when an optional backend is not configured.
	ErrUnavailable = errors.New("unavailable")
)

// Feature is a named geometry in a layer.
type Feature struct {
	ID         string         `json:"id"`
	Layer      string         `json:"layer"`
	Name       string         `json:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Geometry   geom.Geometry  `json:"-"`
	Frame      Frame          `json:"frame,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Frame is the datum a feature's coordinates are expressed in.
type Frame string

const (
	FrameWGS84 Frame = "wgs84"
	FrameGCJ02 Frame = "gcj02"
)

// ParseFrame validates a frame name. The empty string is WGS-84.
func ParseFrame(s string) (Frame, error) {
	switch f := Frame(strings.ToLower(s)); f {
	case "":
		return FrameWGS84, nil
	case FrameWGS84, FrameGCJ02:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown frame %q", ErrInvalidInput, s)
}

// TargetFrame is the frame a transform in direction dir produces.
func TargetFrame(dir geospatial.Direction) Frame {
	if dir == geospatial.Inverse {
		return FrameWGS84
	}
	return FrameGCJ02
}

// CurrentFrame returns f.Frame, reading an unset frame as WGS-84.
func (f *Feature) CurrentFrame() Frame {
	if f.Frame == "" {
		return FrameWGS84
	}
	return f.Frame
}

var layerPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,62}$`)

// ValidLayer reports whether name is usable as a layer name.
func ValidLayer(name string) bool {
	return layerPattern.MatchString(name)
}

// MirrorLayer is the layer GCJ-02 copies of layer are written to.
func MirrorLayer(layer string) string {
	return layer + "_gcj02"
}

// IsMirrorLayer reports whether layer holds GCJ-02 copies.
func IsMirrorLayer(layer string) bool {
	return strings.HasSuffix(layer, "_gcj02")
}

// DerivedID is the id of the copy of feature id written to layer.
func DerivedID(layer, id string) string {
	return layer + ":" + id
}

// Format names a geometry encoding.
type Format string

const (
	FormatEWKB    Format = "ewkb"
	FormatEWKBHex Format = "ewkb_hex"
	FormatTWKB    Format = "twkb"
	FormatGeoJSON Format = "geojson"
	FormatWKT     Format = "wkt"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatEWKB, FormatEWKBHex, FormatTWKB, FormatGeoJSON, FormatWKT:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidInput, s)
}

// ContentType is the media type responses in f are served with.
func (f Format) ContentType() string {
	switch f {
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatWKT, FormatEWKBHex:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

// EventKind says what happened to a feature.
type EventKind string

const (
	EventUpserted EventKind = "upserted"
	EventDeleted  EventKind = "deleted"
)

// FeatureEvent is published whenever a feature changes. Geometry holds the
// EWKB of the new geometry and is empty for deletions.
type FeatureEvent struct {
	Kind       EventKind `json:"kind"`
	FeatureID  string    `json:"feature_id"`
	Layer      string    `json:"layer"`
	Geometry   []byte    `json:"geometry,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LayerTransform asks for every feature of Layer to be converted in
// Direction. An empty TargetLayer rewrites the features in place.
type LayerTransform struct {
	Layer       string               `json:"layer"`
	TargetLayer string               `json:"target_layer,omitempty"`
	Direction   geospatial.Direction `json:"direction"`
}
