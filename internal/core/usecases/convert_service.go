package usecases

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/ports"
	"github.com/samirrijal/geowire/internal/pkg/ewkb"
	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
	"github.com/samirrijal/geowire/internal/pkg/metrics"
	"github.com/samirrijal/geowire/internal/pkg/telemetry"
	"github.com/samirrijal/geowire/internal/pkg/twkb"
)

// CodecDefaults are applied when a request leaves a setting unspecified.
type CodecDefaults struct {
	TWKBPrecision int
	MaxDepth      int
	ByteOrder     ewkb.ByteOrder
}

// ConvertService decodes, transforms and re-encodes geometries.
type ConvertService struct {
	defaults CodecDefaults
	text     map[domain.Format]ports.GeometryCodec
}

// NewConvertService creates a ConvertService. text supplies the codecs for
// the formats that are not built in, such as GeoJSON and WKT.
func NewConvertService(defaults CodecDefaults, text map[domain.Format]ports.GeometryCodec) *ConvertService {
	if defaults.MaxDepth <= 0 {
		defaults.MaxDepth = geom.DefaultMaxDepth
	}
	if defaults.ByteOrder == nil {
		defaults.ByteOrder = ewkb.NDR
	}
	return &ConvertService{defaults: defaults, text: text}
}

// Defaults returns the settings applied to unspecified request options.
func (s *ConvertService) Defaults() CodecDefaults {
	return s.defaults
}

// ConvertRequest describes one conversion. Nil Precision uses the default
// TWKB precision; nil Transform leaves coordinates untouched.
type ConvertRequest struct {
	Data      []byte
	From      domain.Format
	To        domain.Format
	Precision *int
	Transform *geospatial.Direction
}

// ConvertResult is the re-encoded geometry and what was learned about it.
type ConvertResult struct {
	Data               []byte         `json:"-"`
	Format             domain.Format  `json:"format"`
	GeometryType       string         `json:"geometry_type"`
	Layout             string         `json:"layout"`
	SRID               int32          `json:"srid,omitempty"`
	Bounds             *domain.Bounds `json:"bounds,omitempty"`
	DisplacementMeters float64        `json:"displacement_meters"`
}

// Convert decodes req.Data, optionally applies the GCJ-02 transform and
// encodes the result in req.To.
func (s *ConvertService) Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanConvert, trace.WithAttributes(
		attribute.String("from", string(req.From)),
		attribute.String("to", string(req.To)),
	))
	defer span.End()

	g, err := s.Decode(ctx, req.Data, req.From)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := &ConvertResult{Format: req.To}
	if req.Transform != nil {
		out := geospatial.Apply(g, *req.Transform)
		res.DisplacementMeters = geospatial.Displacement(g, out)
		metrics.TransformDisplacement.Observe(res.DisplacementMeters)
		g = out
	}

	if res.Data, err = s.Encode(ctx, g, req.To, req.Precision); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res.GeometryType = g.Type().String()
	res.Layout = g.Layout().String()
	res.SRID = int32(g.SRID())
	res.Bounds = domain.BoundsOf(g)
	return res, nil
}

// Decode parses data in format f.
func (s *ConvertService) Decode(ctx context.Context, data []byte, f domain.Format) (geom.Geometry, error) {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanDecode, trace.WithAttributes(
		attribute.String("format", string(f)),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	var (
		g   geom.Geometry
		err error
	)
	switch f {
	case domain.FormatEWKB:
		g, err = ewkb.Decode(data, ewkb.WithMaxDepth(s.defaults.MaxDepth))
	case domain.FormatEWKBHex:
		g, err = ewkb.DecodeHex(strings.TrimSpace(string(data)), ewkb.WithMaxDepth(s.defaults.MaxDepth))
	case domain.FormatTWKB:
		g, err = twkb.Decode(data, twkb.WithMaxDepth(s.defaults.MaxDepth))
	default:
		c, ok := s.text[f]
		if !ok {
			return nil, fmt.Errorf("%w: cannot decode format %q", domain.ErrInvalidInput, f)
		}
		g, err = c.Unmarshal(data)
	}
	metrics.ObserveCodec(string(f), "decode", len(data), err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode %s: %w: %w", f, domain.ErrInvalidInput, err)
	}
	return g, nil
}

// Encode writes g in format f. precision only applies to TWKB.
func (s *ConvertService) Encode(ctx context.Context, g geom.Geometry, f domain.Format, precision *int) ([]byte, error) {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanEncode, trace.WithAttributes(
		attribute.String("format", string(f)),
	))
	defer span.End()

	var (
		out []byte
		err error
	)
	switch f {
	case domain.FormatEWKB:
		out, err = ewkb.Encode(g, s.defaults.ByteOrder, ewkb.WithMaxDepth(s.defaults.MaxDepth))
	case domain.FormatEWKBHex:
		var h string
		h, err = ewkb.EncodeHex(g, s.defaults.ByteOrder, ewkb.WithMaxDepth(s.defaults.MaxDepth))
		out = []byte(h)
	case domain.FormatTWKB:
		p := s.defaults.TWKBPrecision
		if precision != nil {
			p = *precision
		}
		// Z and M share the XY precision, capped at what the extended byte holds.
		zm := min(max(p, 0), twkb.MaxExtPrecision)
		out, err = twkb.Encode(g, p,
			twkb.WithZPrecision(zm),
			twkb.WithMPrecision(zm),
			twkb.WithMaxDepth(s.defaults.MaxDepth),
		)
	default:
		c, ok := s.text[f]
		if !ok {
			return nil, fmt.Errorf("%w: cannot encode format %q", domain.ErrInvalidInput, f)
		}
		out, err = c.Marshal(g)
	}
	metrics.ObserveCodec(string(f), "encode", len(out), err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("encode %s: %w: %w", f, domain.ErrInvalidInput, err)
	}
	return out, nil
}

// TransformPoint converts a single lat/lon in direction dir.
func (s *ConvertService) TransformPoint(lat, lon float64, dir geospatial.Direction) domain.GeoPoint {
	if dir == geospatial.Inverse {
		lat, lon = geospatial.GCJ02ToWGS84(lat, lon)
	} else {
		lat, lon = geospatial.WGS84ToGCJ02(lat, lon)
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}
}
