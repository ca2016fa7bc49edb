package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/ports"
	"github.com/samirrijal/geowire/internal/pkg/ewkb"
	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
	"github.com/samirrijal/geowire/internal/pkg/logging"
	"github.com/samirrijal/geowire/internal/pkg/metrics"
	"github.com/samirrijal/geowire/internal/pkg/telemetry"
	"github.com/samirrijal/geowire/internal/pkg/twkb"
)

const defaultCacheTTL = 600

// FeatureService handles feature storage, caching and change events.
type FeatureService struct {
	features  ports.FeatureRepository
	cache     ports.CacheService
	events    ports.EventPublisher
	workflows ports.WorkflowStarter
	cacheTTL  int
	now       func() time.Time
}

// NewFeatureService creates a new FeatureService. cache, events and
// workflows may be nil.
func NewFeatureService(
	features ports.FeatureRepository,
	cache ports.CacheService,
	events ports.EventPublisher,
	workflows ports.WorkflowStarter,
	cacheTTL int,
) *FeatureService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &FeatureService{
		features:  features,
		cache:     cache,
		events:    events,
		workflows: workflows,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// cachedFeature is the cache representation of a feature; the geometry
// travels as EWKB.
type cachedFeature struct {
	domain.Feature
	EWKB []byte `json:"ewkb"`
}

func cacheKey(id string) string { return "features:id:" + id }

// Get returns a single feature.
func (s *FeatureService) Get(ctx context.Context, id string) (*domain.Feature, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFeatureGet, trace.WithAttributes(attribute.String("feature.id", id)))
	defer span.End()

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey(id)); err == nil {
			var cf cachedFeature
			if err := json.Unmarshal(data, &cf); err == nil {
				if g, err := ewkb.Decode(cf.EWKB); err == nil {
					metrics.CacheHits.WithLabelValues("feature").Inc()
					cf.Feature.Geometry = g
					return &cf.Feature, nil
				}
			}
		}
		metrics.CacheMisses.WithLabelValues("feature").Inc()
	}

	f, err := s.features.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := ewkb.Encode(f.Geometry, ewkb.NDR); err == nil {
			if data, err := json.Marshal(cachedFeature{Feature: *f, EWKB: b}); err == nil {
				_ = s.cache.Set(ctx, cacheKey(id), data, s.cacheTTL)
			}
		}
	}
	return f, nil
}

// List returns one page of a layer and the layer's total size.
func (s *FeatureService) List(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error) {
	if !domain.ValidLayer(layer) {
		return nil, 0, fmt.Errorf("%w: invalid layer %q", domain.ErrInvalidInput, layer)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.features.ListByLayer(ctx, layer, offset, limit)
}

// Nearby returns features within radiusMeters of the given point.
func (s *FeatureService) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Feature, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinate out of range", domain.ErrInvalidInput)
	}
	if radiusMeters <= 0 || radiusMeters > 50000 {
		radiusMeters = 500
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return s.features.FindNearby(ctx, lat, lon, radiusMeters, limit)
}

// ListTWKB returns one page of a layer as size-prefixed TWKB geometries,
// which a client can split with twkb.Skip.
func (s *FeatureService) ListTWKB(ctx context.Context, layer string, precision, offset, limit int) ([][]byte, int, error) {
	if precision < twkb.MinPrecision || precision > twkb.MaxPrecision {
		return nil, 0, fmt.Errorf("%w: precision %d, expected %d..%d", domain.ErrInvalidInput, precision, twkb.MinPrecision, twkb.MaxPrecision)
	}
	if src, ok := s.features.(ports.TWKBSource); ok {
		if !domain.ValidLayer(layer) {
			return nil, 0, fmt.Errorf("%w: invalid layer %q", domain.ErrInvalidInput, layer)
		}
		if limit <= 0 || limit > 100 {
			limit = 50
		}
		return src.ListTWKB(ctx, layer, precision, max(offset, 0), limit)
	}

	features, total, err := s.List(ctx, layer, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	zm := min(max(precision, 0), twkb.MaxExtPrecision)
	out := make([][]byte, 0, len(features))
	for _, f := range features {
		b, err := twkb.Encode(f.Geometry, precision, twkb.WithSize(), twkb.WithZPrecision(zm), twkb.WithMPrecision(zm))
		metrics.ObserveCodec(string(domain.FormatTWKB), "encode", len(b), err)
		if err != nil {
			return nil, 0, fmt.Errorf("encode feature %s: %w", f.ID, err)
		}
		out = append(out, b)
	}
	return out, total, nil
}

// ListIDs pages through the ids of a layer.
func (s *FeatureService) ListIDs(ctx context.Context, layer, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.features.ListIDsAfter(ctx, layer, after, limit)
}

// Put validates and stores a feature, then announces the change.
func (s *FeatureService) Put(ctx context.Context, f *domain.Feature) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFeaturePut, trace.WithAttributes(
		attribute.String("feature.id", f.ID),
		attribute.String("feature.layer", f.Layer),
	))
	defer span.End()

	if err := validateFeature(f); err != nil {
		return err
	}
	now := s.now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	if err := s.features.Upsert(ctx, f); err != nil {
		return fmt.Errorf("upsert feature: %w", err)
	}
	s.invalidate(ctx, f.ID)
	s.publish(ctx, domain.EventUpserted, f)
	return nil
}

// Import validates and stores a batch of features in one write. Nothing is
// written if any feature is invalid.
func (s *FeatureService) Import(ctx context.Context, fs []domain.Feature) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFeatureImport, trace.WithAttributes(attribute.Int("feature.count", len(fs))))
	defer span.End()

	if len(fs) == 0 {
		return nil
	}
	now := s.now()
	for i := range fs {
		if err := validateFeature(&fs[i]); err != nil {
			return fmt.Errorf("feature %q: %w", fs[i].ID, err)
		}
		if fs[i].CreatedAt.IsZero() {
			fs[i].CreatedAt = now
		}
		fs[i].UpdatedAt = now
	}

	if err := s.features.UpsertBatch(ctx, fs); err != nil {
		return fmt.Errorf("upsert features: %w", err)
	}
	for i := range fs {
		s.invalidate(ctx, fs[i].ID)
		s.publish(ctx, domain.EventUpserted, &fs[i])
	}
	return nil
}

// Delete removes a feature and announces the removal.
func (s *FeatureService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFeatureDelete, trace.WithAttributes(attribute.String("feature.id", id)))
	defer span.End()

	f, err := s.features.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.features.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete feature: %w", err)
	}
	s.invalidate(ctx, id)
	s.publish(ctx, domain.EventDeleted, &domain.Feature{ID: id, Layer: f.Layer})
	return nil
}

// TransformFeatures applies the GCJ-02 transform to the given features. With
// an empty targetLayer they are rewritten in place; otherwise copies are
// written to targetLayer under derived ids. Features already in the frame dir
// produces are not shifted again, and in place they are skipped. It returns
// how many features were written.
func (s *FeatureService) TransformFeatures(ctx context.Context, ids []string, dir geospatial.Direction, targetLayer string) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFeatureTransform, trace.WithAttributes(
		attribute.Int("feature.count", len(ids)),
		attribute.String("direction", dir.String()),
	))
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}
	log := logging.FromCtx(ctx)
	now := s.now()
	target := domain.TargetFrame(dir)
	batch := make([]domain.Feature, 0, len(ids))
	for _, id := range ids {
		f, err := s.features.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug("feature vanished before transform", "id", id)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("get feature %s: %w", id, err)
		}
		copyTo := targetLayer != "" && targetLayer != f.Layer
		shifted := f.CurrentFrame() != target
		if !shifted && !copyTo {
			log.Debug("feature already transformed", "id", id, "frame", target)
			continue
		}
		out := *f
		out.Frame = target
		out.UpdatedAt = now
		if shifted {
			out.Geometry = geospatial.Apply(f.Geometry, dir)
			metrics.TransformDisplacement.Observe(geospatial.Displacement(f.Geometry, out.Geometry))
		}
		if copyTo {
			out.ID = domain.DerivedID(targetLayer, f.ID)
			out.Layer = targetLayer
			out.CreatedAt = now
		}
		batch = append(batch, out)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := s.features.UpsertBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("upsert transformed features: %w", err)
	}
	for i := range batch {
		s.invalidate(ctx, batch[i].ID)
		s.publish(ctx, domain.EventUpserted, &batch[i])
	}
	return len(batch), nil
}

// MirrorFeature keeps the GCJ-02 copy of a feature in targetLayer in step
// with a change event. Events from mirror layers are ignored.
func (s *FeatureService) MirrorFeature(ctx context.Context, ev *domain.FeatureEvent, targetLayer string) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFeatureMirror, trace.WithAttributes(
		attribute.String("feature.id", ev.FeatureID),
		attribute.String("event.kind", string(ev.Kind)),
	))
	defer span.End()

	if domain.IsMirrorLayer(ev.Layer) || ev.Layer == targetLayer {
		return nil
	}
	mirrorID := domain.DerivedID(targetLayer, ev.FeatureID)

	switch ev.Kind {
	case domain.EventDeleted:
		err := s.features.Delete(ctx, mirrorID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete mirror %s: %w", mirrorID, err)
		}
		s.invalidate(ctx, mirrorID)
		return nil
	case domain.EventUpserted:
	default:
		logging.FromCtx(ctx).Warn("unknown feature event kind", "kind", ev.Kind, "id", ev.FeatureID)
		return nil
	}

	g, err := ewkb.Decode(ev.Geometry)
	if err != nil {
		// a malformed event will never decode; dropping it beats redelivering it
		logging.FromCtx(ctx).Error("undecodable feature event", "id", ev.FeatureID, "error", err)
		return nil
	}

	src, err := s.features.GetByID(ctx, ev.FeatureID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get source feature %s: %w", ev.FeatureID, err)
	}

	if src.CurrentFrame() != domain.FrameGCJ02 {
		g = geospatial.ToGCJ02(g)
	}
	mirror := &domain.Feature{
		ID:         mirrorID,
		Layer:      targetLayer,
		Name:       src.Name,
		Properties: src.Properties,
		Geometry:   g,
		Frame:      domain.FrameGCJ02,
		CreatedAt:  src.CreatedAt,
		UpdatedAt:  ev.OccurredAt,
	}
	if err := s.features.Upsert(ctx, mirror); err != nil {
		return fmt.Errorf("upsert mirror %s: %w", mirrorID, err)
	}
	s.invalidate(ctx, mirrorID)
	return nil
}

// StartLayerTransform launches a background transform of a whole layer and
// returns its run id.
func (s *FeatureService) StartLayerTransform(ctx context.Context, req domain.LayerTransform) (string, error) {
	if !domain.ValidLayer(req.Layer) {
		return "", fmt.Errorf("%w: invalid layer %q", domain.ErrInvalidInput, req.Layer)
	}
	if req.TargetLayer != "" && !domain.ValidLayer(req.TargetLayer) {
		return "", fmt.Errorf("%w: invalid target layer %q", domain.ErrInvalidInput, req.TargetLayer)
	}
	if s.workflows == nil {
		return "", fmt.Errorf("%w: layer transforms are not configured", domain.ErrUnavailable)
	}
	return s.workflows.StartLayerTransform(ctx, req)
}

func validateFeature(f *domain.Feature) error {
	if f.ID == "" {
		return fmt.Errorf("%w: feature id is required", domain.ErrInvalidInput)
	}
	if !domain.ValidLayer(f.Layer) {
		return fmt.Errorf("%w: invalid layer %q", domain.ErrInvalidInput, f.Layer)
	}
	if f.Geometry == nil {
		return fmt.Errorf("%w: geometry is required", domain.ErrInvalidInput)
	}
	frame, err := domain.ParseFrame(string(f.Frame))
	if err != nil {
		return err
	}
	f.Frame = frame
	switch f.Geometry.SRID() {
	case geom.UnknownSRID:
		f.Geometry = geom.WithSRID(f.Geometry, geom.WGS84)
	case geom.WGS84:
	default:
		return fmt.Errorf("%w: geometry must be in EPSG:4326, got SRID %d", domain.ErrInvalidInput, f.Geometry.SRID())
	}
	if err := geom.Validate(f.Geometry); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func (s *FeatureService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		logging.FromCtx(ctx).Warn("cache invalidation failed", "id", id, "error", err)
	}
}

func (s *FeatureService) publish(ctx context.Context, kind domain.EventKind, f *domain.Feature) {
	if s.events == nil {
		return
	}
	ev := &domain.FeatureEvent{
		Kind:       kind,
		FeatureID:  f.ID,
		Layer:      f.Layer,
		OccurredAt: s.now(),
	}
	if kind == domain.EventUpserted {
		b, err := ewkb.Encode(f.Geometry, ewkb.NDR)
		if err != nil {
			logging.FromCtx(ctx).Error("encode event geometry", "id", f.ID, "error", err)
			return
		}
		ev.Geometry = b
	}
	if err := s.events.PublishFeatureEvent(ctx, ev); err != nil {
		logging.FromCtx(ctx).Warn("publish feature event failed", "id", f.ID, "error", err)
		return
	}
	metrics.FeatureEventsPublished.WithLabelValues(string(kind)).Inc()
}
