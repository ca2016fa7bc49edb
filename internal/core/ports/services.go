package ports

import (
	"context"

	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/pkg/geom"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishFeatureEvent(ctx context.Context, ev *domain.FeatureEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	// SubscribeFeatureEvents delivers events for layer, or every layer when
	// layer is empty, until ctx is done. A handler error redelivers the event.
	SubscribeFeatureEvents(ctx context.Context, layer string, handler func(ctx context.Context, ev *domain.FeatureEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// WorkflowStarter launches long-running layer transforms.
type WorkflowStarter interface {
	StartLayerTransform(ctx context.Context, req domain.LayerTransform) (runID string, err error)
}

// GeometryCodec converts between a text encoding and geometries.
type GeometryCodec interface {
	Marshal(g geom.Geometry) ([]byte, error)
	Unmarshal(data []byte) (geom.Geometry, error)
}
