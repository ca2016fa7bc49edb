package ports

import (
	"context"

	"github.com/samirrijal/geowire/internal/core/domain"
)

// FeatureRepository persists features.
type FeatureRepository interface {
	Upsert(ctx context.Context, f *domain.Feature) error
	UpsertBatch(ctx context.Context, fs []domain.Feature) error
	GetByID(ctx context.Context, id string) (*domain.Feature, error)
	// ListByLayer returns one page of a layer ordered by id and the layer's total size.
	ListByLayer(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Feature, error)
	// ListIDsAfter pages through a layer's ids in order, starting after the given id.
	ListIDsAfter(ctx context.Context, layer, after string, limit int) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// TWKBSource is implemented by repositories that can encode geometries as
// TWKB themselves, such as PostGIS with ST_AsTWKB.
type TWKBSource interface {
	// ListTWKB returns one page of a layer ordered by id as size-prefixed
	// TWKB, together with the layer's total size.
	ListTWKB(ctx context.Context, layer string, precision, offset, limit int) ([][]byte, int, error)
}
