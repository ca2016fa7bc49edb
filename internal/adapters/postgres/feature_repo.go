package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

const upsertFeatureSQL = `
	INSERT INTO features (id, layer, name, properties, geom, frame, created_at, updated_at)
	VALUES ($1, $2, $3, $4, ST_GeomFromEWKB($5), $6, $7, $8)
	ON CONFLICT (id) DO UPDATE
	SET layer = EXCLUDED.layer, name = EXCLUDED.name,
	    properties = EXCLUDED.properties, geom = EXCLUDED.geom,
	    frame = EXCLUDED.frame, updated_at = EXCLUDED.updated_at
`

const selectFeature = `
	SELECT id, layer, name, COALESCE(properties, '{}'), ST_AsEWKB(geom), frame, created_at, updated_at
	FROM features
`

// FeatureRepo implements ports.FeatureRepository with pgx and PostGIS.
type FeatureRepo struct {
	db *DB
}

// NewFeatureRepo creates a new FeatureRepo.
func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

func upsertArgs(f *domain.Feature) []any {
	props := f.Properties
	if props == nil {
		props = map[string]any{}
	}
	return []any{f.ID, f.Layer, f.Name, props, Geometry{f.Geometry}, string(f.CurrentFrame()), f.CreatedAt, f.UpdatedAt}
}

// Upsert inserts or updates a single feature.
func (r *FeatureRepo) Upsert(ctx context.Context, f *domain.Feature) error {
	_, err := r.db.Pool.Exec(ctx, upsertFeatureSQL, upsertArgs(f)...)
	return err
}

// UpsertBatch inserts many features using pgx.Batch.
func (r *FeatureRepo) UpsertBatch(ctx context.Context, fs []domain.Feature) error {
	if len(fs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range fs {
		batch.Queue(upsertFeatureSQL, upsertArgs(&fs[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range fs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a feature by id.
func (r *FeatureRepo) GetByID(ctx context.Context, id string) (*domain.Feature, error) {
	f, err := scanFeature(r.db.Pool.QueryRow(ctx, selectFeature+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("feature %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListByLayer returns one page of a layer ordered by id and the layer's
// total size.
func (r *FeatureRepo) ListByLayer(ctx context.Context, layer string, offset, limit int) ([]domain.Feature, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM features WHERE layer = $1`, layer).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := r.db.Pool.Query(ctx, selectFeature+`
		WHERE layer = $1
		ORDER BY id
		OFFSET $2 LIMIT $3
	`, layer, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	features, err := collectFeatures(rows)
	return features, total, err
}

// ListTWKB returns one page of a layer encoded by PostGIS as size-prefixed
// TWKB. Z and M share the XY precision, clamped to 0..7.
func (r *FeatureRepo) ListTWKB(ctx context.Context, layer string, precision, offset, limit int) ([][]byte, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM features WHERE layer = $1`, layer).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	zm := min(max(precision, 0), 7)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT ST_AsTWKB(geom, $2, $3, $3, true)
		FROM features
		WHERE layer = $1
		ORDER BY id
		OFFSET $4 LIMIT $5
	`, layer, precision, zm, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]byte, error) {
		var t TWKB
		err := row.Scan(&t)
		return t, err
	})
	return out, total, err
}

// FindNearby returns features within radiusMeters of lat/lon, nearest first.
// The envelope prefilter runs against the GiST index on geom.
func (r *FeatureRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Feature, error) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, layer, name, COALESCE(properties, '{}'), ST_AsEWKB(geom), frame, created_at, updated_at
		FROM features
		WHERE geom && ST_MakeEnvelope($3, $4, $5, $6, 4326)
		  AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $7)
		ORDER BY ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)
		LIMIT $8
	`, lon, lat, minLon, minLat, maxLon, maxLat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	return collectFeatures(rows)
}

// ListIDsAfter returns up to limit ids of layer greater than after.
func (r *FeatureRepo) ListIDsAfter(ctx context.Context, layer, after string, limit int) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id FROM features
		WHERE layer = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`, layer, after, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Delete removes a feature.
func (r *FeatureRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM features WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("feature %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanFeature(row pgx.Row) (*domain.Feature, error) {
	var (
		f     domain.Feature
		g     Geometry
		frame string
	)
	if err := row.Scan(&f.ID, &f.Layer, &f.Name, &f.Properties, &g, &frame, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Geometry = g.Geometry
	f.Frame = domain.Frame(frame)
	return &f, nil
}

func collectFeatures(rows pgx.Rows) ([]domain.Feature, error) {
	defer rows.Close()
	var features []domain.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, *f)
	}
	return features, rows.Err()
}
