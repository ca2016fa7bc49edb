package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

// FeatureTransformer is the part of the feature service the activities use.
type FeatureTransformer interface {
	ListIDs(ctx context.Context, layer, after string, limit int) ([]string, error)
	TransformFeatures(ctx context.Context, ids []string, dir geospatial.Direction, targetLayer string) (int, error)
}

// TransformActivities holds the activity implementations for the layer
// transform workflow.
type TransformActivities struct {
	Features FeatureTransformer
}

// ListFeatureIDs returns the next page of ids after the given one.
func (a *TransformActivities) ListFeatureIDs(ctx context.Context, layer, after string, limit int) ([]string, error) {
	ids, err := a.Features.ListIDs(ctx, layer, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list feature ids of %s: %w", layer, err)
	}
	return ids, nil
}

// TransformFeatures transforms one page of features.
func (a *TransformActivities) TransformFeatures(ctx context.Context, ids []string, dir geospatial.Direction, targetLayer string) (int, error) {
	n, err := a.Features.TransformFeatures(ctx, ids, dir, targetLayer)
	if err != nil {
		return 0, fmt.Errorf("transform %d features: %w", len(ids), err)
	}
	activity.GetLogger(ctx).Info("Transformed page", "features", n, "target", targetLayer)
	return n, nil
}
