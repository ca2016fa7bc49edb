package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

const (
	defaultPageSize = 500
	// pages handled before the workflow continues as new to cap its history
	pagesPerRun = 200
)

// TransformLayerInput is the input for TransformLayerWorkflow.
type TransformLayerInput struct {
	Layer       string
	TargetLayer string // empty rewrites the layer in place
	Direction   geospatial.Direction
	PageSize    int

	// carried across continue-as-new
	After       string
	Transformed int
}

// TransformLayerResult reports how many features were written.
type TransformLayerResult struct {
	Transformed int
	Pages       int
}

// TransformLayerWorkflow pages through the ids of a layer and transforms each
// page in one activity call. Progress is keyed on the last id seen. Each
// feature records the frame it is in, so a retried page skips features it
// already shifted.
func TransformLayerWorkflow(ctx workflow.Context, in TransformLayerInput) (TransformLayerResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting layer transform", "layer", in.Layer, "target", in.TargetLayer, "direction", in.Direction.String())

	if in.PageSize <= 0 {
		in.PageSize = defaultPageSize
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	res := TransformLayerResult{Transformed: in.Transformed}
	for {
		var ids []string
		err := workflow.ExecuteActivity(ctx, "ListFeatureIDs", in.Layer, in.After, in.PageSize).Get(ctx, &ids)
		if err != nil {
			return res, err
		}
		if len(ids) == 0 {
			break
		}

		var n int
		err = workflow.ExecuteActivity(ctx, "TransformFeatures", ids, in.Direction, in.TargetLayer).Get(ctx, &n)
		if err != nil {
			return res, err
		}
		res.Transformed += n
		res.Pages++
		in.After = ids[len(ids)-1]

		if len(ids) < in.PageSize {
			break
		}
		if res.Pages >= pagesPerRun {
			in.Transformed = res.Transformed
			logger.Info("Continuing layer transform as new", "after", in.After, "transformed", res.Transformed)
			return res, workflow.NewContinueAsNewError(ctx, TransformLayerWorkflow, in)
		}
	}

	logger.Info("Layer transform finished", "layer", in.Layer, "transformed", res.Transformed)
	return res, nil
}
