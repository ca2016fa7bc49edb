package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/geowire/internal/core/domain"
)

// Starter implements ports.WorkflowStarter on a Temporal client.
type Starter struct {
	client    client.Client
	taskQueue string
}

// NewStarter creates a Starter that schedules work on taskQueue.
func NewStarter(c client.Client, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// WorkflowID is the id a transform of layer into target runs under. Starting
// a transform that is already running returns the running one.
func WorkflowID(req domain.LayerTransform) string {
	target := req.TargetLayer
	if target == "" {
		target = req.Layer
	}
	return fmt.Sprintf("transform-layer:%s:%s:%s", req.Layer, target, req.Direction)
}

// StartLayerTransform starts TransformLayerWorkflow and returns its run id.
func (s *Starter) StartLayerTransform(ctx context.Context, req domain.LayerTransform) (string, error) {
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(req),
		TaskQueue: s.taskQueue,
	}, TransformLayerWorkflow, TransformLayerInput{
		Layer:       req.Layer,
		TargetLayer: req.TargetLayer,
		Direction:   req.Direction,
	})
	if err != nil {
		return "", fmt.Errorf("start layer transform: %w", err)
	}
	return run.GetRunID(), nil
}
