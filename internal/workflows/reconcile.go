package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// Names under which the worker registers the workflow and its activity.
const (
	ReconcileWorkflowName = "ReconcileWorkflow"
	ReconcileActivityName = "ReconcileRegion"
)

// ReconcileInput is the input for the reconcile workflow.
type ReconcileInput struct {
	Region string
	DryRun bool
}

// ReconcileWorkflow runs one reconciliation pass as a single activity and
// returns its summary. A region holds a few hundred locations at most, so one
// activity covers the whole run.
func ReconcileWorkflow(ctx workflow.Context, input ReconcileInput) (*domain.RunSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting reconcile workflow", "region", input.Region, "dryRun", input.DryRun)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 30 * time.Second,
			MaximumAttempts: 2,
		},
	})

	var summary domain.RunSummary
	if err := workflow.ExecuteActivity(ctx, ReconcileActivityName, input).Get(ctx, &summary); err != nil {
		return nil, err
	}

	logger.Info("Reconcile workflow finished",
		"matched", summary.Matched, "skipped", summary.Skipped, "unmatched", summary.Unmatched)
	return &summary, nil
}
