package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/usecases"
)

// Reconciler runs one reconciliation pass over a region.
type Reconciler interface {
	Run(ctx context.Context, region string, opts usecases.ReconcileOptions) (*domain.RunSummary, error)
}

// ReconcileActivities holds the activity implementations for the reconcile workflow.
type ReconcileActivities struct {
	Reconciler Reconciler
}

// ReconcileRegion resolves every provisional location in the region. Retrying
// the whole activity is safe: locations already merged are no longer listed.
func (a *ReconcileActivities) ReconcileRegion(ctx context.Context, input ReconcileInput) (*domain.RunSummary, error) {
	region := strings.ToUpper(strings.TrimSpace(input.Region))
	if region == "" {
		return nil, temporal.NewNonRetryableApplicationError("region is required", "invalid_input", nil)
	}

	logger := activity.GetLogger(ctx)
	logger.Info("reconcile activity started", "region", region, "dryRun", input.DryRun)

	summary, err := a.Reconciler.Run(ctx, region, usecases.ReconcileOptions{DryRun: input.DryRun})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return summary, err
		}
		return summary, fmt.Errorf("reconcile %s: %w", region, err)
	}

	logger.Info("reconcile activity finished",
		"region", region, "matched", summary.Matched, "skipped", summary.Skipped, "unmatched", summary.Unmatched)
	return summary, nil
}
