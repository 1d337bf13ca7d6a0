package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/matching"
	"github.com/samirrijal/menuwatch/internal/core/ports"
	"github.com/samirrijal/menuwatch/internal/pkg/metrics"
)

// IdentityMerger folds one location identifier into another.
type IdentityMerger interface {
	MergeIdentity(ctx context.Context, oldID, newID string) (domain.MergeMode, error)
}

// ReconcileOptions tune a single run.
type ReconcileOptions struct {
	// DryRun resolves and reports without touching the store.
	DryRun bool
}

// ReconcileService walks the non-canonical locations of a region, resolves
// each against the gateway's nearby search and merges the match.
type ReconcileService struct {
	locations ports.LocationRepository
	nearby    ports.NearbyGateway
	merger    IdentityMerger
	publisher ports.EventPublisher
	scanner   *matching.Scanner
	resolver  *matching.Resolver
	limit     int
	now       func() time.Time
}

// NewReconcileService creates a new ReconcileService. publisher may be nil.
func NewReconcileService(
	locations ports.LocationRepository,
	nearby ports.NearbyGateway,
	merger IdentityMerger,
	publisher ports.EventPublisher,
	cfg matching.Config,
	nearbyLimit int,
) *ReconcileService {
	if nearbyLimit <= 0 {
		nearbyLimit = 5
	}
	return &ReconcileService{
		locations: locations,
		nearby:    nearby,
		merger:    merger,
		publisher: publisher,
		scanner:   matching.NewScanner(cfg),
		resolver:  matching.NewResolver(cfg),
		limit:     nearbyLimit,
		now:       time.Now,
	}
}

// Run reconciles every non-canonical location in region, one at a time.
// Per-location failures are recorded as outcomes and never abort the run;
// only a failure to list the region, or cancellation of ctx, is returned.
func (s *ReconcileService) Run(ctx context.Context, region string, opts ReconcileOptions) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		RunID:     uuid.NewString(),
		Region:    region,
		DryRun:    opts.DryRun,
		Outcomes:  []domain.LocationOutcome{},
		StartedAt: s.now().UTC(),
	}

	pending, err := s.locations.ListNonCanonical(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("list non-canonical locations in %q: %w", region, err)
	}
	slog.Info("reconciliation started",
		"run_id", summary.RunID, "region", region, "pending", len(pending), "dry_run", opts.DryRun)

	for i := range pending {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.now().UTC()
			return summary, err
		}
		out := s.reconcileOne(ctx, &pending[i], opts)
		out.RunID = summary.RunID
		out.Region = region
		out.DryRun = opts.DryRun
		out.At = s.now().UTC()
		summary.Add(out)
		s.report(ctx, &out)
	}

	if summary.Matched > 0 && !opts.DryRun {
		if err := s.locations.RefreshLatest(ctx); err != nil {
			slog.Warn("latest availability refresh failed", "error", err)
		}
	}

	summary.FinishedAt = s.now().UTC()
	slog.Info("reconciliation finished",
		"run_id", summary.RunID,
		"region", region,
		"total", summary.Total,
		"matched", summary.Matched,
		"skipped", summary.Skipped,
		"unmatched", summary.Unmatched,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
	return summary, nil
}

// reconcileOne drives one location to a terminal state.
func (s *ReconcileService) reconcileOne(ctx context.Context, loc *domain.Location, opts ReconcileOptions) domain.LocationOutcome {
	out := domain.LocationOutcome{LocationID: loc.ID}

	if loc.Coordinates == nil {
		out.Outcome = domain.OutcomeSkipped
		out.Reason = domain.ReasonNoCoordinates
		return out
	}

	doc, err := s.nearby.Nearby(ctx, *loc.Coordinates, s.limit)
	if err != nil {
		out.Outcome = domain.OutcomeUnmatched
		out.Reason = domain.ReasonTransportError
		if errors.Is(err, domain.ErrGatewayRejected) {
			out.Reason = domain.ReasonRejected
		}
		slog.Warn("nearby lookup failed", "location_id", loc.ID, "error", err)
		return out
	}

	candidates := s.scanner.FindRecordArray(doc)
	if len(candidates) == 0 {
		out.Outcome = domain.OutcomeUnmatched
		out.Reason = domain.ReasonNoCandidates
		return out
	}

	match, ok := s.resolver.Resolve(*loc.Coordinates, candidates)
	if !ok {
		out.Outcome = domain.OutcomeUnmatched
		out.Reason = domain.ReasonNoMatch
		return out
	}
	out.CanonicalID = match.ID
	out.DistanceMeters = match.DistanceMeters
	out.Tier = match.Tier

	if opts.DryRun {
		out.Outcome = domain.OutcomeMatched
		return out
	}

	mode, err := s.merger.MergeIdentity(ctx, loc.ID, match.ID)
	if err != nil {
		out.Outcome = domain.OutcomeUnmatched
		out.Reason = domain.ReasonMergeFailed
		slog.Error("identity merge failed",
			"location_id", loc.ID, "canonical_id", match.ID, "error", err)
		return out
	}
	out.Outcome = domain.OutcomeMatched
	out.Merge = mode
	return out
}

func (s *ReconcileService) report(ctx context.Context, out *domain.LocationOutcome) {
	attrs := []any{"location_id", out.LocationID, "outcome", string(out.Outcome)}
	if out.Outcome == domain.OutcomeMatched {
		attrs = append(attrs,
			"canonical_id", out.CanonicalID,
			"distance_m", fmt.Sprintf("%.1f", out.DistanceMeters),
			"tier", string(out.Tier),
		)
		if out.Merge != "" {
			attrs = append(attrs, "merge", string(out.Merge))
		}
	} else {
		attrs = append(attrs, "reason", out.Reason)
	}
	slog.Info("location reconciled", attrs...)

	metrics.ObserveOutcome(string(out.Outcome), string(out.Tier), out.Reason, out.DistanceMeters)

	if s.publisher != nil {
		if err := s.publisher.PublishOutcome(ctx, out); err != nil {
			slog.Debug("outcome publish failed", "location_id", out.LocationID, "error", err)
		}
	}
}
