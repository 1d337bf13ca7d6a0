package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/ports"
	"github.com/samirrijal/menuwatch/internal/pkg/metrics"
	"github.com/samirrijal/menuwatch/internal/pkg/telemetry"
)

// IdentityService folds provisional location identifiers into canonical ones.
type IdentityService struct {
	locations    ports.LocationRepository
	observations ports.ObservationRepository
	cache        ports.CacheService
}

// NewIdentityService creates a new IdentityService. cache may be nil.
func NewIdentityService(locations ports.LocationRepository, observations ports.ObservationRepository, cache ports.CacheService) *IdentityService {
	return &IdentityService{locations: locations, observations: observations, cache: cache}
}

// MergeIdentity moves oldID onto newID.
//
// When newID is free the location row is renamed in place and its
// observations follow. When newID already exists, observations are
// re-pointed at it and the row at oldID is deleted. Every step is safe to
// repeat: a retried or repeated call converges on the same state and reports
// domain.MergeNoop once nothing is left to move.
func (s *IdentityService) MergeIdentity(ctx context.Context, oldID, newID string) (domain.MergeMode, error) {
	if oldID == newID || !domain.IsCanonicalID(newID) {
		return "", fmt.Errorf("%w: %q -> %q", domain.ErrInvalidMerge, oldID, newID)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "identity.merge")
	defer span.End()
	span.SetAttributes(telemetry.AttrLocationID.String(oldID), telemetry.AttrCanonicalID.String(newID))

	mode, err := s.merge(ctx, oldID, newID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		return "", err
	}
	span.SetAttributes(telemetry.AttrMergeMode.String(string(mode)))
	metrics.Merges.WithLabelValues(string(mode)).Inc()

	s.invalidate(ctx, oldID, newID)
	return mode, nil
}

func (s *IdentityService) merge(ctx context.Context, oldID, newID string) (domain.MergeMode, error) {
	_, err := s.locations.Get(ctx, newID)
	switch {
	case err == nil:
		return s.mergeInto(ctx, oldID, newID)
	case errors.Is(err, domain.ErrNotFound):
		return s.rename(ctx, oldID, newID)
	default:
		return "", fmt.Errorf("lookup %s: %w", newID, err)
	}
}

// mergeInto handles the conflict branch: newID survives.
func (s *IdentityService) mergeInto(ctx context.Context, oldID, newID string) (domain.MergeMode, error) {
	moved, err := s.observations.Repoint(ctx, oldID, newID)
	if err != nil {
		return "", fmt.Errorf("repoint observations %s -> %s: %w", oldID, newID, err)
	}
	deleted, err := s.locations.Delete(ctx, oldID)
	if err != nil {
		return "", fmt.Errorf("delete location %s: %w", oldID, err)
	}
	if moved == 0 && deleted == 0 {
		return domain.MergeNoop, nil
	}
	slog.Debug("merged location into existing canonical record",
		"location_id", oldID, "canonical_id", newID, "observations", moved)
	return domain.MergeMerged, nil
}

// rename handles the no-conflict branch.
func (s *IdentityService) rename(ctx context.Context, oldID, newID string) (domain.MergeMode, error) {
	n, err := s.locations.UpdateIdentifier(ctx, oldID, newID)
	if err != nil {
		return "", fmt.Errorf("rename location %s -> %s: %w", oldID, newID, err)
	}
	if n == 0 {
		return "", fmt.Errorf("rename location %s: %w", oldID, domain.ErrNotFound)
	}
	// Stores without ON UPDATE CASCADE leave observations behind; sweep them.
	if _, err := s.observations.Repoint(ctx, oldID, newID); err != nil {
		return "", fmt.Errorf("repoint observations %s -> %s: %w", oldID, newID, err)
	}
	return domain.MergeRenamed, nil
}

func (s *IdentityService) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		keys = append(keys, locationCacheKey(id), latestCacheKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

func locationCacheKey(id string) string { return "locations:id:" + id }

func latestCacheKey(id string) string { return "locations:latest:" + id }
