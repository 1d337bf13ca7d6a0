package usecases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/usecases"
)

func TestLocationService_NearbySortsAndFilters(t *testing.T) {
	locs := &mockLocationRepo{
		listInBoundsFn: func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error) {
			assert.Less(t, b.MinLat, 45.0)
			assert.Greater(t, b.MaxLat, 45.0)
			return []domain.Location{
				{ID: "far", Coordinates: at(45.0080, -73.0)},
				{ID: "near", Coordinates: at(45.0010, -73.0)},
				{ID: "none"},
				{ID: "mid", Coordinates: at(45.0030, -73.0)},
			}, nil
		},
	}
	svc := usecases.NewLocationService(locs, &mockObservationRepo{}, nil)
	got, err := svc.Nearby(context.Background(), 45.0, -73.0, 500, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	require.NotNil(t, got[0].Distance)
	assert.InDelta(t, 111.2, *got[0].Distance, 1)
}

func TestLocationService_NearbyRejectsBadCoordinate(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, &mockObservationRepo{}, nil)
	_, err := svc.Nearby(context.Background(), 91, 0, 100, 5)
	assert.Error(t, err)
}

func TestLocationService_GetByIDUsesCache(t *testing.T) {
	calls := 0
	locs := &mockLocationRepo{
		getFn: func(ctx context.Context, id string) (*domain.Location, error) {
			calls++
			return &domain.Location{ID: id, Name: "Main St"}, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewLocationService(locs, &mockObservationRepo{}, cache)

	for i := 0; i < 3; i++ {
		loc, err := svc.GetByID(context.Background(), "100001")
		require.NoError(t, err)
		assert.Equal(t, "Main St", loc.Name)
	}
	assert.Equal(t, 1, calls)
	assert.Contains(t, cache.data, "locations:id:100001")
}

func TestLocationService_LatestUnknownLocation(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, &mockObservationRepo{}, nil)
	_, err := svc.Latest(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocationService_ListClampsPaging(t *testing.T) {
	var gotOffset, gotLimit int
	locs := &mockLocationRepo{
		listByRegionFn: func(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error) {
			gotOffset, gotLimit = offset, limit
			return nil, 0, nil
		},
	}
	_, _, err := usecases.NewLocationService(locs, &mockObservationRepo{}, nil).List(context.Background(), "QC", -5, 10000)
	require.NoError(t, err)
	assert.Equal(t, 0, gotOffset)
	assert.Equal(t, 50, gotLimit)
}

func TestLocationService_ForgetOutcome(t *testing.T) {
	cache := newMockCache()
	svc := usecases.NewLocationService(&mockLocationRepo{}, &mockObservationRepo{}, cache)
	ctx := context.Background()

	require.NoError(t, svc.ForgetOutcome(ctx, &domain.LocationOutcome{
		LocationID: "kgl_1", Outcome: domain.OutcomeMatched, CanonicalID: "100001", Merge: domain.MergeMerged,
	}))
	assert.ElementsMatch(t, []string{
		"locations:id:kgl_1", "locations:latest:kgl_1",
		"locations:id:100001", "locations:latest:100001",
	}, cache.deleted)

	cache.deleted = nil
	for _, o := range []*domain.LocationOutcome{
		{LocationID: "a", Outcome: domain.OutcomeUnmatched},
		{LocationID: "b", Outcome: domain.OutcomeMatched, CanonicalID: "200002", DryRun: true},
		{LocationID: "c", Outcome: domain.OutcomeMatched, CanonicalID: "300003", Merge: domain.MergeNoop},
		nil,
	} {
		require.NoError(t, svc.ForgetOutcome(ctx, o))
	}
	assert.Empty(t, cache.deleted)
}
