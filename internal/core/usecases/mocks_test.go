package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
)

// --- Mock LocationRepository ---

type mockLocationRepo struct {
	getFn              func(ctx context.Context, id string) (*domain.Location, error)
	countFn            func(ctx context.Context, canonicalOnly bool) (int, error)
	listFn             func(ctx context.Context, canonicalOnly bool, offset, limit int) ([]domain.Location, error)
	listByRegionFn     func(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error)
	listInBoundsFn     func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error)
	listNonCanonicalFn func(ctx context.Context, region string) ([]domain.Location, error)
	updateIdentifierFn func(ctx context.Context, oldID, newID string) (int64, error)
	deleteFn           func(ctx context.Context, id string) (int64, error)
	refreshed          int
}

func (m *mockLocationRepo) Get(ctx context.Context, id string) (*domain.Location, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockLocationRepo) Count(ctx context.Context, canonicalOnly bool) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, canonicalOnly)
	}
	return 0, nil
}

func (m *mockLocationRepo) List(ctx context.Context, canonicalOnly bool, offset, limit int) ([]domain.Location, error) {
	if m.listFn != nil {
		return m.listFn(ctx, canonicalOnly, offset, limit)
	}
	return nil, nil
}

func (m *mockLocationRepo) ListByRegion(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error) {
	if m.listByRegionFn != nil {
		return m.listByRegionFn(ctx, region, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockLocationRepo) ListInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error) {
	if m.listInBoundsFn != nil {
		return m.listInBoundsFn(ctx, b, limit)
	}
	return nil, nil
}

func (m *mockLocationRepo) ListNonCanonical(ctx context.Context, region string) ([]domain.Location, error) {
	if m.listNonCanonicalFn != nil {
		return m.listNonCanonicalFn(ctx, region)
	}
	return nil, nil
}

func (m *mockLocationRepo) Upsert(ctx context.Context, loc *domain.Location) error { return nil }

func (m *mockLocationRepo) UpdateIdentifier(ctx context.Context, oldID, newID string) (int64, error) {
	if m.updateIdentifierFn != nil {
		return m.updateIdentifierFn(ctx, oldID, newID)
	}
	return 0, nil
}

func (m *mockLocationRepo) Delete(ctx context.Context, id string) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return 0, nil
}

func (m *mockLocationRepo) RefreshLatest(ctx context.Context) error {
	m.refreshed++
	return nil
}

// --- Mock ObservationRepository ---

type mockObservationRepo struct {
	mu        sync.Mutex
	insertFn  func(ctx context.Context, o *domain.Observation) error
	repointFn func(ctx context.Context, oldID, newID string) (int64, error)
	latestFn  func(ctx context.Context, id string) ([]domain.LatestAvailability, error)
	inserted  []domain.Observation
}

func (m *mockObservationRepo) Insert(ctx context.Context, o *domain.Observation) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.inserted = append(m.inserted, *o)
	m.mu.Unlock()
	return nil
}

func (m *mockObservationRepo) Repoint(ctx context.Context, oldID, newID string) (int64, error) {
	if m.repointFn != nil {
		return m.repointFn(ctx, oldID, newID)
	}
	return 0, nil
}

func (m *mockObservationRepo) CountByLocation(ctx context.Context, id string) (int, error) {
	return 0, nil
}

func (m *mockObservationRepo) Latest(ctx context.Context, id string) ([]domain.LatestAvailability, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, id)
	}
	return nil, nil
}

// --- Mock ItemRepository ---

type mockItemRepo struct {
	names    map[string]string
	upserted []domain.Item
}

func (m *mockItemRepo) Upsert(ctx context.Context, item *domain.Item) error {
	m.upserted = append(m.upserted, *item)
	return nil
}

func (m *mockItemRepo) Name(ctx context.Context, id string) (string, error) {
	if n, ok := m.names[id]; ok {
		return n, nil
	}
	return "", domain.ErrNotFound
}

// --- Mock gateways ---

type mockNearby struct {
	nearbyFn func(ctx context.Context, p domain.GeoPoint, limit int) (*jsontree.Node, error)
	calls    int
}

func (m *mockNearby) Nearby(ctx context.Context, p domain.GeoPoint, limit int) (*jsontree.Node, error) {
	m.calls++
	return m.nearbyFn(ctx, p, limit)
}

type mockMenu struct {
	storeMenuFn func(ctx context.Context, id string) ([]domain.MenuEntry, error)
}

func (m *mockMenu) StoreMenu(ctx context.Context, id string) ([]domain.MenuEntry, error) {
	return m.storeMenuFn(ctx, id)
}

// --- Mock IdentityMerger ---

type mockMerger struct {
	mergeFn func(ctx context.Context, oldID, newID string) (domain.MergeMode, error)
	calls   [][2]string
}

func (m *mockMerger) MergeIdentity(ctx context.Context, oldID, newID string) (domain.MergeMode, error) {
	m.calls = append(m.calls, [2]string{oldID, newID})
	if m.mergeFn != nil {
		return m.mergeFn(ctx, oldID, newID)
	}
	return domain.MergeRenamed, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	observations []domain.Observation
	outcomes     []domain.LocationOutcome
}

func (m *mockPublisher) PublishObservation(ctx context.Context, o *domain.Observation) error {
	m.observations = append(m.observations, *o)
	return nil
}

func (m *mockPublisher) PublishOutcome(ctx context.Context, o *domain.LocationOutcome) error {
	m.outcomes = append(m.outcomes, *o)
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	data    map[string][]byte
	deleted []string
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}
