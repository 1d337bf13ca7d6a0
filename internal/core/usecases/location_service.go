package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/ports"
	"github.com/samirrijal/menuwatch/internal/pkg/geospatial"
)

// LocationService serves read-side location queries.
type LocationService struct {
	locations    ports.LocationRepository
	observations ports.ObservationRepository
	cache        ports.CacheService
}

// NewLocationService creates a new LocationService. cache may be nil.
func NewLocationService(locations ports.LocationRepository, observations ports.ObservationRepository, cache ports.CacheService) *LocationService {
	return &LocationService{locations: locations, observations: observations, cache: cache}
}

// List returns one page of a region's locations and the region total.
// An empty region lists everything.
func (s *LocationService) List(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.locations.ListByRegion(ctx, region, offset, limit)
}

// GetByID returns a single location.
func (s *LocationService) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	key := locationCacheKey(id)
	var loc domain.Location
	if s.cached(ctx, key, &loc) {
		return &loc, nil
	}

	found, err := s.locations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, found, 600)
	return found, nil
}

// Latest returns the newest observation of every item at a location.
func (s *LocationService) Latest(ctx context.Context, id string) ([]domain.LatestAvailability, error) {
	key := latestCacheKey(id)
	var rows []domain.LatestAvailability
	if s.cached(ctx, key, &rows) {
		return rows, nil
	}

	if _, err := s.locations.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.observations.Latest(ctx, id)
	if err != nil {
		return nil, err
	}
	// Short TTL: the collector writes every few minutes.
	s.store(ctx, key, rows, 60)
	return rows, nil
}

// Nearby returns locations within radiusMeters of (lat, lon), nearest first.
func (s *LocationService) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Location, error) {
	if !geospatial.ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("invalid coordinate %f,%f", lat, lon)
	}
	if radiusMeters <= 0 || radiusMeters > 50000 {
		radiusMeters = 1000
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)
	boxed, err := s.locations.ListInBounds(ctx, domain.Bounds{
		MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon,
	}, limit*4)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Location, 0, len(boxed))
	for _, loc := range boxed {
		if loc.Coordinates == nil {
			continue
		}
		d := geospatial.Haversine(lat, lon, loc.Coordinates.Lat, loc.Coordinates.Lon)
		if d > radiusMeters {
			continue
		}
		loc.Distance = &d
		out = append(out, loc)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *LocationService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *LocationService) store(ctx context.Context, key string, v any, ttl int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttl)
	}
}

// ForgetOutcome drops cached entries touched by a merge reported by another
// process. Outcomes without a merge are ignored.
func (s *LocationService) ForgetOutcome(ctx context.Context, o *domain.LocationOutcome) error {
	if s.cache == nil || o == nil || o.Outcome != domain.OutcomeMatched || o.DryRun {
		return nil
	}
	if o.Merge == "" || o.Merge == domain.MergeNoop {
		return nil
	}
	keys := []string{locationCacheKey(o.LocationID), latestCacheKey(o.LocationID)}
	if o.CanonicalID != "" {
		keys = append(keys, locationCacheKey(o.CanonicalID), latestCacheKey(o.CanonicalID))
	}
	return s.cache.Delete(ctx, keys...)
}
