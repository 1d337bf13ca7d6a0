package ports

import (
	"context"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
)

// MenuGateway fetches a location's menu availability.
type MenuGateway interface {
	StoreMenu(ctx context.Context, locationID string) ([]domain.MenuEntry, error)
}

// NearbyGateway asks the gateway for locations around a point. The response
// shape is not fixed; callers receive the raw document.
type NearbyGateway interface {
	Nearby(ctx context.Context, point domain.GeoPoint, limit int) (*jsontree.Node, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishObservation(ctx context.Context, o *domain.Observation) error
	PublishOutcome(ctx context.Context, o *domain.LocationOutcome) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, keys ...string) error
}

// EventSubscriber consumes domain events from a message broker.
type EventSubscriber interface {
	SubscribeOutcomes(ctx context.Context, durable string, handler func(ctx context.Context, o *domain.LocationOutcome) error) error
}

// OutcomeReporter renders a finished reconciliation run.
type OutcomeReporter interface {
	WriteSummary(s *domain.RunSummary) error
}
