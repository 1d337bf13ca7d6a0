package ports

import (
	"context"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// LocationRepository persists locations. It is the only port allowed to
// change location identifiers.
type LocationRepository interface {
	// Get returns domain.ErrNotFound when id does not exist.
	Get(ctx context.Context, id string) (*domain.Location, error)
	Count(ctx context.Context, canonicalOnly bool) (int, error)
	List(ctx context.Context, canonicalOnly bool, offset, limit int) ([]domain.Location, error)
	ListByRegion(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error)
	// ListInBounds returns located rows inside b, closest to its centre first.
	ListInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error)
	ListNonCanonical(ctx context.Context, region string) ([]domain.Location, error)
	Upsert(ctx context.Context, loc *domain.Location) error
	// UpdateIdentifier renames the primary key; dependent observations follow
	// through the store's ON UPDATE CASCADE. Returns rows affected.
	UpdateIdentifier(ctx context.Context, oldID, newID string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	// RefreshLatest rebuilds the latest-availability projection.
	RefreshLatest(ctx context.Context) error
}

// ObservationRepository persists availability checks.
type ObservationRepository interface {
	// Insert returns domain.ErrUnknownItem when the item row is missing.
	Insert(ctx context.Context, o *domain.Observation) error
	Repoint(ctx context.Context, oldLocationID, newLocationID string) (int64, error)
	CountByLocation(ctx context.Context, locationID string) (int, error)
	Latest(ctx context.Context, locationID string) ([]domain.LatestAvailability, error)
}

// ItemRepository persists menu items.
type ItemRepository interface {
	// Upsert keeps existing names when the incoming ones are empty.
	Upsert(ctx context.Context, item *domain.Item) error
	// Name returns "" with domain.ErrNotFound for unknown items.
	Name(ctx context.Context, id string) (string, error)
}
