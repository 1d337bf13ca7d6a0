package postgres

import (
	"context"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// ObservationRepo implements ports.ObservationRepository with pgx.
type ObservationRepo struct {
	db *DB
}

// NewObservationRepo creates a new ObservationRepo.
func NewObservationRepo(db *DB) *ObservationRepo {
	return &ObservationRepo{db: db}
}

// Insert records one availability check.
func (r *ObservationRepo) Insert(ctx context.Context, o *domain.Observation) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO observations (location_id, item_id, is_available, price_cents, checked_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, o.LocationID, o.ItemID, o.Available, o.PriceCents, o.CheckedAt).Scan(&o.ID)
	if sqlState(err) == codeForeignKeyViolation {
		return domain.ErrUnknownItem
	}
	return err
}

// Repoint moves every observation of oldLocationID to newLocationID.
func (r *ObservationRepo) Repoint(ctx context.Context, oldLocationID, newLocationID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE observations SET location_id = $1 WHERE location_id = $2`, newLocationID, oldLocationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ObservationRepo) CountByLocation(ctx context.Context, locationID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM observations WHERE location_id = $1`, locationID).Scan(&n)
	return n, err
}

// Latest reads the materialized view; it lags until the next refresh.
func (r *ObservationRepo) Latest(ctx context.Context, locationID string) ([]domain.LatestAvailability, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT location_id, item_id, item_name, is_available, price_cents, checked_at
		FROM location_latest
		WHERE location_id = $1
		ORDER BY item_id
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LatestAvailability
	for rows.Next() {
		var la domain.LatestAvailability
		if err := rows.Scan(&la.LocationID, &la.ItemID, &la.ItemName, &la.Available, &la.PriceCents, &la.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, la)
	}
	return out, rows.Err()
}
