package sqlite

import (
	"context"
	"database/sql"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// ObservationRepo implements ports.ObservationRepository.
type ObservationRepo struct {
	db *DB
}

// NewObservationRepo creates a new ObservationRepo.
func NewObservationRepo(db *DB) *ObservationRepo {
	return &ObservationRepo{db: db}
}

// Insert stores an observation. An unknown item yields domain.ErrUnknownItem.
func (r *ObservationRepo) Insert(ctx context.Context, o *domain.Observation) error {
	var price sql.NullInt64
	if o.PriceCents != nil {
		price = sql.NullInt64{Int64: int64(*o.PriceCents), Valid: true}
	}
	res, err := r.db.Conn.ExecContext(ctx, `
		INSERT INTO observations (location_id, item_id, is_available, price_cents, checked_at)
		VALUES (?, ?, ?, ?, ?)
	`, o.LocationID, o.ItemID, o.Available, price, formatTime(o.CheckedAt))
	if isForeignKeyViolation(err) {
		return domain.ErrUnknownItem
	}
	if err != nil {
		return err
	}
	o.ID, _ = res.LastInsertId()
	return nil
}

// Repoint moves every observation of oldLocationID to newLocationID.
func (r *ObservationRepo) Repoint(ctx context.Context, oldLocationID, newLocationID string) (int64, error) {
	res, err := r.db.Conn.ExecContext(ctx,
		`UPDATE observations SET location_id = ? WHERE location_id = ?`, newLocationID, oldLocationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByLocation returns how many observations reference a location.
func (r *ObservationRepo) CountByLocation(ctx context.Context, locationID string) (int, error) {
	var n int
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observations WHERE location_id = ?`, locationID).Scan(&n)
	return n, err
}

// Latest returns the most recent observation per item for a location.
func (r *ObservationRepo) Latest(ctx context.Context, locationID string) ([]domain.LatestAvailability, error) {
	rows, err := r.db.Conn.QueryContext(ctx, `
		SELECT o.location_id, o.item_id, COALESCE(NULLIF(i.name_en, ''), i.name_fr, ''),
		       o.is_available, o.price_cents, o.checked_at
		FROM observations o
		LEFT JOIN items i ON i.item_id = o.item_id
		WHERE o.location_id = ?
		  AND o.id = (
		      SELECT MAX(o2.id) FROM observations o2
		      WHERE o2.location_id = o.location_id AND o2.item_id = o.item_id
		  )
		ORDER BY o.item_id
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LatestAvailability
	for rows.Next() {
		var (
			la        domain.LatestAvailability
			price     sql.NullInt64
			checkedAt string
		)
		if err := rows.Scan(&la.LocationID, &la.ItemID, &la.ItemName, &la.Available, &price, &checkedAt); err != nil {
			return nil, err
		}
		if price.Valid {
			p := int(price.Int64)
			la.PriceCents = &p
		}
		la.CheckedAt = parseTime(checkedAt)
		out = append(out, la)
	}
	return out, rows.Err()
}
