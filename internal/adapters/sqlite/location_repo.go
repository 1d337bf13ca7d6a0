package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// LocationRepo implements ports.LocationRepository.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

const locationColumns = `location_id, name, address, city, region, lat, lon`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (domain.Location, error) {
	var (
		l        domain.Location
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(&l.ID, &l.Name, &l.Address, &l.City, &l.Region, &lat, &lon); err != nil {
		return l, err
	}
	if lat.Valid && lon.Valid {
		l.Coordinates = &domain.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	return l, nil
}

func (r *LocationRepo) query(ctx context.Context, q string, args ...any) ([]domain.Location, error) {
	rows, err := r.db.Conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Get returns a location by ID, or domain.ErrNotFound.
func (r *LocationRepo) Get(ctx context.Context, id string) (*domain.Location, error) {
	l, err := scanLocation(r.db.Conn.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE location_id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// Count returns the number of locations, optionally only canonical ones.
func (r *LocationRepo) Count(ctx context.Context, canonicalOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM locations`
	if canonicalOnly {
		q += ` WHERE ` + canonicalClause
	}
	var n int
	err := r.db.Conn.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

// List returns a page of locations ordered by ID.
func (r *LocationRepo) List(ctx context.Context, canonicalOnly bool, offset, limit int) ([]domain.Location, error) {
	q := `SELECT ` + locationColumns + ` FROM locations`
	if canonicalOnly {
		q += ` WHERE ` + canonicalClause
	}
	q += ` ORDER BY location_id LIMIT ? OFFSET ?`
	return r.query(ctx, q, limit, offset)
}

// ListByRegion returns a page of a region's locations and the region total.
// An empty region matches every location.
func (r *LocationRepo) ListByRegion(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error) {
	var total int
	if err := r.db.Conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE (? = '' OR region = ?)`, region, region,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	locs, err := r.query(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE (? = '' OR region = ?)
		ORDER BY location_id LIMIT ? OFFSET ?
	`, region, region, limit, offset)
	return locs, total, err
}

// ListInBounds returns located rows inside b, closest to the box centre first.
func (r *LocationRepo) ListInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error) {
	c := b.Center()
	return r.query(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY (lat - ?) * (lat - ?) + (lon - ?) * (lon - ?) * ?, location_id
		LIMIT ?
	`, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon, c.Lat, c.Lat, c.Lon, c.Lon, b.LonScale(), limit)
}

// ListNonCanonical returns every provisional location of a region.
func (r *LocationRepo) ListNonCanonical(ctx context.Context, region string) ([]domain.Location, error) {
	return r.query(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE region = ? AND `+nonCanonicalClause+`
		ORDER BY location_id
	`, region)
}

// Upsert inserts or updates a location. Missing coordinates never erase
// stored ones.
func (r *LocationRepo) Upsert(ctx context.Context, loc *domain.Location) error {
	var lat, lon sql.NullFloat64
	if loc.Coordinates != nil {
		lat = sql.NullFloat64{Float64: loc.Coordinates.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: loc.Coordinates.Lon, Valid: true}
	}
	_, err := r.db.Conn.ExecContext(ctx, `
		INSERT INTO locations (location_id, name, address, city, region, lat, lon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (location_id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			city = excluded.city,
			region = excluded.region,
			lat = COALESCE(excluded.lat, locations.lat),
			lon = COALESCE(excluded.lon, locations.lon)
	`, loc.ID, loc.Name, loc.Address, loc.City, loc.Region, lat, lon, formatTime(time.Now()))
	return err
}

// UpdateIdentifier renames a location; observations follow via ON UPDATE CASCADE.
func (r *LocationRepo) UpdateIdentifier(ctx context.Context, oldID, newID string) (int64, error) {
	res, err := r.db.Conn.ExecContext(ctx,
		`UPDATE locations SET location_id = ? WHERE location_id = ?`, newID, oldID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a location. Referenced rows fail with a foreign key error.
func (r *LocationRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.Conn.ExecContext(ctx, `DELETE FROM locations WHERE location_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RefreshLatest is a no-op: the latest view is computed on read.
func (r *LocationRepo) RefreshLatest(ctx context.Context) error {
	return nil
}
