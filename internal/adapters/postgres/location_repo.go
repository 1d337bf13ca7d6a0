package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

const (
	locationColumns    = `location_id, name, address, city, region, lat, lon`
	canonicalClause    = `location_id ~ '^[0-9]+$'`
	nonCanonicalClause = `location_id !~ '^[0-9]+$'`
)

// LocationRepo implements ports.LocationRepository with pgx.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func scanLocation(row pgx.Row) (domain.Location, error) {
	var (
		l        domain.Location
		lat, lon *float64
	)
	if err := row.Scan(&l.ID, &l.Name, &l.Address, &l.City, &l.Region, &lat, &lon); err != nil {
		return l, err
	}
	if lat != nil && lon != nil {
		l.Coordinates = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	return l, nil
}

func (r *LocationRepo) query(ctx context.Context, q string, args ...any) ([]domain.Location, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
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

// Get returns a location by identifier.
func (r *LocationRepo) Get(ctx context.Context, id string) (*domain.Location, error) {
	l, err := scanLocation(r.db.Pool.QueryRow(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE location_id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// Count returns the number of locations, optionally canonical ones only.
func (r *LocationRepo) Count(ctx context.Context, canonicalOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM locations`
	if canonicalOnly {
		q += ` WHERE ` + canonicalClause
	}
	var n int
	err := r.db.Pool.QueryRow(ctx, q).Scan(&n)
	return n, err
}

// List pages through locations in identifier order.
func (r *LocationRepo) List(ctx context.Context, canonicalOnly bool, offset, limit int) ([]domain.Location, error) {
	q := `SELECT ` + locationColumns + ` FROM locations`
	if canonicalOnly {
		q += ` WHERE ` + canonicalClause
	}
	q += ` ORDER BY location_id LIMIT $1 OFFSET $2`
	return r.query(ctx, q, limit, offset)
}

// ListByRegion pages through a region's locations. An empty region means all.
func (r *LocationRepo) ListByRegion(ctx context.Context, region string, offset, limit int) ([]domain.Location, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM locations WHERE ($1 = '' OR region = $1)`, region,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	locs, err := r.query(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE ($1 = '' OR region = $1)
		ORDER BY location_id LIMIT $2 OFFSET $3
	`, region, limit, offset)
	return locs, total, err
}

// ListInBounds returns located rows inside b, closest to the box centre first.
func (r *LocationRepo) ListInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Location, error) {
	c := b.Center()
	return r.query(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE lat BETWEEN $1 AND $2 AND lon BETWEEN $3 AND $4
		ORDER BY (lat - $5::float8) ^ 2 + (lon - $6::float8) ^ 2 * $7::float8, location_id
		LIMIT $8
	`, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon, c.Lat, c.Lon, b.LonScale(), limit)
}

// ListNonCanonical returns every provisional location of a region.
func (r *LocationRepo) ListNonCanonical(ctx context.Context, region string) ([]domain.Location, error) {
	return r.query(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE region = $1 AND `+nonCanonicalClause+`
		ORDER BY location_id
	`, region)
}

// Upsert inserts or updates a location. Missing coordinates never erase
// stored ones.
func (r *LocationRepo) Upsert(ctx context.Context, loc *domain.Location) error {
	var lat, lon *float64
	if loc.Coordinates != nil {
		lat, lon = &loc.Coordinates.Lat, &loc.Coordinates.Lon
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO locations (location_id, name, address, city, region, lat, lon)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (location_id) DO UPDATE
		SET name = EXCLUDED.name, address = EXCLUDED.address, city = EXCLUDED.city,
		    region = EXCLUDED.region,
		    lat = COALESCE(EXCLUDED.lat, locations.lat),
		    lon = COALESCE(EXCLUDED.lon, locations.lon)
	`, loc.ID, loc.Name, loc.Address, loc.City, loc.Region, lat, lon)
	return err
}

// UpdateIdentifier renames a location; observations follow via ON UPDATE CASCADE.
func (r *LocationRepo) UpdateIdentifier(ctx context.Context, oldID, newID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE locations SET location_id = $1 WHERE location_id = $2`, newID, oldID)
	if err != nil {
		if sqlState(err) == codeUniqueViolation {
			return 0, fmt.Errorf("location %s already exists: %w", newID, err)
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a location. It fails while observations still reference it.
func (r *LocationRepo) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM locations WHERE location_id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RefreshLatest rebuilds the location_latest materialized view.
func (r *LocationRepo) RefreshLatest(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY location_latest`)
	return err
}
