package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
	location_id TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	region      TEXT NOT NULL DEFAULT '',
	lat         REAL,
	lon         REAL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_locations_region ON locations(region, location_id);

CREATE TABLE IF NOT EXISTS items (
	item_id TEXT PRIMARY KEY,
	name_en TEXT,
	name_fr TEXT,
	family  TEXT
);

CREATE TABLE IF NOT EXISTS observations (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id  TEXT NOT NULL REFERENCES locations(location_id) ON UPDATE CASCADE,
	item_id      TEXT NOT NULL REFERENCES items(item_id),
	is_available INTEGER NOT NULL,
	price_cents  INTEGER,
	checked_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_location_item ON observations(location_id, item_id, id);
`

// Identifiers made only of digits are canonical.
const (
	canonicalClause    = `(location_id <> '' AND location_id NOT GLOB '*[^0-9]*')`
	nonCanonicalClause = `(location_id = '' OR location_id GLOB '*[^0-9]*')`
)

// DB wraps a single-connection database/sql handle. SQLite serialises
// writers anyway, and ":memory:" databases exist per connection.
type DB struct {
	Conn *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{Conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	if db == nil || db.Conn == nil {
		return nil
	}
	return db.Conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
