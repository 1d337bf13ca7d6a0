package postgres

import (
	"context"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// ItemRepo implements ports.ItemRepository with pgx.
type ItemRepo struct {
	db *DB
}

// NewItemRepo creates a new ItemRepo.
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Upsert inserts an item; empty fields never overwrite known ones.
func (r *ItemRepo) Upsert(ctx context.Context, item *domain.Item) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO items (item_id, name_en, name_fr, family)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id) DO UPDATE
		SET name_en = COALESCE(EXCLUDED.name_en, items.name_en),
		    name_fr = COALESCE(EXCLUDED.name_fr, items.name_fr),
		    family  = COALESCE(EXCLUDED.family, items.family)
	`, item.ID, nullIfEmpty(item.NameEN), nullIfEmpty(item.NameFR), nullIfEmpty(item.Family))
	return err
}

// Name returns the English name, falling back to French.
func (r *ItemRepo) Name(ctx context.Context, id string) (string, error) {
	var name string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COALESCE(NULLIF(name_en, ''), name_fr, '') FROM items WHERE item_id = $1
	`, id).Scan(&name)
	if err != nil {
		return "", notFound(err)
	}
	return name, nil
}
