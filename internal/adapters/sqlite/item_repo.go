package sqlite

import (
	"context"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// ItemRepo implements ports.ItemRepository.
type ItemRepo struct {
	db *DB
}

// NewItemRepo creates a new ItemRepo.
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// Upsert inserts an item or fills in names it did not have.
func (r *ItemRepo) Upsert(ctx context.Context, item *domain.Item) error {
	_, err := r.db.Conn.ExecContext(ctx, `
		INSERT INTO items (item_id, name_en, name_fr, family)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			name_en = COALESCE(excluded.name_en, items.name_en),
			name_fr = COALESCE(excluded.name_fr, items.name_fr),
			family  = COALESCE(excluded.family, items.family)
	`, item.ID, nullableString(item.NameEN), nullableString(item.NameFR), nullableString(item.Family))
	return err
}

// Name returns the display name of an item, or domain.ErrNotFound.
func (r *ItemRepo) Name(ctx context.Context, id string) (string, error) {
	var name string
	err := r.db.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(NULLIF(name_en, ''), name_fr, '') FROM items WHERE item_id = ?
	`, id).Scan(&name)
	if err != nil {
		return "", notFound(err)
	}
	return name, nil
}
