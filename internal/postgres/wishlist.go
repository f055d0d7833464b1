package postgres

import (
	"context"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
)

// Wishlists implements domain.WishlistRepository.
type Wishlists struct {
	db DBTX
}

var _ domain.WishlistRepository = (*Wishlists)(nil)

func (w *Wishlists) Add(ctx context.Context, shopperID, productID string) error {
	_, err := w.db.Exec(ctx,
		`INSERT INTO wishlist_items (shopper_id, product_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, shopperID, productID)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFoundInStore
	}
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

func (w *Wishlists) Remove(ctx context.Context, shopperID, productID string) error {
	_, err := w.db.Exec(ctx,
		`DELETE FROM wishlist_items WHERE shopper_id = $1 AND product_id = $2`, shopperID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}

func (w *Wishlists) List(ctx context.Context, shopperID string) ([]string, error) {
	rows, err := w.db.Query(ctx,
		`SELECT product_id FROM wishlist_items WHERE shopper_id = $1 ORDER BY product_id`, shopperID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (w *Wishlists) Watchers(ctx context.Context, productIDs []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := w.db.Query(ctx,
		`SELECT product_id, shopper_id FROM wishlist_items
		 WHERE product_id = ANY($1) ORDER BY product_id, shopper_id`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("select wishlist watchers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID, shopperID string
		if err := rows.Scan(&productID, &shopperID); err != nil {
			return nil, fmt.Errorf("scan wishlist watcher: %w", err)
		}
		out[productID] = append(out[productID], shopperID)
	}
	return out, rows.Err()
}
