package postgres

import (
	"context"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Ledger implements domain.StockLedger and domain.ProductLister.
type Ledger struct {
	db DBTX
}

var (
	_ domain.StockLedger   = (*Ledger)(nil)
	_ domain.ProductLister = (*Ledger)(nil)
)

const productColumns = `id, name, price_cents, stock, active, low_stock_threshold, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		cents int64
	)
	if err := row.Scan(&p.ID, &p.Name, &cents, &p.Stock, &p.Active, &p.LowStockThreshold, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Price = domain.FromCents(cents)
	return &p, nil
}

// FindByID implements domain.ProductReader.
func (l *Ledger) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(l.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, domain.ErrNotFoundInStore
	}
	if err != nil {
		return nil, fmt.Errorf("select product %s: %w", id, err)
	}
	return p, nil
}

// FindMany implements domain.ProductReader in a single round trip.
func (l *Ledger) FindMany(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := l.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// All implements domain.ProductLister.
func (l *Ledger) All(ctx context.Context) ([]domain.Product, error) {
	rows, err := l.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Decrement implements domain.StockLedger with a conditional UPDATE, so the
// check and the write are one statement and concurrent callers serialize on
// the row lock.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) error {
	tag, err := l.db.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockConflict
	}
	return nil
}

// Increment implements domain.StockLedger. It does not look at active.
func (l *Ledger) Increment(ctx context.Context, productID string, qty int) error {
	tag, err := l.db.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFoundInStore
	}
	return nil
}

// Upsert inserts or replaces a product. Used for seeding and catalog sync.
func (l *Ledger) Upsert(ctx context.Context, p domain.Product) error {
	_, err := l.db.Exec(ctx,
		`INSERT INTO products (id, name, price_cents, stock, active, low_stock_threshold)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   price_cents = EXCLUDED.price_cents,
		   stock = EXCLUDED.stock,
		   active = EXCLUDED.active,
		   low_stock_threshold = EXCLUDED.low_stock_threshold,
		   updated_at = now()`,
		p.ID, p.Name, domain.ToCents(p.Price), p.Stock, p.Active, p.LowStockThreshold)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}
