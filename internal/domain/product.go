package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT / STOCK LEDGER TYPES
// =============================================================================

// Product is the subset of a catalog product the cart and order flows need.
// Stock is the authoritative count of purchasable units and never goes negative.
type Product struct {
	ID                string
	Name              string
	Price             decimal.Decimal
	Stock             int
	Active            bool
	LowStockThreshold int
	UpdatedAt         time.Time
}

// IsLowStock reports whether stock is at or below the low-stock threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

// ProductReader is the read side of the catalog. It has no side effects.
type ProductReader interface {
	// FindByID returns ErrNotFoundInStore if the product does not exist.
	FindByID(ctx context.Context, id string) (*Product, error)

	// FindMany returns the products that exist, keyed by id.
	// Missing ids are simply absent from the map.
	FindMany(ctx context.Context, ids []string) (map[string]*Product, error)
}

// ProductLister enumerates the catalog for background monitors.
type ProductLister interface {
	All(ctx context.Context) ([]Product, error)
}

// StockLedger is the only way stock changes. Decrement is an atomic
// conditional update: it succeeds only if current stock >= qty and returns
// ErrStockConflict otherwise, leaving stock untouched.
type StockLedger interface {
	ProductReader

	Decrement(ctx context.Context, productID string, qty int) error

	// Increment is unconditional. It does not check Active.
	// Returns ErrNotFoundInStore if the product does not exist.
	Increment(ctx context.Context, productID string, qty int) error
}

// Product-related domain errors.
var (
	ErrProductUnavailable = &Error{Code: EUNAVAILABLE, Message: "Product is no longer available"}
	ErrInsufficientStock  = &Error{Code: EINSUFFICIENTSTOCK, Message: "Insufficient stock"}
	ErrInvalidStockDelta  = &Error{Code: EINVALID, Message: "Stock adjustment must be non-zero"}
)
