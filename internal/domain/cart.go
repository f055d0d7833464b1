package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be at least 1"}
	ErrEmptyCart        = &Error{Code: EEMPTYCART, Message: "Cart is empty"}
)

// CartService maintains a shopper's prospective purchase list and always
// presents it re-validated against current stock.
type CartService interface {
	// Get returns the revalidated cart. A missing cart is an empty cart, never an error.
	Get(ctx context.Context, shopperID string) (*Cart, error)

	// Lines returns the stored lines exactly as the shopper requested them,
	// without revalidation. Order placement checks these against the ledger.
	Lines(ctx context.Context, shopperID string) ([]CartItem, error)

	// AddItem merges quantity into any existing line for the product.
	AddItem(ctx context.Context, shopperID, productID string, quantity int) (*Cart, error)

	// UpdateItem sets the quantity of a line already in the cart.
	UpdateItem(ctx context.Context, shopperID, productID string, quantity int) (*Cart, error)

	// RemoveItem removes a line from the cart.
	RemoveItem(ctx context.Context, shopperID, productID string) (*Cart, error)

	// Clear deletes the stored cart and returns an empty one.
	Clear(ctx context.Context, shopperID string) (*Cart, error)
}

// Cart is a shopper's ephemeral cart. Totals are always recomputed on read.
type Cart struct {
	ShopperID string     `json:"shopperId"`
	Items     []CartItem `json:"items"`
	Totals
}

// CartItem is a cart line. Name and UnitPrice are snapshots; the
// OutOfStock, AvailableStock and QuantityAdjusted fields are computed on read.
type CartItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"addedAt"`

	OutOfStock       bool `json:"outOfStock"`
	AvailableStock   int  `json:"availableStock"`
	QuantityAdjusted bool `json:"quantityAdjusted"`
}

// LineTotal is UnitPrice * Quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Purchasable returns the lines that count toward totals.
func (c *Cart) Purchasable() []CartItem {
	out := make([]CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		if !it.OutOfStock {
			out = append(out, it)
		}
	}
	return out
}

// IsEmpty reports whether the cart has no lines at all.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// KeyValueStore is the fast ephemeral cache carts live in. Entries expire
// after the store's configured TTL; every Put refreshes the expiry.
type KeyValueStore interface {
	// Get returns ErrNotFoundInStore for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
}
