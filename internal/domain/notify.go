package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// NotificationKind names a shopper-facing notice.
type NotificationKind string

const (
	NotifyOrderConfirmed NotificationKind = "order_confirmed"
	NotifyOrderCancelled NotificationKind = "order_cancelled"
	NotifyOrderPaid      NotificationKind = "order_paid"
	NotifyOrderStatus    NotificationKind = "order_status"
	NotifyPaymentFailed  NotificationKind = "payment_failed"
	NotifyRefundIssued   NotificationKind = "refund_issued"
	NotifyLowStock       NotificationKind = "low_stock"
	NotifyPriceDrop      NotificationKind = "price_drop"
	NotifyBackInStock    NotificationKind = "back_in_stock"
)

// NotificationDispatcher is a fire-and-forget side channel. Callers log
// failures and carry on; a failed notify never undoes committed state.
type NotificationDispatcher interface {
	Notify(ctx context.Context, shopperID string, kind NotificationKind, payload map[string]any) error
}

// CacheInvalidator tells the catalog to drop cached views of products whose
// stock changed. Advisory only.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, productIDs []string) error
}

// ProductSnapshot is the last-seen price and stock of a product.
type ProductSnapshot struct {
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// SnapshotStore keeps monitor state between cycles, keyed by monitor name.
// Load returns ErrNotFoundInStore when no snapshot has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context, name string) (map[string]ProductSnapshot, error)
	Save(ctx context.Context, name string, snap map[string]ProductSnapshot) error
}

// WishlistRepository stores which shoppers watch which products.
type WishlistRepository interface {
	Add(ctx context.Context, shopperID, productID string) error
	Remove(ctx context.Context, shopperID, productID string) error
	List(ctx context.Context, shopperID string) ([]string, error)
	// Watchers returns shopper ids per product id.
	Watchers(ctx context.Context, productIDs []string) (map[string][]string, error)
}
