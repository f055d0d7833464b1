package natsx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
)

const (
	// NotificationSubjectPrefix is followed by the notification kind.
	NotificationSubjectPrefix = "storefront.notify."

	// InvalidateSubject carries product ids whose cached views are stale.
	InvalidateSubject = "storefront.catalog.invalidate"
)

// Notification is the wire form of a shopper notice.
type Notification struct {
	ShopperID string                  `json:"shopperId"`
	Kind      domain.NotificationKind `json:"kind"`
	Payload   map[string]any          `json:"payload,omitempty"`
	At        time.Time               `json:"at"`
}

// Notifier implements domain.NotificationDispatcher over core NATS.
// Delivery mechanics (email, WebSocket) are owned by subscribers.
type Notifier struct {
	pub Publisher
	now func() time.Time
}

var _ domain.NotificationDispatcher = (*Notifier)(nil)

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub, now: time.Now}
}

// Notify implements domain.NotificationDispatcher.
func (n *Notifier) Notify(ctx context.Context, shopperID string, kind domain.NotificationKind, payload map[string]any) error {
	data, err := json.Marshal(Notification{
		ShopperID: shopperID,
		Kind:      kind,
		Payload:   payload,
		At:        n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.pub.Publish(NotificationSubjectPrefix+string(kind), data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Invalidation is the wire form of a catalog cache invalidation.
type Invalidation struct {
	ProductIDs []string `json:"productIds"`
}

// Invalidator implements domain.CacheInvalidator over core NATS.
type Invalidator struct {
	pub Publisher
}

var _ domain.CacheInvalidator = (*Invalidator)(nil)

func NewInvalidator(pub Publisher) *Invalidator {
	return &Invalidator{pub: pub}
}

// Invalidate implements domain.CacheInvalidator.
func (i *Invalidator) Invalidate(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	data, err := json.Marshal(Invalidation{ProductIDs: productIDs})
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}
	if err := i.pub.Publish(InvalidateSubject, data); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}
