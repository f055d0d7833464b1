package domain

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks the payment independently of fulfillment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// orderTransitions lists the allowed forward moves. Cancelled is terminal and
// only reachable from pending.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Address is a frozen shipping address snapshot.
type Address struct {
	Name       string `json:"name,omitempty" validate:"max=200"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// OrderItem is a frozen line snapshot. It never changes after creation.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// StatusEntry is one element of the append-only status history.
// EventID is set when the entry was produced by a payment gateway event.
type StatusEntry struct {
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Note          string        `json:"note,omitempty"`
	EventID       string        `json:"eventId,omitempty"`
	At            time.Time     `json:"timestamp"`
}

// Order is the durable record of a purchase. Only Status, PaymentStatus and
// History change after creation.
type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"orderNumber"`
	ShopperID       string        `json:"shopperId"`
	Items           []OrderItem   `json:"items"`
	ShippingAddress Address       `json:"shippingAddress"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	History         []StatusEntry `json:"statusHistory"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	Totals
}

// Record appends a history entry reflecting the order's current statuses.
func (o *Order) Record(at time.Time, note, eventID string) {
	o.History = append(o.History, StatusEntry{
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Note:          note,
		EventID:       eventID,
		At:            at,
	})
	o.UpdatedAt = at
}

// HasEvent reports whether a gateway event was already applied.
func (o *Order) HasEvent(eventID string) bool {
	if eventID == "" {
		return false
	}
	for _, h := range o.History {
		if h.EventID == eventID {
			return true
		}
	}
	return false
}

// Quantities sums item quantities per product.
func (o *Order) Quantities() map[string]int {
	q := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		q[it.ProductID] += it.Quantity
	}
	return q
}

// ProductIDs returns the distinct product ids in the order, sorted.
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for id := range o.Quantities() {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Order-related domain errors.
var (
	ErrOrderNotFound        = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrOrderNotPending      = &Error{Code: EINVALIDOP, Message: "Only pending orders can be cancelled"}
	ErrInvalidTransition    = &Error{Code: EINVALIDOP, Message: "Order status transition not allowed"}
	ErrOrderNumberExhausted = &Error{Code: EINTERNAL, Message: "Could not allocate a unique order number"}
)

// CreateOrderParams is the input to order creation.
type CreateOrderParams struct {
	ShopperID       string
	ShippingAddress Address
	PaymentIntentID string
}

// OrderService converts carts into orders and reverses that conversion.
type OrderService interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error)
	CancelOrder(ctx context.Context, orderID, shopperID, reason string) (*Order, error)
	GetOrder(ctx context.Context, orderID, shopperID string) (*Order, error)
	ListOrders(ctx context.Context, shopperID string) ([]Order, error)
}

// AdminService is the privileged path for fulfillment progress and stock corrections.
type AdminService interface {
	AdvanceStatus(ctx context.Context, orderID string, to OrderStatus, note string) (*Order, error)
	AdjustStock(ctx context.Context, productID string, delta int, note string) (*Product, error)
}

// OrderRepository persists orders. Update loads the order under a row lock,
// applies fn, and persists the changed statuses plus any appended history.
// If fn returns an error nothing is written and that error is returned.
type OrderRepository interface {
	// Create returns ErrDuplicateOrderNumber if the order number is taken.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetForShopper(ctx context.Context, id, shopperID string) (*Order, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error)
	// ListForShopper returns orders newest first.
	ListForShopper(ctx context.Context, shopperID string) ([]Order, error)
	Update(ctx context.Context, id string, fn func(*Order) error) (*Order, error)
}

// Store groups the durable repositories and their transaction primitive.
// Inside WithinTx every repository obtained from the passed Store shares the
// transaction; the transaction commits only if fn returns nil.
type Store interface {
	Ledger() StockLedger
	Orders() OrderRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
