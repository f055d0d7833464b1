package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentEventKind is the gateway-neutral name of a payment event.
type PaymentEventKind string

const (
	PaymentSucceeded PaymentEventKind = "payment_succeeded"
	PaymentFailed    PaymentEventKind = "payment_failed"
	PaymentCanceled  PaymentEventKind = "payment_canceled"
	RefundIssued     PaymentEventKind = "refund_issued"
)

// PaymentEvent is a verified gateway event mapped onto our vocabulary.
// Unknown kinds keep the gateway's raw type string.
type PaymentEvent struct {
	ID              string
	Kind            PaymentEventKind
	PaymentIntentID string
	FailureReason   string
	AmountRefunded  decimal.Decimal
	Currency        string
}

// ReconcileResult reports what the reconciler did with an event.
// Processed is false for acknowledged no-ops.
type ReconcileResult struct {
	Processed bool   `json:"processed"`
	Reason    string `json:"reason,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

// PaymentReconciler maps at-least-once gateway events onto order state.
// Unknown kinds and unmatched orders are acknowledged, never errors.
type PaymentReconciler interface {
	HandleEvent(ctx context.Context, event PaymentEvent) (ReconcileResult, error)
}

// PaymentIntent is the client-facing result of starting a payment.
type PaymentIntent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"clientSecret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

// CheckoutService starts payment for a shopper's current cart.
type CheckoutService interface {
	CreatePaymentIntent(ctx context.Context, shopperID string) (*PaymentIntent, error)
}
