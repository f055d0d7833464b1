package billing

import (
	"context"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
)

// Provider is the payment gateway contract the storefront relies on.
// Stripe is the production implementation; MockProvider backs tests.
type Provider interface {
	// CreatePaymentIntent starts a one-time charge and returns the client
	// secret the browser uses to confirm it.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// CancelPaymentIntent cancels an intent that has not been confirmed.
	// Intents that already reached a terminal state return ErrPaymentIntentNotCancelable.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// VerifyWebhookSignature checks the Stripe-Signature header against the
	// configured signing secret.
	VerifyWebhookSignature(payload []byte, signature string) error

	// ParseWebhookEvent verifies the payload and maps it onto a
	// gateway-neutral payment event.
	ParseWebhookEvent(payload []byte, signature string) (*domain.PaymentEvent, error)
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in the smallest currency unit.
	AmountCents int64

	// Currency code (ISO 4217), lower case.
	Currency string

	// Description appears in the Stripe dashboard.
	Description string

	// Metadata always carries shopper_id so webhooks can be traced back.
	Metadata map[string]string

	// IdempotencyKey prevents duplicate intents for the same checkout attempt.
	IdempotencyKey string
}

// PaymentIntent is the gateway's view of a one-time charge.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string

	// Status: requires_payment_method, requires_confirmation, succeeded, canceled, ...
	Status    string
	Metadata  map[string]string
	CreatedAt time.Time

	// LastPaymentError is set if the latest attempt failed
	LastPaymentError *PaymentError
}

// PaymentError describes a failed payment attempt.
type PaymentError struct {
	Code        string
	DeclineCode string
	Message     string
}

// MinimumAmountCents is Stripe's minimum charge for USD.
const MinimumAmountCents = 50
