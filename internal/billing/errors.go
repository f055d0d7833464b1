package billing

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentIntentNotFound      = errors.New("billing: payment intent not found")
	ErrPaymentIntentNotCancelable = errors.New("billing: payment intent cannot be canceled")
	ErrInvalidWebhookSignature    = errors.New("billing: invalid webhook signature")
	ErrInvalidWebhookPayload      = errors.New("billing: invalid webhook payload")
	ErrIdempotencyConflict        = errors.New("billing: idempotency key reused with different parameters")
	ErrAmountTooSmall             = errors.New("billing: amount below the minimum charge")
)

// StripeError carries the parts of a Stripe API error worth logging.
type StripeError struct {
	Message       string
	Code          string // e.g. card_declined, rate_limit
	DeclineCode   string
	HTTPStatus    int
	RequestID     string
	OriginalError error
}

func (e *StripeError) Error() string {
	if e.Code == "" {
		return "stripe: " + e.Message
	}
	return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTemporary reports rate limiting and gateway-side failures.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.HTTPStatus == 429 || e.HTTPStatus >= 500
}
