package billing

import (
	"encoding/json"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/stripe/stripe-go/v82"
)

// mapEvent translates a verified Stripe event into a domain.PaymentEvent.
// Event types we do not act on keep their Stripe type string as the kind.
func mapEvent(event stripe.Event) (*domain.PaymentEvent, error) {
	out := &domain.PaymentEvent{
		ID:   event.ID,
		Kind: domain.PaymentEventKind(event.Type),
	}
	if event.Data == nil {
		return out, nil
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", ErrInvalidWebhookPayload, err)
		}
		out.PaymentIntentID = pi.ID
		out.Currency = string(pi.Currency)

		switch event.Type {
		case stripe.EventTypePaymentIntentSucceeded:
			out.Kind = domain.PaymentSucceeded
		case stripe.EventTypePaymentIntentPaymentFailed:
			out.Kind = domain.PaymentFailed
			if pi.LastPaymentError != nil {
				out.FailureReason = pi.LastPaymentError.Msg
			}
		case stripe.EventTypePaymentIntentCanceled:
			out.Kind = domain.PaymentCanceled
			out.FailureReason = string(pi.CancellationReason)
		}

	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: charge: %v", ErrInvalidWebhookPayload, err)
		}
		out.Kind = domain.RefundIssued
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.AmountRefunded = domain.FromCents(ch.AmountRefunded)
		out.Currency = string(ch.Currency)
	}

	return out, nil
}
