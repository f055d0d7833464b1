// Package webhook receives signed payment gateway events.
package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// StripeHandler verifies Stripe webhook deliveries and hands them to the
// payment reconciler.
type StripeHandler struct {
	provider   billing.Provider
	reconciler domain.PaymentReconciler
	metrics    *telemetry.BusinessMetrics
}

// NewStripeHandler creates a new Stripe webhook handler. metrics may be nil.
func NewStripeHandler(provider billing.Provider, reconciler domain.PaymentReconciler, metrics *telemetry.BusinessMetrics) *StripeHandler {
	return &StripeHandler{
		provider:   provider,
		reconciler: reconciler,
		metrics:    metrics,
	}
}

type ackResponse struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	Reason    string `json:"reason,omitempty"`
}

// HandleWebhook handles POST /webhooks/stripe.
//
// Once the signature checks out the delivery is acknowledged with 200, unless
// reconciliation hit an internal error. That returns 500 so Stripe redelivers.
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(c echo.Context) error {
	const op = "webhook.stripe"
	start := time.Now()
	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx).With().Str("op", op).Logger()

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		h.metrics.WebhookFailure("unreadable_body")
		return domain.Invalid(op, "Error reading request body")
	}

	signature := c.Request().Header.Get(SignatureHeader)
	if signature == "" {
		h.metrics.WebhookFailure("missing_signature")
		return domain.Unauthorized(op, "Missing signature")
	}

	event, err := h.provider.ParseWebhookEvent(payload, signature)
	switch {
	case errors.Is(err, billing.ErrInvalidWebhookSignature):
		logger.Warn().Err(err).Int("payload_bytes", len(payload)).Msg("webhook signature verification failed")
		h.metrics.WebhookFailure("invalid_signature")
		return domain.Unauthorized(op, "Invalid signature")
	case err != nil:
		logger.Warn().Err(err).Msg("webhook payload could not be decoded")
		h.metrics.WebhookFailure("invalid_payload")
		return domain.Invalid(op, "Invalid webhook payload")
	}

	logger = logger.With().
		Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Str("payment_intent_id", event.PaymentIntentID).
		Logger()

	result, err := h.reconciler.HandleEvent(logger.WithContext(ctx), *event)
	if err != nil {
		h.metrics.WebhookFailure("reconcile_failed")
		// Internal failures are surfaced so the gateway redelivers; replays
		// are idempotent by event id. Anything else will not improve on retry.
		if domain.IsCode(err, domain.EINTERNAL) {
			logger.Error().Err(err).Msg("webhook reconciliation failed, awaiting redelivery")
			return err
		}
		logger.Warn().Err(err).Msg("webhook event rejected by reconciliation")
		result = domain.ReconcileResult{Reason: domain.ErrorMessage(err)}
	}
	h.metrics.Webhook(string(event.Kind), result.Processed)

	logger.Info().
		Bool("processed", result.Processed).
		Str("reason", result.Reason).
		Str("order_id", result.OrderID).
		Dur("latency", time.Since(start)).
		Msg("webhook handled")

	return c.JSON(http.StatusOK, ackResponse{
		Received:  true,
		Processed: result.Processed,
		Reason:    result.Reason,
	})
}
