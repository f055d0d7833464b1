package service

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Reasons reported for acknowledged events that changed nothing.
const (
	ReasonUnhandledKind      = "unhandled event kind"
	ReasonMissingIntent      = "missing payment intent"
	ReasonOrderNotFound      = "order not found"
	ReasonDuplicateEvent     = "duplicate event"
	ReasonAlreadyCompleted   = "payment already completed"
	ReasonOrderCancelled     = "order cancelled"
	ReasonOrderNotCancelable = "order not cancellable"
)

// PaymentCanceller reverses an order whose payment the gateway cancelled.
// FulfillmentService implements it.
type PaymentCanceller interface {
	CancelForPayment(ctx context.Context, orderID, eventID, reason string) (*domain.Order, bool, error)
}

// PaymentReconciler maps at-least-once gateway events onto order state.
// Every event that changes an order records its event id in the status
// history; an id already present is a no-op.
type PaymentReconciler struct {
	orders   domain.OrderRepository
	canceler PaymentCanceller
	effects  sideEffects
	logger   zerolog.Logger
	now      func() time.Time
}

var _ domain.PaymentReconciler = (*PaymentReconciler)(nil)

// NewPaymentReconciler creates a PaymentReconciler. notifier and metrics may be nil.
func NewPaymentReconciler(orders domain.OrderRepository, canceler PaymentCanceller, notifier domain.NotificationDispatcher, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *PaymentReconciler {
	logger = logger.With().Str("component", "payments").Logger()
	return &PaymentReconciler{
		orders:   orders,
		canceler: canceler,
		effects:  sideEffects{notifier: notifier, metrics: metrics, logger: logger},
		logger:   logger,
		now:      time.Now,
	}
}

// HandleEvent applies one gateway event. Unknown kinds, unmatched orders and
// replays are acknowledged with Processed false and a nil error.
func (r *PaymentReconciler) HandleEvent(ctx context.Context, event domain.PaymentEvent) (res domain.ReconcileResult, err error) {
	const op = "payment.handle_event"
	ctx, span := startSpan(ctx, op,
		attribute.String("event.id", event.ID),
		attribute.String("event.kind", string(event.Kind)),
		attribute.String("payment_intent.id", event.PaymentIntentID))
	defer func() {
		span.SetAttributes(attribute.Bool("event.processed", res.Processed))
		endSpan(span, err)
	}()

	logger := r.logger.With().
		Str("op", op).
		Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Str("payment_intent_id", event.PaymentIntentID).
		Logger()

	switch event.Kind {
	case domain.PaymentSucceeded, domain.PaymentFailed, domain.PaymentCanceled, domain.RefundIssued:
	default:
		logger.Debug().Msg("ignoring event kind")
		return skipped(ReasonUnhandledKind, ""), nil
	}

	if event.PaymentIntentID == "" {
		logger.Warn().Msg("event has no payment intent")
		return skipped(ReasonMissingIntent, ""), nil
	}

	order, err := r.orders.GetByPaymentIntent(ctx, event.PaymentIntentID)
	if err != nil {
		if isNotFound(err) {
			logger.Info().Msg("no order for payment intent")
			return skipped(ReasonOrderNotFound, ""), nil
		}
		return domain.ReconcileResult{}, domain.Internal(err, op, "failed to look up order")
	}
	logger = logger.With().Str("order_id", order.ID).Logger()

	if order.HasEvent(event.ID) {
		logger.Debug().Msg("event already applied")
		return skipped(ReasonDuplicateEvent, order.ID), nil
	}

	switch event.Kind {
	case domain.PaymentSucceeded:
		res, err = r.apply(ctx, op, order.ID, event, r.markPaid(event))
	case domain.PaymentFailed:
		res, err = r.apply(ctx, op, order.ID, event, r.markFailed(event))
	case domain.RefundIssued:
		res, err = r.apply(ctx, op, order.ID, event, r.markRefunded(event))
	case domain.PaymentCanceled:
		res, err = r.cancel(ctx, order.ID, event)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to reconcile event")
		return domain.ReconcileResult{}, err
	}

	if res.Processed {
		logger.Info().Msg("payment event applied")
	} else {
		logger.Debug().Str("reason", res.Reason).Msg("payment event skipped")
	}
	return res, nil
}

// skipReason aborts an update with an acknowledged, no-op outcome.
type skipReason string

func (s skipReason) Error() string { return string(s) }

func (r *PaymentReconciler) apply(ctx context.Context, op, orderID string, event domain.PaymentEvent, fn func(*domain.Order) error) (domain.ReconcileResult, error) {
	order, err := r.orders.Update(ctx, orderID, func(o *domain.Order) error {
		if o.HasEvent(event.ID) {
			return skipReason(ReasonDuplicateEvent)
		}
		return fn(o)
	})

	var skip skipReason
	switch {
	case errors.As(err, &skip):
		return skipped(string(skip), orderID), nil
	case isNotFound(err):
		return skipped(ReasonOrderNotFound, orderID), nil
	case err != nil:
		return domain.ReconcileResult{}, domain.Internal(err, op, "failed to update order")
	}

	r.notifyFor(ctx, order, event)
	return domain.ReconcileResult{Processed: true, OrderID: order.ID}, nil
}

func (r *PaymentReconciler) markPaid(event domain.PaymentEvent) func(*domain.Order) error {
	return func(o *domain.Order) error {
		if o.PaymentStatus == domain.PaymentStatusCompleted || o.PaymentStatus == domain.PaymentStatusRefunded {
			return skipReason(ReasonAlreadyCompleted)
		}
		if o.Status == domain.OrderStatusCancelled {
			return skipReason(ReasonOrderCancelled)
		}
		o.PaymentStatus = domain.PaymentStatusCompleted
		if o.Status == domain.OrderStatusPending {
			o.Status = domain.OrderStatusPaid
		}
		o.Record(r.now().UTC(), "Payment received", event.ID)
		return nil
	}
}

// markFailed leaves the order pending so the shopper can retry or cancel.
// Cancelled orders are terminal and are left alone.
func (r *PaymentReconciler) markFailed(event domain.PaymentEvent) func(*domain.Order) error {
	return func(o *domain.Order) error {
		if o.PaymentStatus == domain.PaymentStatusCompleted || o.PaymentStatus == domain.PaymentStatusRefunded {
			return skipReason(ReasonAlreadyCompleted)
		}
		if o.Status == domain.OrderStatusCancelled {
			return skipReason(ReasonOrderCancelled)
		}
		o.PaymentStatus = domain.PaymentStatusFailed
		note := "Payment failed"
		if event.FailureReason != "" {
			note += ": " + event.FailureReason
		}
		o.Record(r.now().UTC(), note, event.ID)
		return nil
	}
}

// markRefunded does not alter the order status.
func (r *PaymentReconciler) markRefunded(event domain.PaymentEvent) func(*domain.Order) error {
	return func(o *domain.Order) error {
		o.PaymentStatus = domain.PaymentStatusRefunded
		note := "Refund issued"
		if event.AmountRefunded.IsPositive() {
			note += ": " + event.AmountRefunded.StringFixed(2)
			if event.Currency != "" {
				note += " " + event.Currency
			}
		}
		o.Record(r.now().UTC(), note, event.ID)
		return nil
	}
}

// cancel delegates to the fulfillment cancellation path so stock is restored
// in exactly one place.
func (r *PaymentReconciler) cancel(ctx context.Context, orderID string, event domain.PaymentEvent) (domain.ReconcileResult, error) {
	_, applied, err := r.canceler.CancelForPayment(ctx, orderID, event.ID, event.FailureReason)
	if err != nil {
		if domain.IsCode(err, domain.EINVALIDOP) {
			return skipped(ReasonOrderNotCancelable, orderID), nil
		}
		if domain.IsCode(err, domain.ENOTFOUND) {
			return skipped(ReasonOrderNotFound, orderID), nil
		}
		return domain.ReconcileResult{}, err
	}
	if !applied {
		return skipped(ReasonOrderCancelled, orderID), nil
	}
	return domain.ReconcileResult{Processed: true, OrderID: orderID}, nil
}

func (r *PaymentReconciler) notifyFor(ctx context.Context, o *domain.Order, event domain.PaymentEvent) {
	payload := map[string]any{
		"orderId":     o.ID,
		"orderNumber": o.OrderNumber,
	}
	switch event.Kind {
	case domain.PaymentSucceeded:
		payload["total"] = o.Total.StringFixed(2)
		r.effects.notify(ctx, o.ShopperID, domain.NotifyOrderPaid, payload)
	case domain.PaymentFailed:
		payload["reason"] = event.FailureReason
		r.effects.notify(ctx, o.ShopperID, domain.NotifyPaymentFailed, payload)
	case domain.RefundIssued:
		payload["amount"] = event.AmountRefunded.StringFixed(2)
		r.effects.notify(ctx, o.ShopperID, domain.NotifyRefundIssued, payload)
	}
}

func skipped(reason, orderID string) domain.ReconcileResult {
	return domain.ReconcileResult{Processed: false, Reason: reason, OrderID: orderID}
}
