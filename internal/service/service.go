// Package service implements the storefront's use cases: the cart store,
// order fulfillment, payment reconciliation and checkout.
package service

import (
	"context"
	"errors"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/shipping"
	"github.com/dukerupert/storefront/internal/tax"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dukerupert/storefront/internal/service")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks the span failed for internal errors only. Expected outcomes
// such as insufficient_stock are recorded as an attribute.
func endSpan(span trace.Span, err error) {
	if err != nil {
		code := domain.ErrorCode(err)
		span.SetAttributes(attribute.String("error.code", code))
		if code == domain.EINTERNAL {
			span.RecordError(err)
			span.SetStatus(codes.Error, code)
		}
	}
	span.End()
}

// Pricer turns a purchasable subtotal into cart or order totals.
type Pricer struct {
	tax      tax.Calculator
	shipping shipping.Calculator
}

// NewPricer combines a tax and a shipping calculator.
func NewPricer(taxCalc tax.Calculator, shippingCalc shipping.Calculator) *Pricer {
	return &Pricer{tax: taxCalc, shipping: shippingCalc}
}

// Totals rounds the subtotal, quotes shipping, then taxes the subtotal.
func (p *Pricer) Totals(ctx context.Context, subtotal decimal.Decimal) (domain.Totals, error) {
	subtotal = domain.RoundMoney(subtotal)

	ship, err := p.shipping.Quote(ctx, subtotal)
	if err != nil {
		return domain.Totals{}, err
	}

	taxResult, err := p.tax.CalculateTax(ctx, tax.TaxParams{Subtotal: subtotal, Shipping: ship})
	if err != nil {
		return domain.Totals{}, err
	}

	return domain.ComputeTotals(subtotal, taxResult.Total, ship), nil
}

// sideEffects dispatches best-effort notifications and cache invalidations.
// Failures are logged and counted, never returned.
type sideEffects struct {
	notifier domain.NotificationDispatcher
	cache    domain.CacheInvalidator
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
}

func (s sideEffects) notify(ctx context.Context, shopperID string, kind domain.NotificationKind, payload map[string]any) {
	if s.notifier == nil || shopperID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, shopperID, kind, payload); err != nil {
		s.metrics.NotificationFailed(string(kind))
		s.logger.Warn().Err(err).
			Str("shopper_id", shopperID).
			Str("kind", string(kind)).
			Msg("notification failed")
	}
}

func (s sideEffects) invalidate(ctx context.Context, productIDs []string) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, productIDs); err != nil {
		s.metrics.NotificationFailed("cache_invalidate")
		s.logger.Warn().Err(err).
			Strs("product_ids", productIDs).
			Msg("cache invalidation failed")
	}
}

// logFailure logs internal errors at ERROR and expected outcomes at DEBUG.
func logFailure(logger zerolog.Logger, err error, msg string) {
	if domain.ErrorCode(err) == domain.EINTERNAL {
		logger.Error().Err(err).Msg(msg)
		return
	}
	logger.Debug().Str("code", domain.ErrorCode(err)).Str("reason", domain.ErrorMessage(err)).Msg(msg)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFoundInStore)
}
