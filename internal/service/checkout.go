package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// CheckoutService starts gateway payment for a shopper's revalidated cart.
type CheckoutService struct {
	carts    domain.CartService
	provider billing.Provider
	currency string
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
}

var _ domain.CheckoutService = (*CheckoutService)(nil)

// NewCheckoutService creates a CheckoutService charging in currency.
func NewCheckoutService(carts domain.CartService, provider billing.Provider, currency string, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *CheckoutService {
	if currency == "" {
		currency = "usd"
	}
	return &CheckoutService{
		carts:    carts,
		provider: provider,
		currency: currency,
		metrics:  metrics,
		logger:   logger.With().Str("component", "checkout").Logger(),
	}
}

// CreatePaymentIntent creates an intent for the cart total. The idempotency
// key is derived from the cart contents, so repeated calls for an unchanged
// cart return the same intent and any change produces a new one.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, shopperID string) (intent *domain.PaymentIntent, err error) {
	const op = "checkout.create_payment_intent"
	ctx, span := startSpan(ctx, op, attribute.String("shopper.id", shopperID))
	defer func() { endSpan(span, err) }()

	if shopperID == "" {
		return nil, domain.Unauthorized(op, "shopper identity required")
	}

	cart, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	if len(cart.Purchasable()) == 0 {
		return nil, domain.ErrEmptyCart.WithOp(op)
	}

	amount := domain.ToCents(cart.Total)
	pi, err := s.provider.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents: amount,
		Currency:    s.currency,
		Description: "Storefront order",
		Metadata: map[string]string{
			"shopper_id": shopperID,
			"item_count": strconv.Itoa(len(cart.Purchasable())),
		},
		IdempotencyKey: checkoutKey(shopperID, cart),
	})
	s.metrics.PaymentIntent(err)
	if err != nil {
		if errors.Is(err, billing.ErrAmountTooSmall) {
			return nil, domain.Invalid(op, "order total is below the minimum charge")
		}
		s.logger.Error().Err(err).Str("shopper_id", shopperID).Int64("amount_cents", amount).Msg("payment intent failed")
		return nil, domain.Internal(err, op, "failed to start payment")
	}

	s.logger.Info().
		Str("op", op).
		Str("shopper_id", shopperID).
		Str("payment_intent_id", pi.ID).
		Int64("amount_cents", pi.AmountCents).
		Msg("payment intent created")

	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       domain.FromCents(pi.AmountCents),
		Currency:     pi.Currency,
	}, nil
}

func checkoutKey(shopperID string, cart *domain.Cart) string {
	h := sha256.New()
	for _, it := range cart.Purchasable() {
		fmt.Fprintf(h, "%s:%d:%s;", it.ProductID, it.Quantity, it.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(h, "total:%s", cart.Total.StringFixed(2))
	return "checkout_" + shopperID + "_" + hex.EncodeToString(h.Sum(nil))[:16]
}
