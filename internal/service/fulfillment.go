package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/storefront/internal/address"
	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// stockRetries is how many times a lost conditional decrement is
	// re-attempted against freshly read stock.
	stockRetries = 1

	orderNumberAttempts = 5
	orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// errNoChange aborts an order update that would not change anything.
var errNoChange = errors.New("order unchanged")

// stockConflict records which product lost the decrement race.
type stockConflict struct {
	productID string
	qty       int
}

func (e *stockConflict) Error() string {
	return fmt.Sprintf("stock conflict on %s (qty %d)", e.productID, e.qty)
}

func (e *stockConflict) Unwrap() error { return domain.ErrStockConflict }

// FulfillmentDeps are the collaborators of FulfillmentService.
// Notifier, Cache, Payments and Metrics may be nil.
type FulfillmentDeps struct {
	Store    domain.Store
	Carts    domain.CartService
	Pricer   *Pricer
	Address  address.Validator
	Notifier domain.NotificationDispatcher
	Cache    domain.CacheInvalidator
	Payments billing.Provider
	Metrics  *telemetry.BusinessMetrics
	Logger   zerolog.Logger
}

// FulfillmentService is the sole writer that turns carts into orders and the
// sole writer that reverses that conversion. It also carries the admin
// status and stock-correction paths.
type FulfillmentService struct {
	store    domain.Store
	carts    domain.CartService
	pricer   *Pricer
	address  address.Validator
	payments billing.Provider
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
	effects  sideEffects

	now         func() time.Time
	orderNumber func(time.Time) string
}

var (
	_ domain.OrderService = (*FulfillmentService)(nil)
	_ domain.AdminService = (*FulfillmentService)(nil)
)

// NewFulfillmentService creates a FulfillmentService.
func NewFulfillmentService(deps FulfillmentDeps) *FulfillmentService {
	logger := deps.Logger.With().Str("component", "fulfillment").Logger()
	return &FulfillmentService{
		store:    deps.Store,
		carts:    deps.Carts,
		pricer:   deps.Pricer,
		address:  deps.Address,
		payments: deps.Payments,
		metrics:  deps.Metrics,
		logger:   logger,
		effects: sideEffects{
			notifier: deps.Notifier,
			cache:    deps.Cache,
			metrics:  deps.Metrics,
			logger:   logger,
		},
		now:         time.Now,
		orderNumber: generateOrderNumber,
	}
}

// CreateOrder converts the shopper's cart into a pending order. Every line is
// re-checked against the ledger before any stock moves; the decrements and
// the insert commit together or not at all.
func (s *FulfillmentService) CreateOrder(ctx context.Context, params domain.CreateOrderParams) (order *domain.Order, err error) {
	const op = "order.create"
	ctx, span := startSpan(ctx, op, attribute.String("shopper.id", params.ShopperID))
	defer func() {
		if err != nil {
			s.metrics.OrderRejectedWith(domain.ErrorCode(err))
		}
		endSpan(span, err)
	}()

	logger := s.logger.With().Str("op", op).Str("shopper_id", params.ShopperID).Logger()

	if params.ShopperID == "" {
		return nil, domain.Unauthorized(op, "shopper identity required")
	}

	// Stored lines, not the revalidated view: a line that no longer fits is
	// rejected here rather than silently clamped or dropped.
	lines, err := s.carts.Lines(ctx, params.ShopperID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart.WithOp(op)
	}

	addr, err := s.address.Validate(ctx, params.ShippingAddress)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		order, err = s.placeOrder(ctx, op, params, addr, lines)

		var conflict *stockConflict
		if !errors.As(err, &conflict) {
			break
		}
		s.metrics.StockConflict()
		logger.Warn().Str("product_id", conflict.productID).Int("attempt", attempt+1).Msg("stock decrement lost a race")

		if attempt >= stockRetries {
			err = s.conflictToInsufficient(ctx, op, conflict)
			break
		}
	}
	if err != nil {
		logFailure(logger, err, "order rejected")
		return nil, err
	}

	logger = logger.With().Str("order_id", order.ID).Str("order_number", order.OrderNumber).Logger()
	logger.Info().Str("total", order.Total.StringFixed(2)).Msg("order created")
	s.metrics.OrderCreated(order.Total)
	span.SetAttributes(attribute.String("order.id", order.ID))

	if _, err := s.carts.Clear(ctx, params.ShopperID); err != nil {
		logger.Warn().Err(err).Msg("failed to clear cart after order")
	}

	s.effects.invalidate(ctx, order.ProductIDs())
	s.effects.notify(ctx, order.ShopperID, domain.NotifyOrderConfirmed, map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"total":       order.Total.StringFixed(2),
	})

	return order, nil
}

// placeOrder validates every line against current ledger state and then
// decrements and inserts in one transaction.
func (s *FulfillmentService) placeOrder(ctx context.Context, op string, params domain.CreateOrderParams, addr domain.Address, lines []domain.CartItem) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		ids := make([]string, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}

		products, err := tx.Ledger().FindMany(ctx, ids)
		if err != nil {
			return domain.Internal(err, op, "failed to load products")
		}

		o := &domain.Order{
			ID:              uuid.New().String(),
			ShopperID:       params.ShopperID,
			ShippingAddress: addr,
			PaymentIntentID: params.PaymentIntentID,
			Status:          domain.OrderStatusPending,
			PaymentStatus:   domain.PaymentStatusPending,
			Items:           make([]domain.OrderItem, 0, len(lines)),
		}

		subtotal := decimal.Zero
		for _, l := range lines {
			p := products[l.ProductID]
			if err := checkPurchasable(op, p, l.ProductID, l.Quantity); err != nil {
				return err
			}
			item := domain.OrderItem{
				ProductID: p.ID,
				Name:      l.Name,
				UnitPrice: p.Price,
				Quantity:  l.Quantity,
			}
			o.Items = append(o.Items, item)
			subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		totals, err := s.pricer.Totals(ctx, subtotal)
		if err != nil {
			return domain.Internal(err, op, "failed to price order")
		}
		o.Totals = totals

		// Sorted ids keep lock order stable across concurrent orders.
		qty := o.Quantities()
		for _, id := range o.ProductIDs() {
			if err := tx.Ledger().Decrement(ctx, id, qty[id]); err != nil {
				if errors.Is(err, domain.ErrStockConflict) {
					return &stockConflict{productID: id, qty: qty[id]}
				}
				return domain.Internal(err, op, "failed to reserve stock")
			}
		}

		now := s.now().UTC()
		o.CreatedAt = now
		o.Record(now, "Order created", "")

		if err := s.insertOrder(ctx, op, tx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *FulfillmentService) insertOrder(ctx context.Context, op string, tx domain.Store, o *domain.Order) error {
	for i := 0; i < orderNumberAttempts; i++ {
		o.OrderNumber = s.orderNumber(o.CreatedAt)
		err := tx.Orders().Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return domain.Internal(err, op, "failed to save order")
		}
		s.logger.Debug().Str("order_number", o.OrderNumber).Msg("order number collision, regenerating")
	}
	return domain.ErrOrderNumberExhausted.WithOp(op)
}

func (s *FulfillmentService) conflictToInsufficient(ctx context.Context, op string, c *stockConflict) error {
	p, err := s.store.Ledger().FindByID(ctx, c.productID)
	if err != nil {
		if isNotFound(err) {
			return productNotFound(op, c.productID)
		}
		return domain.Internal(err, op, "failed to load product")
	}
	return insufficientStock(op, p, c.qty)
}

// CancelOrder cancels a pending order owned by the shopper and re-credits
// its reserved stock exactly once.
func (s *FulfillmentService) CancelOrder(ctx context.Context, orderID, shopperID, reason string) (order *domain.Order, err error) {
	const op = "order.cancel"
	ctx, span := startSpan(ctx, op,
		attribute.String("order.id", orderID),
		attribute.String("shopper.id", shopperID))
	defer func() { endSpan(span, err) }()

	logger := s.logger.With().Str("op", op).Str("order_id", orderID).Str("shopper_id", shopperID).Logger()

	if _, err := s.store.Orders().GetForShopper(ctx, orderID, shopperID); err != nil {
		if isNotFound(err) {
			return nil, orderNotFound(op, orderID)
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}

	note := "Cancelled by shopper"
	if reason != "" {
		note += ": " + reason
	}

	order, err = s.cancel(ctx, op, orderID, func(o *domain.Order) error {
		if o.Status != domain.OrderStatusPending {
			return domain.ErrOrderNotPending.WithOp(op).
				WithDetail("order_id", o.ID).
				WithDetail("status", string(o.Status))
		}
		o.Status = domain.OrderStatusCancelled
		o.Record(s.now().UTC(), note, "")
		return nil
	})
	if err != nil {
		logFailure(logger, err, "cancel rejected")
		return nil, err
	}

	logger.Info().Str("order_number", order.OrderNumber).Msg("order cancelled")
	s.metrics.OrderCancelled("shopper")
	s.cancelPaymentIntent(ctx, logger, order)
	s.afterCancel(ctx, order, reason)
	return order, nil
}

// CancelForPayment cancels an order because the gateway cancelled its
// payment. It shares the stock re-credit with CancelOrder. Applied reports
// false when the order was already cancelled or the event was seen before.
func (s *FulfillmentService) CancelForPayment(ctx context.Context, orderID, eventID, reason string) (order *domain.Order, applied bool, err error) {
	const op = "order.cancel_for_payment"
	ctx, span := startSpan(ctx, op,
		attribute.String("order.id", orderID),
		attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	note := "Payment cancelled"
	if reason != "" {
		note += ": " + reason
	}

	order, err = s.cancel(ctx, op, orderID, func(o *domain.Order) error {
		if o.HasEvent(eventID) || o.Status == domain.OrderStatusCancelled {
			return errNoChange
		}
		if o.Status != domain.OrderStatusPending {
			return domain.ErrOrderNotPending.WithOp(op).
				WithDetail("order_id", o.ID).
				WithDetail("status", string(o.Status))
		}
		o.Status = domain.OrderStatusCancelled
		o.PaymentStatus = domain.PaymentStatusFailed
		o.Record(s.now().UTC(), note, eventID)
		return nil
	})
	if errors.Is(err, errNoChange) {
		current, getErr := s.store.Orders().GetByID(ctx, orderID)
		if getErr != nil {
			return nil, false, domain.Internal(getErr, op, "failed to load order")
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info().Str("op", op).Str("order_id", orderID).Str("event_id", eventID).Msg("order cancelled by payment gateway")
	s.metrics.OrderCancelled("payment")
	s.afterCancel(ctx, order, reason)
	return order, true, nil
}

// cancel applies fn under the order's row lock and re-credits every line in
// the same transaction. fn decides whether the cancellation may proceed.
func (s *FulfillmentService) cancel(ctx context.Context, op, orderID string, fn func(*domain.Order) error) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		o, err := tx.Orders().Update(ctx, orderID, fn)
		if err != nil {
			if isNotFound(err) {
				return orderNotFound(op, orderID)
			}
			return err
		}

		qty := o.Quantities()
		for _, id := range o.ProductIDs() {
			if err := tx.Ledger().Increment(ctx, id, qty[id]); err != nil {
				return domain.Internal(err, op, "failed to restore stock for "+id)
			}
		}
		order = o
		return nil
	})
	if err != nil {
		var de *domain.Error
		var ve *domain.ValidationError
		if errors.Is(err, errNoChange) || errors.As(err, &de) || errors.As(err, &ve) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to cancel order")
	}
	return order, nil
}

func (s *FulfillmentService) afterCancel(ctx context.Context, order *domain.Order, reason string) {
	s.effects.invalidate(ctx, order.ProductIDs())
	s.effects.notify(ctx, order.ShopperID, domain.NotifyOrderCancelled, map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"reason":      reason,
	})
}

// cancelPaymentIntent stops the gateway from charging a cancelled order.
// The resulting payment_intent.canceled webhook is a no-op.
func (s *FulfillmentService) cancelPaymentIntent(ctx context.Context, logger zerolog.Logger, order *domain.Order) {
	if s.payments == nil || order.PaymentIntentID == "" {
		return
	}
	err := s.payments.CancelPaymentIntent(ctx, order.PaymentIntentID)
	switch {
	case err == nil:
		logger.Debug().Str("payment_intent_id", order.PaymentIntentID).Msg("payment intent cancelled")
	case errors.Is(err, billing.ErrPaymentIntentNotCancelable), errors.Is(err, billing.ErrPaymentIntentNotFound):
		logger.Debug().Err(err).Str("payment_intent_id", order.PaymentIntentID).Msg("payment intent left as is")
	default:
		logger.Warn().Err(err).Str("payment_intent_id", order.PaymentIntentID).Msg("failed to cancel payment intent")
	}
}

// GetOrder returns an order owned by the shopper.
func (s *FulfillmentService) GetOrder(ctx context.Context, orderID, shopperID string) (*domain.Order, error) {
	const op = "order.get"

	o, err := s.store.Orders().GetForShopper(ctx, orderID, shopperID)
	if err != nil {
		if isNotFound(err) {
			return nil, orderNotFound(op, orderID)
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	return o, nil
}

// ListOrders returns the shopper's orders, newest first.
func (s *FulfillmentService) ListOrders(ctx context.Context, shopperID string) ([]domain.Order, error) {
	const op = "order.list"

	orders, err := s.store.Orders().ListForShopper(ctx, shopperID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// AdvanceStatus moves a paid order forward through processing, shipped and
// delivered. Payment-driven and cancellation transitions are not allowed here.
func (s *FulfillmentService) AdvanceStatus(ctx context.Context, orderID string, to domain.OrderStatus, note string) (order *domain.Order, err error) {
	const op = "order.advance_status"
	ctx, span := startSpan(ctx, op,
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(to)))
	defer func() { endSpan(span, err) }()

	if !to.Valid() {
		return nil, domain.NewValidationError(op, "status", "unknown order status")
	}

	order, err = s.store.Orders().Update(ctx, orderID, func(o *domain.Order) error {
		if o.Status == domain.OrderStatusPending || to == domain.OrderStatusCancelled || !o.Status.CanTransitionTo(to) {
			return domain.ErrInvalidTransition.WithOp(op).
				WithDetail("from", string(o.Status)).
				WithDetail("to", string(to))
		}
		o.Status = to
		if note == "" {
			note = "Status changed to " + string(to)
		}
		o.Record(s.now().UTC(), note, "")
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, orderNotFound(op, orderID)
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to update order")
	}

	s.logger.Info().Str("op", op).Str("order_id", orderID).Str("status", string(to)).Msg("order status advanced")
	s.effects.notify(ctx, order.ShopperID, domain.NotifyOrderStatus, map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"status":      string(to),
	})
	return order, nil
}

// AdjustStock applies an admin stock correction through the ledger
// primitives. Negative deltas are conditional and never drive stock below zero.
func (s *FulfillmentService) AdjustStock(ctx context.Context, productID string, delta int, note string) (product *domain.Product, err error) {
	const op = "product.adjust_stock"
	ctx, span := startSpan(ctx, op,
		attribute.String("product.id", productID),
		attribute.Int("delta", delta))
	defer func() { endSpan(span, err) }()

	if delta == 0 {
		return nil, domain.ErrInvalidStockDelta.WithOp(op)
	}

	ledger := s.store.Ledger()
	if delta > 0 {
		err = ledger.Increment(ctx, productID, delta)
	} else {
		err = ledger.Decrement(ctx, productID, -delta)
	}

	switch {
	case err == nil:
	case isNotFound(err):
		return nil, productNotFound(op, productID)
	case errors.Is(err, domain.ErrStockConflict):
		p, findErr := ledger.FindByID(ctx, productID)
		if findErr != nil {
			if isNotFound(findErr) {
				return nil, productNotFound(op, productID)
			}
			return nil, domain.Internal(findErr, op, "failed to load product")
		}
		return nil, insufficientStock(op, p, -delta)
	default:
		return nil, domain.Internal(err, op, "failed to adjust stock")
	}

	product, err = ledger.FindByID(ctx, productID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load product")
	}

	s.logger.Info().
		Str("op", op).
		Str("product_id", productID).
		Int("delta", delta).
		Int("stock", product.Stock).
		Str("note", note).
		Msg("stock adjusted")
	s.effects.invalidate(ctx, []string{productID})
	return product, nil
}

// generateOrderNumber returns ORD-YYYYMMDD-XXXXXX with a random suffix.
// Uniqueness is enforced by the store; callers retry on collision.
func generateOrderNumber(at time.Time) string {
	b := make([]byte, 6)
	rand.Read(b) // never returns an error as of Go 1.24
	for i := range b {
		b[i] = orderNumberAlphabet[int(b[i])%len(orderNumberAlphabet)]
	}
	return "ORD-" + at.Format("20060102") + "-" + string(b)
}
