package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_SnapshotsCartAndReservesStock(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "12.50", 10), product("b", "4.00", 5)})
	ctx := context.Background()

	f.add(t, "s1", "a", 3)
	f.add(t, "s1", "b", 1)

	o := f.order(t, "s1", "pi_123")

	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, domain.PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, "pi_123", o.PaymentIntentID)
	assert.Regexp(t, `^ORD-\d{8}-[A-Z2-9]{6}$`, o.OrderNumber)
	require.Len(t, o.Items, 2)
	require.Len(t, o.History, 1)
	assert.Equal(t, "Order created", o.History[0].Note)

	// 37.50 + 4.00, shipping 9.99, tax 8% of 41.50
	assert.Equal(t, "41.50", o.Subtotal.StringFixed(2))
	assert.Equal(t, "3.32", o.Tax.StringFixed(2))
	assert.Equal(t, "9.99", o.Shipping.StringFixed(2))
	assert.Equal(t, "54.81", o.Total.StringFixed(2))

	assert.Equal(t, 7, f.stock(t, "a"))
	assert.Equal(t, 4, f.stock(t, "b"))

	cart, err := f.carts.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "cart is cleared after the order commits")

	assert.Equal(t, [][]string{{"a", "b"}}, f.cache.calls())
	f.notifier.AssertCalled(t, "Notify", mock.Anything, "s1", domain.NotifyOrderConfirmed, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrdersCreated))

	stored, err := f.orders.GetOrder(ctx, o.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, stored.OrderNumber)
}

func TestCreateOrder_UsesLedgerPrice(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "10", 10)})
	f.add(t, "s1", "a", 1)

	f.store.Seed(product("a", "8", 10))
	o := f.order(t, "s1", "")

	assert.Equal(t, "8", o.Items[0].UnitPrice.String())
	assert.Equal(t, "Product a", o.Items[0].Name)
}

func TestCreateOrder_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("missing shopper", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.orders.CreateOrder(ctx, domain.CreateOrderParams{ShippingAddress: validAddress()})
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.orders.CreateOrder(ctx, domain.CreateOrderParams{ShopperID: "s1", ShippingAddress: validAddress()})
		assert.Equal(t, domain.EEMPTYCART, domain.ErrorCode(err))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderRejected.WithLabelValues(domain.EEMPTYCART)))
	})

	t.Run("invalid address", func(t *testing.T) {
		f := newFixture(t, []domain.Product{product("a", "1", 5)})
		f.add(t, "s1", "a", 1)

		addr := validAddress()
		addr.PostalCode = ""
		_, err := f.orders.CreateOrder(ctx, domain.CreateOrderParams{ShopperID: "s1", ShippingAddress: addr})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		assert.Equal(t, 5, f.stock(t, "a"))
	})

	t.Run("deactivated product", func(t *testing.T) {
		f := newFixture(t, []domain.Product{product("a", "1", 5), product("b", "1", 5)})
		f.add(t, "s1", "a", 1)
		f.add(t, "s1", "b", 1)

		off := product("b", "1", 5)
		off.Active = false
		f.store.Seed(off)

		_, err := f.orders.CreateOrder(ctx, domain.CreateOrderParams{ShopperID: "s1", ShippingAddress: validAddress()})
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
		assert.Equal(t, "b", domain.ErrorDetails(err)["product_id"])
		assert.Equal(t, 5, f.stock(t, "a"))
		assert.Equal(t, 5, f.stock(t, "b"))

		lines, err := f.carts.Lines(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, lines, 2, "cart survives a rejected order")
	})
}

func TestCreateOrder_ShortLineIsRejectedNotClamped(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "1", 10), product("b", "1", 10)})
	ctx := context.Background()
	f.add(t, "s1", "a", 2)
	f.add(t, "s1", "b", 2)
	f.store.Seed(product("b", "1", 1))

	view, err := f.carts.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.True(t, view.Items[1].QuantityAdjusted, "the cart view still clamps")

	_, err = f.orders.CreateOrder(ctx, domain.CreateOrderParams{ShopperID: "s1", ShippingAddress: validAddress()})
	assert.Equal(t, domain.EINSUFFICIENTSTOCK, domain.ErrorCode(err))
	assert.Equal(t, "b", domain.ErrorDetails(err)["product_id"])
	assert.Equal(t, "2", domain.ErrorDetails(err)["requested"])
	assert.Equal(t, "1", domain.ErrorDetails(err)["available"])

	assert.Equal(t, 10, f.stock(t, "a"))
	assert.Equal(t, 1, f.stock(t, "b"))
}

func TestCreateOrder_SecondShopperLosesSoldOutProduct(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "20", 5)})
	ctx := context.Background()

	f.add(t, "first", "p", 5)
	f.add(t, "second", "p", 1)

	f.order(t, "first", "")
	assert.Equal(t, 0, f.stock(t, "p"))

	_, err := f.orders.CreateOrder(ctx, domain.CreateOrderParams{ShopperID: "second", ShippingAddress: validAddress()})
	require.Error(t, err)
	assert.Equal(t, domain.EINSUFFICIENTSTOCK, domain.ErrorCode(err))
	assert.Equal(t, "p", domain.ErrorDetails(err)["product_id"])
	assert.Equal(t, "0", domain.ErrorDetails(err)["available"])
	assert.Equal(t, 0, f.stock(t, "p"))

	orders, err := f.orders.ListOrders(ctx, "second")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_ConcurrentOrdersNeverOversell(t *testing.T) {
	const shoppers = 10
	f := newFixture(t, []domain.Product{product("p", "15", 3)})
	ctx := context.Background()

	for i := 0; i < shoppers; i++ {
		f.add(t, shopperName(i), "p", 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, shoppers)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orders.CreateOrder(ctx, domain.CreateOrderParams{
				ShopperID:       shopperName(i),
				ShippingAddress: validAddress(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, domain.EINSUFFICIENTSTOCK, domain.ErrorCode(err))
	}

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 0, f.stock(t, "p"))
}

func shopperName(i int) string {
	return "shopper-" + string(rune('a'+i))
}

func TestCreateOrder_AllOrNothing(t *testing.T) {
	t.Run("one line short of stock", func(t *testing.T) {
		f := newFixture(t, []domain.Product{product("a", "1", 10), product("b", "1", 10), product("c", "1", 10)})
		f.add(t, "s1", "a", 2)
		f.add(t, "s1", "b", 2)
		f.add(t, "s1", "c", 2)
		f.store.Seed(product("b", "1", 1))

		_, err := f.orders.CreateOrder(context.Background(), domain.CreateOrderParams{ShopperID: "s1", ShippingAddress: validAddress()})
		assert.Equal(t, domain.EINSUFFICIENTSTOCK, domain.ErrorCode(err))
		assert.Equal(t, "b", domain.ErrorDetails(err)["product_id"])

		assert.Equal(t, 10, f.stock(t, "a"))
		assert.Equal(t, 1, f.stock(t, "b"))
		assert.Equal(t, 10, f.stock(t, "c"))
	})

	t.Run("later decrement fails", func(t *testing.T) {
		f := newFixture(t, []domain.Product{product("a", "1", 10), product("b", "1", 10)}, withFlakyStock(2, "b"))
		f.add(t, "s1", "a", 2)
		f.add(t, "s1", "b", 2)

		_, err := f.orders.CreateOrder(context.Background(), domain.CreateOrderParams{ShopperID: "s1", ShippingAddress: validAddress()})
		assert.Equal(t, domain.EINSUFFICIENTSTOCK, domain.ErrorCode(err))
		assert.Equal(t, 10, f.stock(t, "a"), "decrement of a is rolled back")
		assert.Equal(t, 10, f.stock(t, "b"))

		cart, err := f.carts.Get(context.Background(), "s1")
		require.NoError(t, err)
		assert.Len(t, cart.Items, 2, "cart survives a rejected order")
	})
}

func TestCreateOrder_RetriesLostStockRace(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "5", 10)}, withFlakyStock(1, ""))
	f.add(t, "s1", "a", 2)

	o := f.order(t, "s1", "")
	assert.Len(t, o.Items, 1)
	assert.Equal(t, 8, f.stock(t, "a"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StockConflicts))
}

func TestCreateOrder_OrderNumberCollision(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "5", 10)})
	f.add(t, "s1", "a", 1)
	f.add(t, "s2", "a", 1)

	numbers := []string{"ORD-20240101-AAAAAA", "ORD-20240101-AAAAAA", "ORD-20240101-BBBBBB"}
	var mu sync.Mutex
	f.orders.orderNumber = func(time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		n := numbers[0]
		if len(numbers) > 1 {
			numbers = numbers[1:]
		}
		return n
	}

	first := f.order(t, "s1", "")
	second := f.order(t, "s2", "")
	assert.Equal(t, "ORD-20240101-AAAAAA", first.OrderNumber)
	assert.Equal(t, "ORD-20240101-BBBBBB", second.OrderNumber)
}

func TestCreateOrder_OrderNumberExhaustionRollsBack(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "5", 10)})
	f.add(t, "s1", "a", 1)
	f.add(t, "s2", "a", 3)

	f.orders.orderNumber = func(time.Time) string { return "ORD-20240101-AAAAAA" }
	f.order(t, "s1", "")
	assert.Equal(t, 9, f.stock(t, "a"))

	_, err := f.orders.CreateOrder(context.Background(), domain.CreateOrderParams{ShopperID: "s2", ShippingAddress: validAddress()})
	assert.ErrorIs(t, err, domain.ErrOrderNumberExhausted)
	assert.Equal(t, 9, f.stock(t, "a"))
}

func TestCreateOrder_NotificationFailureIsSwallowed(t *testing.T) {
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, "s1", domain.NotifyOrderConfirmed, mock.Anything).Return(errors.New("nats: no responders"))

	f := newFixture(t, []domain.Product{product("a", "5", 10)}, withNotifier(n))
	f.add(t, "s1", "a", 1)

	o := f.order(t, "s1", "")
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 9, f.stock(t, "a"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotificationsFailed.WithLabelValues(string(domain.NotifyOrderConfirmed))))
	n.AssertExpectations(t)
}

func TestCreateOrder_CacheFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "5", 10)})
	f.cache.err = errors.New("catalog unreachable")
	f.add(t, "s1", "a", 1)

	o := f.order(t, "s1", "")
	assert.NotEmpty(t, o.ID)
}

func TestCancelOrder_RestoresStockOnce(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 10)})
	ctx := context.Background()

	f.add(t, "s1", "p", 3)
	o := f.order(t, "s1", "")
	assert.Equal(t, 7, f.stock(t, "p"))

	cancelled, err := f.orders.CancelOrder(ctx, o.ID, "s1", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.stock(t, "p"))

	last := cancelled.History[len(cancelled.History)-1]
	assert.Equal(t, domain.OrderStatusCancelled, last.Status)
	assert.Equal(t, "Cancelled by shopper: changed my mind", last.Note)
	f.notifier.AssertCalled(t, "Notify", mock.Anything, "s1", domain.NotifyOrderCancelled, mock.Anything)

	_, err = f.orders.CancelOrder(ctx, o.ID, "s1", "")
	assert.Equal(t, domain.EINVALIDOP, domain.ErrorCode(err))
	assert.Equal(t, "cancelled", domain.ErrorDetails(err)["status"])
	assert.Equal(t, 10, f.stock(t, "p"))
}

func TestCancelOrder_RestoresMultipleLines(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "1", 5), product("b", "1", 5)})
	f.add(t, "s1", "a", 2)
	f.add(t, "s1", "b", 1)

	o := f.order(t, "s1", "")
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, o.Quantities())

	_, err := f.orders.CancelOrder(context.Background(), o.ID, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(t, "a"))
	assert.Equal(t, 5, f.stock(t, "b"))
}

func TestCancelOrder_RestoresStockOfDeactivatedProduct(t *testing.T) {
	f := newFixture(t, []domain.Product{product("a", "1", 5)})
	f.add(t, "s1", "a", 2)
	o := f.order(t, "s1", "")

	off := product("a", "1", 3)
	off.Active = false
	f.store.Seed(off)

	_, err := f.orders.CancelOrder(context.Background(), o.ID, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(t, "a"))
}

func TestCancelOrder_ConcurrentCancelsRestoreOnce(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 10)})
	f.add(t, "s1", "p", 3)
	o := f.order(t, "s1", "")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.orders.CancelOrder(context.Background(), o.ID, "s1", ""); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 10, f.stock(t, "p"))
}

func TestCancelOrder_OwnershipAndState(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 10)})
	ctx := context.Background()
	f.add(t, "s1", "p", 1)
	o := f.order(t, "s1", "")

	_, err := f.orders.CancelOrder(ctx, o.ID, "intruder", "")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = f.orders.CancelOrder(ctx, "missing", "s1", "")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = f.store.Orders().Update(ctx, o.ID, func(o *domain.Order) error {
		o.Status = domain.OrderStatusPaid
		return nil
	})
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, o.ID, "s1", "")
	assert.Equal(t, domain.EINVALIDOP, domain.ErrorCode(err))
	assert.Equal(t, 9, f.stock(t, "p"))
}

func TestCancelOrder_CancelsPaymentIntent(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 10)})
	ctx := context.Background()
	f.add(t, "s1", "p", 1)

	pi, err := f.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{AmountCents: 2079, Currency: "usd"})
	require.NoError(t, err)
	o := f.order(t, "s1", pi.ID)

	_, err = f.orders.CancelOrder(ctx, o.ID, "s1", "")
	require.NoError(t, err)

	got, err := f.billing.GetPaymentIntent(ctx, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", got.Status)
}

func TestCancelOrder_GatewayFailureDoesNotUndoCancel(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 10)})
	f.billing.CancelPaymentIntentFunc = func(ctx context.Context, id string) error {
		return &billing.StripeError{Message: "api unavailable", HTTPStatus: 503}
	}
	f.add(t, "s1", "p", 1)
	o := f.order(t, "s1", "pi_x")

	cancelled, err := f.orders.CancelOrder(context.Background(), o.ID, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.stock(t, "p"))
}

func TestListOrders(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 10)})
	ctx := context.Background()

	orders, err := f.orders.ListOrders(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)

	f.add(t, "s1", "p", 1)
	f.order(t, "s1", "")
	f.add(t, "s1", "p", 1)
	f.order(t, "s1", "")

	orders, err = f.orders.ListOrders(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, err = f.orders.GetOrder(ctx, orders[0].ID, "s2")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestAdvanceStatus(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 10)})
	ctx := context.Background()
	f.add(t, "s1", "p", 1)
	o := f.order(t, "s1", "")

	_, err := f.orders.AdvanceStatus(ctx, o.ID, domain.OrderStatusShipped, "")
	assert.Equal(t, domain.EINVALIDOP, domain.ErrorCode(err), "pending orders advance only through payment")
	assert.Equal(t, "pending", domain.ErrorDetails(err)["from"])

	_, err = f.store.Orders().Update(ctx, o.ID, func(o *domain.Order) error {
		o.Status = domain.OrderStatusPaid
		return nil
	})
	require.NoError(t, err)

	for _, to := range []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered} {
		got, err := f.orders.AdvanceStatus(ctx, o.ID, to, "")
		require.NoError(t, err, to)
		assert.Equal(t, to, got.Status)
		assert.Equal(t, "Status changed to "+string(to), got.History[len(got.History)-1].Note)
	}

	_, err = f.orders.AdvanceStatus(ctx, o.ID, domain.OrderStatusCancelled, "")
	assert.Equal(t, domain.EINVALIDOP, domain.ErrorCode(err))

	_, err = f.orders.AdvanceStatus(ctx, o.ID, "lost", "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = f.orders.AdvanceStatus(ctx, "missing", domain.OrderStatusShipped, "")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	f.notifier.AssertNumberOfCalls(t, "Notify", 4) // confirmed plus three status changes
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t, []domain.Product{product("p", "10", 4)})
	ctx := context.Background()

	p, err := f.orders.AdjustStock(ctx, "p", 6, "restock")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	p, err = f.orders.AdjustStock(ctx, "p", -3, "damaged")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)

	_, err = f.orders.AdjustStock(ctx, "p", -8, "")
	assert.Equal(t, domain.EINSUFFICIENTSTOCK, domain.ErrorCode(err))
	assert.Equal(t, "7", domain.ErrorDetails(err)["available"])
	assert.Equal(t, 7, f.stock(t, "p"))

	_, err = f.orders.AdjustStock(ctx, "p", 0, "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = f.orders.AdjustStock(ctx, "missing", 1, "")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	assert.Equal(t, [][]string{{"p"}, {"p"}}, f.cache.calls())
}

func TestGenerateOrderNumber(t *testing.T) {
	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := generateOrderNumber(at)
		assert.True(t, strings.HasPrefix(n, "ORD-20240309-"), n)
		assert.Len(t, n, len("ORD-20240309-")+6)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 45)
}
