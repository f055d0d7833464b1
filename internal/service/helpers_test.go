package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/storefront/internal/address"
	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/memory"
	"github.com/dukerupert/storefront/internal/shipping"
	"github.com/dukerupert/storefront/internal/tax"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id, price string, stock int) domain.Product {
	return domain.Product{
		ID:                id,
		Name:              "Product " + id,
		Price:             dec(price),
		Stock:             stock,
		Active:            true,
		LowStockThreshold: 2,
	}
}

func validAddress() domain.Address {
	return domain.Address{
		Name:       "Ada Shopper",
		Line1:      "1 Main St",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
		Country:    "us",
	}
}

// mockNotifier records notifications with testify/mock.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, shopperID string, kind domain.NotificationKind, payload map[string]any) error {
	args := m.Called(ctx, shopperID, kind, payload)
	return args.Error(0)
}

func acceptingNotifier() *mockNotifier {
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return n
}

// recordingInvalidator captures invalidated product ids.
type recordingInvalidator struct {
	mu  sync.Mutex
	ids [][]string
	err error
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, productIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, append([]string(nil), productIDs...))
	return r.err
}

func (r *recordingInvalidator) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.ids...)
}

type fixture struct {
	store    *memory.Store
	kv       *memory.KV
	pricer   *Pricer
	metrics  *telemetry.BusinessMetrics
	billing  *billing.MockProvider
	notifier *mockNotifier
	cache    *recordingInvalidator
	flaky    *flakyOption
	address  address.Validator

	carts    *CartService
	orders   *FulfillmentService
	payments *PaymentReconciler
	checkout *CheckoutService
}

type fixtureOption func(*fixture)

func withNotifier(n *mockNotifier) fixtureOption {
	return func(f *fixture) { f.notifier = n }
}

func withAddressValidator(v address.Validator) fixtureOption {
	return func(f *fixture) { f.address = v }
}

// withFlakyStock makes the first n decrements of failOn (any product when
// empty) lose the race.
func withFlakyStock(n int, failOn string) fixtureOption {
	return func(f *fixture) { f.flaky = &flakyOption{failures: n, failOn: failOn} }
}

type flakyOption struct {
	failures int
	failOn   string
}

func newFixture(t *testing.T, products []domain.Product, opts ...fixtureOption) *fixture {
	t.Helper()

	taxCalc, err := tax.NewPercentageCalculator(dec("0.08"))
	require.NoError(t, err)
	shipCalc, err := shipping.NewFlatRateCalculator(dec("9.99"), dec("100"))
	require.NoError(t, err)

	f := &fixture{
		store:    memory.NewStore(),
		kv:       memory.NewKV(7 * 24 * time.Hour),
		pricer:   NewPricer(taxCalc, shipCalc),
		metrics:  telemetry.NewBusinessMetrics(prometheus.NewRegistry(), "test"),
		billing:  billing.NewMockProvider(),
		notifier: acceptingNotifier(),
		cache:    &recordingInvalidator{},
		address:  address.NewBasicValidator(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.store.Seed(products...)

	var store domain.Store = f.store
	if f.flaky != nil {
		store = newFlakyStore(f.store, f.flaky.failures, f.flaky.failOn)
	}

	logger := zerolog.Nop()
	f.carts = NewCartService(f.kv, f.store.Ledger(), f.pricer, f.metrics, logger)
	f.orders = NewFulfillmentService(FulfillmentDeps{
		Store:    store,
		Carts:    f.carts,
		Pricer:   f.pricer,
		Address:  f.address,
		Notifier: f.notifier,
		Cache:    f.cache,
		Payments: f.billing,
		Metrics:  f.metrics,
		Logger:   logger,
	})
	f.payments = NewPaymentReconciler(f.store.Orders(), f.orders, f.notifier, f.metrics, logger)
	f.checkout = NewCheckoutService(f.carts, f.billing, "usd", f.metrics, logger)
	return f
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Ledger().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) add(t *testing.T, shopperID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), shopperID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) order(t *testing.T, shopperID, paymentIntentID string) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), domain.CreateOrderParams{
		ShopperID:       shopperID,
		ShippingAddress: validAddress(),
		PaymentIntentID: paymentIntentID,
	})
	require.NoError(t, err)
	return o
}

// flakyStore wraps a domain.Store and makes the first n decrements lose
// the race, as if another transaction had taken the stock. When failOn is
// set only decrements of that product fail.
type flakyStore struct {
	domain.Store
	mu       *sync.Mutex
	failures *int
	failOn   string
}

func newFlakyStore(inner domain.Store, failures int, failOn string) *flakyStore {
	return &flakyStore{Store: inner, mu: &sync.Mutex{}, failures: &failures, failOn: failOn}
}

func (s *flakyStore) Ledger() domain.StockLedger {
	return &flakyLedger{StockLedger: s.Store.Ledger(), store: s}
}

func (s *flakyStore) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx domain.Store) error {
		return fn(&flakyStore{Store: tx, mu: s.mu, failures: s.failures, failOn: s.failOn})
	})
}

type flakyLedger struct {
	domain.StockLedger
	store *flakyStore
}

func (l *flakyLedger) Decrement(ctx context.Context, productID string, qty int) error {
	l.store.mu.Lock()
	fail := *l.store.failures > 0 && (l.store.failOn == "" || l.store.failOn == productID)
	if fail {
		*l.store.failures--
	}
	l.store.mu.Unlock()

	if fail {
		return domain.ErrStockConflict
	}
	return l.StockLedger.Decrement(ctx, productID, qty)
}
