//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/storefront/internal"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, internal.RunMigrations(ctx, pool, zerolog.Nop()))

	truncate := func() {
		_, err := pool.Exec(ctx, `TRUNCATE order_status_history, order_items, orders, wishlist_items, products`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(truncate)

	return postgres.NewStore(pool, zerolog.Nop()), pool
}

func seed(t *testing.T, store *postgres.Store, id string, stock int) {
	t.Helper()
	require.NoError(t, store.Catalog().Upsert(context.Background(), domain.Product{
		ID: id, Name: "Product " + id, Price: decimal.RequireFromString("12.50"),
		Stock: stock, Active: true, LowStockThreshold: 2,
	}))
}

func newOrder(shopperID, number, productID string, qty int) *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	o := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		ShopperID:       shopperID,
		Items:           []domain.OrderItem{{ProductID: productID, Name: "Product " + productID, UnitPrice: decimal.RequireFromString("12.50"), Quantity: qty}},
		ShippingAddress: domain.Address{Line1: "1 Main", City: "Town", State: "WA", PostalCode: "98101", Country: "US"},
		PaymentIntentID: "pi_" + number,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		Totals:          domain.ComputeTotals(decimal.RequireFromString("25"), decimal.RequireFromString("2"), decimal.RequireFromString("9.99")),
	}
	o.Record(now, "Order created", "")
	return o
}

func TestLedger_ConcurrentDecrement(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	seed(t, store, "p1", 5)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Ledger().Decrement(ctx, "p1", 1)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrStockConflict)
		}()
	}
	wg.Wait()

	p, err := store.Ledger().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(5), wins.Load())
	assert.Equal(t, 0, p.Stock)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	seed(t, store, "p1", 5)

	boom := errors.New("boom")
	o := newOrder("s1", "ORD-TX", "p1", 2)
	err := store.WithinTx(ctx, func(tx domain.Store) error {
		require.NoError(t, tx.Ledger().Decrement(ctx, "p1", 2))
		require.NoError(t, tx.Orders().Create(ctx, o))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := store.Ledger().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	_, err = store.Orders().GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFoundInStore)
}

func TestOrders_DuplicateNumberKeepsTxUsable(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	seed(t, store, "p1", 5)
	require.NoError(t, store.Orders().Create(ctx, newOrder("s1", "ORD-DUP", "p1", 1)))

	second := newOrder("s1", "ORD-DUP", "p1", 1)
	err := store.WithinTx(ctx, func(tx domain.Store) error {
		err := tx.Orders().Create(ctx, second)
		require.ErrorIs(t, err, domain.ErrDuplicateOrderNumber)

		second.OrderNumber = "ORD-OTHER"
		return tx.Orders().Create(ctx, second)
	})
	require.NoError(t, err)

	got, err := store.Orders().GetByPaymentIntent(ctx, "pi_ORD-DUP")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
}

func TestOrders_RoundTripAndUpdate(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	seed(t, store, "p1", 5)

	o := newOrder("s1", "ORD-RT", "p1", 2)
	require.NoError(t, store.Orders().Create(ctx, o))

	got, err := store.Orders().GetForShopper(ctx, o.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)
	assert.Equal(t, o.ShippingAddress, got.ShippingAddress)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, got.Total.Equal(o.Total))
	require.Len(t, got.History, 1)

	_, err = store.Orders().GetForShopper(ctx, o.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFoundInStore)

	updated, err := store.Orders().Update(ctx, o.ID, func(o *domain.Order) error {
		o.Status = domain.OrderStatusPaid
		o.PaymentStatus = domain.PaymentStatusCompleted
		o.Record(time.Now().UTC(), "Payment received", "evt_1")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, updated.Status)

	got, err = store.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.PaymentStatus)
	require.Len(t, got.History, 2)
	assert.Equal(t, "evt_1", got.History[1].EventID)

	list, err := store.Orders().ListForShopper(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)
}

func TestWishlists_Watchers(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	seed(t, store, "p1", 1)
	seed(t, store, "p2", 1)

	w := store.Wishlists()
	require.NoError(t, w.Add(ctx, "s1", "p1"))
	require.NoError(t, w.Add(ctx, "s1", "p1"))
	require.NoError(t, w.Add(ctx, "s2", "p1"))
	assert.ErrorIs(t, w.Add(ctx, "s1", "missing"), domain.ErrNotFoundInStore)

	got, err := w.Watchers(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"p1": {"s1", "s2"}}, got)
}
