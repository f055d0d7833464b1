package postgres

import (
	"context"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Orders implements domain.OrderRepository.
type Orders struct {
	store *Store
}

var _ domain.OrderRepository = (*Orders)(nil)

const orderColumns = `id, order_number, shopper_id, status, payment_status,
	COALESCE(payment_intent_id, ''), shipping_address,
	subtotal_cents, tax_cents, shipping_cents, total_cents, created_at, updated_at`

// Create inserts the order, its items and its initial history in a savepoint
// (or its own transaction outside WithinTx), so a duplicate order number
// leaves the enclosing transaction usable for a retry.
func (r *Orders) Create(ctx context.Context, o *domain.Order) (err error) {
	sub, err := r.store.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sub.Rollback(ctx)
			return
		}
		if cErr := sub.Commit(ctx); cErr != nil {
			err = fmt.Errorf("commit order insert: %w", cErr)
		}
	}()

	_, err = sub.Exec(ctx,
		`INSERT INTO orders (id, order_number, shopper_id, status, payment_status, payment_intent_id,
		   shipping_address, subtotal_cents, tax_cents, shipping_cents, total_cents, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.OrderNumber, o.ShopperID, string(o.Status), string(o.PaymentStatus),
		nullIfEmpty(o.PaymentIntentID), o.ShippingAddress,
		domain.ToCents(o.Subtotal), domain.ToCents(o.Tax), domain.ToCents(o.Shipping), domain.ToCents(o.Total),
		o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err, "orders_order_number_key") {
		return domain.ErrDuplicateOrderNumber
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(
			`INSERT INTO order_items (order_id, position, product_id, name, unit_price_cents, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i, it.ProductID, it.Name, domain.ToCents(it.UnitPrice), it.Quantity)
	}
	for _, h := range o.History {
		queueHistory(batch, o.ID, h)
	}
	if err = sub.SendBatch(ctx, batch).Close(); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("insert order items: unknown product: %w", err)
		}
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func queueHistory(b *pgx.Batch, orderID string, h domain.StatusEntry) {
	b.Queue(
		`INSERT INTO order_status_history (order_id, status, payment_status, note, event_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, string(h.Status), string(h.PaymentStatus), nullIfEmpty(h.Note), nullIfEmpty(h.EventID), h.At)
}

// GetByID implements domain.OrderRepository.
func (r *Orders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetForShopper implements domain.OrderRepository.
func (r *Orders) GetForShopper(ctx context.Context, id, shopperID string) (*domain.Order, error) {
	return r.getOne(ctx, `WHERE id = $1 AND shopper_id = $2`, id, shopperID)
}

// GetByPaymentIntent implements domain.OrderRepository.
func (r *Orders) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	if paymentIntentID == "" {
		return nil, domain.ErrNotFoundInStore
	}
	return r.getOne(ctx, `WHERE payment_intent_id = $1 ORDER BY created_at DESC LIMIT 1`, paymentIntentID)
}

// ListForShopper implements domain.OrderRepository.
func (r *Orders) ListForShopper(ctx context.Context, shopperID string) ([]domain.Order, error) {
	rows, err := r.store.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE shopper_id = $1 ORDER BY created_at DESC`, shopperID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return domain.Order{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}

	ptrs := make([]*domain.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := r.loadChildren(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// Update implements domain.OrderRepository. The row is locked with
// SELECT ... FOR UPDATE; only history entries appended by fn are inserted.
func (r *Orders) Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	if !r.store.inTx {
		var out *domain.Order
		err := r.store.WithinTx(ctx, func(tx domain.Store) error {
			var err error
			out, err = tx.Orders().Update(ctx, id, fn)
			return err
		})
		return out, err
	}

	o, err := r.getOne(ctx, `WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	before := len(o.History)

	if err := fn(o); err != nil {
		return nil, err
	}

	_, err = r.store.db.Exec(ctx,
		`UPDATE orders SET status = $2, payment_status = $3, updated_at = $4 WHERE id = $1`,
		o.ID, string(o.Status), string(o.PaymentStatus), o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", o.ID, err)
	}

	if len(o.History) > before {
		batch := &pgx.Batch{}
		for _, h := range o.History[before:] {
			queueHistory(batch, o.ID, h)
		}
		if err := r.store.db.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("append order history %s: %w", o.ID, err)
		}
	}
	return o, nil
}

func (r *Orders) getOne(ctx context.Context, where string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(r.store.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...))
	if isNoRows(err) {
		return nil, domain.ErrNotFoundInStore
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	if err := r.loadChildren(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                              domain.Order
		status, payStatus              string
		subtotal, tax, shipping, total int64
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.ShopperID, &status, &payStatus,
		&o.PaymentIntentID, &o.ShippingAddress,
		&subtotal, &tax, &shipping, &total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.Totals = domain.Totals{
		Subtotal: domain.FromCents(subtotal),
		Tax:      domain.FromCents(tax),
		Shipping: domain.FromCents(shipping),
		Total:    domain.FromCents(total),
	}
	return &o, nil
}

// loadChildren fills Items and History for the given orders with two queries.
func (r *Orders) loadChildren(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := r.store.db.Query(ctx,
		`SELECT order_id, product_id, name, unit_price_cents, quantity
		 FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	for rows.Next() {
		var (
			orderID string
			it      domain.OrderItem
			cents   int64
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &cents, &it.Quantity); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		it.UnitPrice = domain.FromCents(cents)
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("select order items: %w", err)
	}

	rows, err = r.store.db.Query(ctx,
		`SELECT order_id, status, payment_status, COALESCE(note, ''), COALESCE(event_id, ''), created_at
		 FROM order_status_history WHERE order_id = ANY($1) ORDER BY order_id, id`, ids)
	if err != nil {
		return fmt.Errorf("select order history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID, status, payStatus string
			h                          domain.StatusEntry
		)
		if err := rows.Scan(&orderID, &status, &payStatus, &h.Note, &h.EventID, &h.At); err != nil {
			return fmt.Errorf("scan order history: %w", err)
		}
		h.Status = domain.OrderStatus(status)
		h.PaymentStatus = domain.PaymentStatus(payStatus)
		byID[orderID].History = append(byID[orderID].History, h)
	}
	return rows.Err()
}
