// Package memory provides in-process implementations of the storefront's
// store contracts. They back the test suites and the single-binary dev mode.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/dukerupert/storefront/internal/domain"
)

// state is shared by a Store and every transactional view of it.
type state struct {
	// txMu serializes writers so a failed transaction can restore its
	// snapshot without clobbering anyone else's write.
	txMu sync.Mutex

	mu       sync.RWMutex
	products map[string]*domain.Product
	orders   map[string]*domain.Order
	numbers  map[string]string // order number -> order id
}

// Store is an in-memory domain.Store.
type Store struct {
	st   *state
	inTx bool
}

var _ domain.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: &state{
		products: make(map[string]*domain.Product),
		orders:   make(map[string]*domain.Order),
		numbers:  make(map[string]string),
	}}
}

// Seed inserts or replaces products.
func (s *Store) Seed(products ...domain.Product) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for i := range products {
		p := products[i]
		s.st.products[p.ID] = &p
	}
}

// Ledger implements domain.Store.
func (s *Store) Ledger() domain.StockLedger { return &Ledger{s: s} }

// Catalog returns the ledger with its concrete type, which also lists products.
func (s *Store) Catalog() *Ledger { return &Ledger{s: s} }

// Orders implements domain.Store.
func (s *Store) Orders() domain.OrderRepository { return &Orders{s: s} }

// WithinTx runs fn against a view that shares this store's state. If fn
// returns an error, products and orders are restored to their prior contents.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.RLock()
	products := cloneProducts(s.st.products)
	orders := cloneOrders(s.st.orders)
	numbers := maps.Clone(s.st.numbers)
	s.st.mu.RUnlock()

	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.mu.Lock()
		s.st.products = products
		s.st.orders = orders
		s.st.numbers = numbers
		s.st.mu.Unlock()
		return err
	}
	return nil
}

// write runs a single mutation, serialized against open transactions.
func (s *Store) write(fn func() error) error {
	if !s.inTx {
		s.st.txMu.Lock()
		defer s.st.txMu.Unlock()
	}
	return fn()
}

// Ledger is the in-memory domain.StockLedger.
type Ledger struct {
	s *Store
}

// FindByID implements domain.ProductReader.
func (l *Ledger) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	l.s.st.mu.RLock()
	defer l.s.st.mu.RUnlock()

	p, ok := l.s.st.products[id]
	if !ok {
		return nil, domain.ErrNotFoundInStore
	}
	c := *p
	return &c, nil
}

// FindMany implements domain.ProductReader.
func (l *Ledger) FindMany(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	l.s.st.mu.RLock()
	defer l.s.st.mu.RUnlock()

	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := l.s.st.products[id]; ok {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

// All implements domain.ProductLister, ordered by id.
func (l *Ledger) All(ctx context.Context) ([]domain.Product, error) {
	l.s.st.mu.RLock()
	defer l.s.st.mu.RUnlock()

	out := make([]domain.Product, 0, len(l.s.st.products))
	for _, p := range l.s.st.products {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Decrement implements domain.StockLedger. The check and the write happen
// under one lock, matching a conditional UPDATE.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) error {
	return l.s.write(func() error {
		l.s.st.mu.Lock()
		defer l.s.st.mu.Unlock()

		p, ok := l.s.st.products[productID]
		if !ok || p.Stock < qty {
			return domain.ErrStockConflict
		}
		p.Stock -= qty
		return nil
	})
}

// Increment implements domain.StockLedger.
func (l *Ledger) Increment(ctx context.Context, productID string, qty int) error {
	return l.s.write(func() error {
		l.s.st.mu.Lock()
		defer l.s.st.mu.Unlock()

		p, ok := l.s.st.products[productID]
		if !ok {
			return domain.ErrNotFoundInStore
		}
		p.Stock += qty
		return nil
	})
}

// Orders is the in-memory domain.OrderRepository.
type Orders struct {
	s *Store
}

// Create implements domain.OrderRepository.
func (r *Orders) Create(ctx context.Context, o *domain.Order) error {
	return r.s.write(func() error {
		r.s.st.mu.Lock()
		defer r.s.st.mu.Unlock()

		if _, taken := r.s.st.numbers[o.OrderNumber]; taken {
			return domain.ErrDuplicateOrderNumber
		}
		r.s.st.orders[o.ID] = cloneOrder(o)
		r.s.st.numbers[o.OrderNumber] = o.ID
		return nil
	})
}

// GetByID implements domain.OrderRepository.
func (r *Orders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.find(func(o *domain.Order) bool { return o.ID == id })
}

// GetForShopper implements domain.OrderRepository.
func (r *Orders) GetForShopper(ctx context.Context, id, shopperID string) (*domain.Order, error) {
	return r.find(func(o *domain.Order) bool { return o.ID == id && o.ShopperID == shopperID })
}

// GetByPaymentIntent implements domain.OrderRepository.
func (r *Orders) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	if paymentIntentID == "" {
		return nil, domain.ErrNotFoundInStore
	}
	return r.find(func(o *domain.Order) bool { return o.PaymentIntentID == paymentIntentID })
}

// ListForShopper implements domain.OrderRepository.
func (r *Orders) ListForShopper(ctx context.Context, shopperID string) ([]domain.Order, error) {
	r.s.st.mu.RLock()
	defer r.s.st.mu.RUnlock()

	var out []domain.Order
	for _, o := range r.s.st.orders {
		if o.ShopperID == shopperID {
			out = append(out, *cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// Update implements domain.OrderRepository.
func (r *Orders) Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	var updated *domain.Order
	err := r.s.write(func() error {
		r.s.st.mu.RLock()
		cur, ok := r.s.st.orders[id]
		var work *domain.Order
		if ok {
			work = cloneOrder(cur)
		}
		r.s.st.mu.RUnlock()

		if !ok {
			return domain.ErrNotFoundInStore
		}
		if err := fn(work); err != nil {
			return err
		}

		r.s.st.mu.Lock()
		r.s.st.orders[id] = cloneOrder(work)
		r.s.st.mu.Unlock()

		updated = work
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Orders) find(match func(*domain.Order) bool) (*domain.Order, error) {
	r.s.st.mu.RLock()
	defer r.s.st.mu.RUnlock()

	for _, o := range r.s.st.orders {
		if match(o) {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrNotFoundInStore
}

func cloneOrder(o *domain.Order) *domain.Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = slices.Clone(o.Items)
	c.History = slices.Clone(o.History)
	return &c
}

func cloneOrders(in map[string]*domain.Order) map[string]*domain.Order {
	out := make(map[string]*domain.Order, len(in))
	for k, v := range in {
		out[k] = cloneOrder(v)
	}
	return out
}

func cloneProducts(in map[string]*domain.Product) map[string]*domain.Product {
	out := make(map[string]*domain.Product, len(in))
	for k, v := range in {
		c := *v
		out[k] = &c
	}
	return out
}
