package service

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const cartKeyPrefix = "cart:"

// storedCart is the persisted form of a cart. Transient annotations and
// totals are never stored.
type storedCart struct {
	Items []storedItem `json:"items"`
}

type storedItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"addedAt"`
}

// CartService implements domain.CartService over a key-value store. It only
// observes stock; it never mutates the ledger.
type CartService struct {
	kv       domain.KeyValueStore
	products domain.ProductReader
	pricer   *Pricer
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
	now      func() time.Time
}

var _ domain.CartService = (*CartService)(nil)

// NewCartService creates a CartService. metrics may be nil.
func NewCartService(kv domain.KeyValueStore, products domain.ProductReader, pricer *Pricer, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *CartService {
	return &CartService{
		kv:       kv,
		products: products,
		pricer:   pricer,
		metrics:  metrics,
		logger:   logger.With().Str("component", "cart").Logger(),
		now:      time.Now,
	}
}

// Get returns the revalidated cart. Adjustments made during revalidation are
// shown but not persisted; the next mutation persists them.
func (s *CartService) Get(ctx context.Context, shopperID string) (cart *domain.Cart, err error) {
	const op = "cart.get"
	ctx, span := startSpan(ctx, op, attribute.String("shopper.id", shopperID))
	defer func() { endSpan(span, err) }()

	items, err := s.load(ctx, op, shopperID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, op, shopperID, items)
}

// Lines returns the stored lines with their requested quantities. Nothing
// is dropped or clamped.
func (s *CartService) Lines(ctx context.Context, shopperID string) ([]domain.CartItem, error) {
	const op = "cart.lines"

	items, err := s.load(ctx, op, shopperID)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, domain.CartItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			AddedAt:   it.AddedAt,
		})
	}
	return lines, nil
}

// AddItem merges quantity into the existing line for the product, or adds a
// new line. The merged total must fit in live stock.
func (s *CartService) AddItem(ctx context.Context, shopperID, productID string, quantity int) (cart *domain.Cart, err error) {
	const op = "cart.add_item"
	ctx, span := startSpan(ctx, op,
		attribute.String("shopper.id", shopperID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity))
	defer func() {
		s.metrics.CartMutation("add", err)
		endSpan(span, err)
	}()

	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity.WithOp(op)
	}

	p, err := s.findProduct(ctx, op, productID)
	if err != nil {
		return nil, err
	}

	items, err := s.load(ctx, op, shopperID)
	if err != nil {
		return nil, err
	}

	idx := indexOf(items, productID)
	requested := quantity
	if idx >= 0 {
		requested += items[idx].Quantity
	}
	if err := checkPurchasable(op, p, productID, requested); err != nil {
		return nil, err
	}

	if idx >= 0 {
		items[idx].Quantity = requested
		items[idx].UnitPrice = p.Price
	} else {
		items = append(items, storedItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  quantity,
			AddedAt:   s.now().UTC(),
		})
	}

	return s.save(ctx, op, shopperID, items)
}

// UpdateItem sets a line's quantity. The line must already be in the cart.
func (s *CartService) UpdateItem(ctx context.Context, shopperID, productID string, quantity int) (cart *domain.Cart, err error) {
	const op = "cart.update_item"
	ctx, span := startSpan(ctx, op,
		attribute.String("shopper.id", shopperID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity))
	defer func() {
		s.metrics.CartMutation("update", err)
		endSpan(span, err)
	}()

	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity.WithOp(op)
	}

	items, err := s.load(ctx, op, shopperID)
	if err != nil {
		return nil, err
	}

	idx := indexOf(items, productID)
	if idx < 0 {
		return nil, domain.ErrCartItemNotFound.WithOp(op).WithDetail("product_id", productID)
	}

	p, err := s.findProduct(ctx, op, productID)
	if err != nil {
		return nil, err
	}
	if err := checkPurchasable(op, p, productID, quantity); err != nil {
		return nil, err
	}

	items[idx].Quantity = quantity
	items[idx].UnitPrice = p.Price

	return s.save(ctx, op, shopperID, items)
}

// RemoveItem removes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, shopperID, productID string) (cart *domain.Cart, err error) {
	const op = "cart.remove_item"
	ctx, span := startSpan(ctx, op,
		attribute.String("shopper.id", shopperID),
		attribute.String("product.id", productID))
	defer func() {
		s.metrics.CartMutation("remove", err)
		endSpan(span, err)
	}()

	items, err := s.load(ctx, op, shopperID)
	if err != nil {
		return nil, err
	}

	idx := indexOf(items, productID)
	if idx < 0 {
		return nil, domain.ErrCartItemNotFound.WithOp(op).WithDetail("product_id", productID)
	}
	items = slices.Delete(items, idx, idx+1)

	return s.save(ctx, op, shopperID, items)
}

// Clear deletes the stored cart and returns an empty one.
func (s *CartService) Clear(ctx context.Context, shopperID string) (cart *domain.Cart, err error) {
	const op = "cart.clear"
	ctx, span := startSpan(ctx, op, attribute.String("shopper.id", shopperID))
	defer func() {
		s.metrics.CartMutation("clear", err)
		endSpan(span, err)
	}()

	if err := s.kv.Delete(ctx, cartKeyPrefix+shopperID); err != nil {
		return nil, domain.Internal(err, op, "failed to clear cart")
	}
	return s.view(ctx, op, shopperID, nil)
}

func (s *CartService) findProduct(ctx context.Context, op, productID string) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, productNotFound(op, productID)
		}
		return nil, domain.Internal(err, op, "failed to load product")
	}
	return p, nil
}

func (s *CartService) load(ctx context.Context, op, shopperID string) ([]storedItem, error) {
	data, err := s.kv.Get(ctx, cartKeyPrefix+shopperID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to load cart")
	}

	var sc storedCart
	if err := json.Unmarshal(data, &sc); err != nil {
		// A corrupt entry is discarded rather than locking the shopper out.
		s.logger.Warn().Err(err).Str("shopper_id", shopperID).Msg("discarding unreadable cart")
		return nil, nil
	}
	return sc.Items, nil
}

// save revalidates, persists the revalidated lines with a refreshed TTL, and
// returns the view.
func (s *CartService) save(ctx context.Context, op, shopperID string, items []storedItem) (*domain.Cart, error) {
	lines, err := s.revalidate(ctx, op, items)
	if err != nil {
		return nil, err
	}

	sc := storedCart{Items: make([]storedItem, 0, len(lines))}
	for _, l := range lines {
		sc.Items = append(sc.Items, storedItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			AddedAt:   l.AddedAt,
		})
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode cart")
	}
	if err := s.kv.Put(ctx, cartKeyPrefix+shopperID, data); err != nil {
		return nil, domain.Internal(err, op, "failed to save cart")
	}

	return s.priced(ctx, op, shopperID, lines)
}

func (s *CartService) view(ctx context.Context, op, shopperID string, items []storedItem) (*domain.Cart, error) {
	lines, err := s.revalidate(ctx, op, items)
	if err != nil {
		return nil, err
	}
	return s.priced(ctx, op, shopperID, lines)
}

func (s *CartService) priced(ctx context.Context, op, shopperID string, lines []domain.CartItem) (*domain.Cart, error) {
	cart := &domain.Cart{ShopperID: shopperID, Items: lines}

	subtotal := decimal.Zero
	for _, l := range cart.Purchasable() {
		subtotal = subtotal.Add(l.LineTotal())
	}

	totals, err := s.pricer.Totals(ctx, subtotal)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to price cart")
	}
	cart.Totals = totals
	return cart, nil
}

// revalidate annotates lines against live stock. Inactive or deleted
// products are dropped, zero-stock lines are kept but flagged out of stock,
// and quantities above live stock are clamped. Prices are refreshed.
func (s *CartService) revalidate(ctx context.Context, op string, items []storedItem) ([]domain.CartItem, error) {
	lines := make([]domain.CartItem, 0, len(items))
	if len(items) == 0 {
		return lines, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.FindMany(ctx, ids)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load cart products")
	}

	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.Active {
			continue
		}

		line := domain.CartItem{
			ProductID:      it.ProductID,
			Name:           it.Name,
			UnitPrice:      p.Price,
			Quantity:       it.Quantity,
			AddedAt:        it.AddedAt,
			AvailableStock: p.Stock,
		}
		switch {
		case p.Stock <= 0:
			line.OutOfStock = true
			line.AvailableStock = 0
		case p.Stock < it.Quantity:
			line.Quantity = p.Stock
			line.QuantityAdjusted = true
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func indexOf(items []storedItem, productID string) int {
	return slices.IndexFunc(items, func(it storedItem) bool { return it.ProductID == productID })
}
