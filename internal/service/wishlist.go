package service

import (
	"context"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// WishlistService manages the products a shopper watches for price drops
// and restocks.
type WishlistService struct {
	repo     domain.WishlistRepository
	products domain.ProductReader
	logger   zerolog.Logger
}

func NewWishlistService(repo domain.WishlistRepository, products domain.ProductReader, logger zerolog.Logger) *WishlistService {
	return &WishlistService{
		repo:     repo,
		products: products,
		logger:   logger.With().Str("component", "wishlist").Logger(),
	}
}

// Add watches a product. Inactive products can be watched so the shopper
// hears when they come back.
func (s *WishlistService) Add(ctx context.Context, shopperID, productID string) (err error) {
	const op = "wishlist.add"
	ctx, span := startSpan(ctx, op,
		attribute.String("shopper.id", shopperID),
		attribute.String("product.id", productID))
	defer func() { endSpan(span, err) }()

	if productID == "" {
		return domain.Invalid(op, "productId is required")
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if isNotFound(err) {
			return productNotFound(op, productID)
		}
		return domain.Internal(err, op, "failed to load product")
	}
	if err := s.repo.Add(ctx, shopperID, productID); err != nil {
		return domain.Internal(err, op, "failed to update wishlist")
	}

	s.logger.Debug().Str("shopper_id", shopperID).Str("product_id", productID).Msg("wishlist item added")
	return nil
}

// Remove stops watching a product. Removing an unwatched product is a no-op.
func (s *WishlistService) Remove(ctx context.Context, shopperID, productID string) error {
	const op = "wishlist.remove"
	if err := s.repo.Remove(ctx, shopperID, productID); err != nil {
		return domain.Internal(err, op, "failed to update wishlist")
	}
	return nil
}

// List returns the watched products that still exist, in product id order.
func (s *WishlistService) List(ctx context.Context, shopperID string) (products []domain.Product, err error) {
	const op = "wishlist.list"
	ctx, span := startSpan(ctx, op, attribute.String("shopper.id", shopperID))
	defer func() { endSpan(span, err) }()

	ids, err := s.repo.List(ctx, shopperID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load wishlist")
	}
	found, err := s.products.FindMany(ctx, ids)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load products")
	}

	products = make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			products = append(products, *p)
		}
	}
	return products, nil
}
