package storefront

import (
	"context"
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// WishlistService is what the wishlist routes need from the service layer.
type WishlistService interface {
	Add(ctx context.Context, shopperID, productID string) error
	Remove(ctx context.Context, shopperID, productID string) error
	List(ctx context.Context, shopperID string) ([]domain.Product, error)
}

// WishlistHandler manages the products a shopper watches.
type WishlistHandler struct {
	wishlists WishlistService
}

func NewWishlistHandler(wishlists WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlists: wishlists}
}

type wishlistItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	InStock   bool            `json:"inStock"`
	Active    bool            `json:"active"`
}

type wishlistResponse struct {
	Items []wishlistItem `json:"items"`
}

// View handles GET /wishlist
func (h *WishlistHandler) View(c echo.Context) error {
	ctx := c.Request().Context()
	return h.respond(ctx, c, http.StatusOK)
}

// Add handles POST /wishlist
func (h *WishlistHandler) Add(c echo.Context) error {
	const op = "storefront.wishlist_add"
	ctx := c.Request().Context()

	var req struct {
		ProductID string `json:"productId"`
	}
	if err := handler.Bind(c, op, &req); err != nil {
		return err
	}
	if err := h.wishlists.Add(ctx, domain.ShopperIDFromContext(ctx), req.ProductID); err != nil {
		return err
	}
	return h.respond(ctx, c, http.StatusCreated)
}

// Remove handles DELETE /wishlist/:productId
func (h *WishlistHandler) Remove(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.wishlists.Remove(ctx, domain.ShopperIDFromContext(ctx), c.Param("productId")); err != nil {
		return err
	}
	return h.respond(ctx, c, http.StatusOK)
}

func (h *WishlistHandler) respond(ctx context.Context, c echo.Context, status int) error {
	products, err := h.wishlists.List(ctx, domain.ShopperIDFromContext(ctx))
	if err != nil {
		return err
	}

	items := make([]wishlistItem, 0, len(products))
	for _, p := range products {
		items = append(items, wishlistItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			InStock:   p.Active && p.Stock > 0,
			Active:    p.Active,
		})
	}
	return c.JSON(status, wishlistResponse{Items: items})
}
