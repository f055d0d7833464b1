// Package storefront serves the shopper-facing JSON API.
package storefront

import (
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/labstack/echo/v4"
)

// CartHandler handles all cart routes.
type CartHandler struct {
	carts domain.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts domain.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// View handles GET /cart
func (h *CartHandler) View(c echo.Context) error {
	ctx := c.Request().Context()
	cart, err := h.carts.Get(ctx, domain.ShopperIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cart)
}

// Add handles POST /cart/items
func (h *CartHandler) Add(c echo.Context) error {
	const op = "storefront.cart_add"
	ctx := c.Request().Context()

	var req cartItemRequest
	if err := handler.Bind(c, op, &req); err != nil {
		return err
	}
	if req.ProductID == "" {
		return domain.NewValidationError(op, "productId", "productId is required")
	}

	cart, err := h.carts.AddItem(ctx, domain.ShopperIDFromContext(ctx), req.ProductID, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cart)
}

// Update handles PUT /cart/items/:productId
func (h *CartHandler) Update(c echo.Context) error {
	const op = "storefront.cart_update"
	ctx := c.Request().Context()

	var req cartItemRequest
	if err := handler.Bind(c, op, &req); err != nil {
		return err
	}

	cart, err := h.carts.UpdateItem(ctx, domain.ShopperIDFromContext(ctx), c.Param("productId"), req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cart)
}

// Remove handles DELETE /cart/items/:productId
func (h *CartHandler) Remove(c echo.Context) error {
	ctx := c.Request().Context()
	cart, err := h.carts.RemoveItem(ctx, domain.ShopperIDFromContext(ctx), c.Param("productId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cart)
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	cart, err := h.carts.Clear(ctx, domain.ShopperIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cart)
}
