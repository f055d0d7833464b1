package storefront

import (
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/labstack/echo/v4"
)

// OrderHandler handles order placement, history and cancellation.
type OrderHandler struct {
	orders domain.OrderService
}

func NewOrderHandler(orders domain.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	ShippingAddress domain.Address `json:"shippingAddress"`
	PaymentIntentID string         `json:"paymentIntentId"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderList struct {
	Orders []domain.Order `json:"orders"`
}

// Create handles POST /orders
func (h *OrderHandler) Create(c echo.Context) error {
	const op = "storefront.order_create"
	ctx := c.Request().Context()

	var req createOrderRequest
	if err := handler.Bind(c, op, &req); err != nil {
		return err
	}

	order, err := h.orders.CreateOrder(ctx, domain.CreateOrderParams{
		ShopperID:       domain.ShopperIDFromContext(ctx),
		ShippingAddress: req.ShippingAddress,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, order)
}

// List handles GET /orders
func (h *OrderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	orders, err := h.orders.ListOrders(ctx, domain.ShopperIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderList{Orders: orders})
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	order, err := h.orders.GetOrder(ctx, c.Param("id"), domain.ShopperIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// Cancel handles POST /orders/:id/cancel. The body is optional.
func (h *OrderHandler) Cancel(c echo.Context) error {
	const op = "storefront.order_cancel"
	ctx := c.Request().Context()

	var req cancelOrderRequest
	if c.Request().ContentLength != 0 {
		if err := handler.Bind(c, op, &req); err != nil {
			return err
		}
	}

	order, err := h.orders.CancelOrder(ctx, c.Param("id"), domain.ShopperIDFromContext(ctx), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}
