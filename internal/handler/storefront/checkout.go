package storefront

import (
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/labstack/echo/v4"
)

// CheckoutHandler starts payment for the shopper's cart.
type CheckoutHandler struct {
	checkout domain.CheckoutService
}

func NewCheckoutHandler(checkout domain.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// CreatePaymentIntent handles POST /checkout/payment-intent. The browser
// confirms the returned client secret, then posts the order.
func (h *CheckoutHandler) CreatePaymentIntent(c echo.Context) error {
	ctx := c.Request().Context()
	intent, err := h.checkout.CreatePaymentIntent(ctx, domain.ShopperIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, intent)
}
