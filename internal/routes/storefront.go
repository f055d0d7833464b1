package routes

import (
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterStorefrontRoutes registers all shopper routes. Every one of them
// requires the X-Shopper-ID header.
//
// The routes share a root prefix with /health and /webhooks, so middleware
// is attached per route rather than through a group.
func RegisterStorefrontRoutes(e *echo.Echo, deps StorefrontDeps) {
	shopper := []echo.MiddlewareFunc{
		echo.WrapMiddleware(middleware.MaxBodySize()),
		echo.WrapMiddleware(middleware.RequireShopper),
	}

	// Cart
	e.GET("/cart", deps.CartHandler.View, shopper...)
	e.DELETE("/cart", deps.CartHandler.Clear, shopper...)
	e.POST("/cart/items", deps.CartHandler.Add, shopper...)
	e.PUT("/cart/items/:productId", deps.CartHandler.Update, shopper...)
	e.DELETE("/cart/items/:productId", deps.CartHandler.Remove, shopper...)

	// Checkout
	e.POST("/checkout/payment-intent", deps.CheckoutHandler.CreatePaymentIntent, shopper...)

	// Orders
	e.POST("/orders", deps.OrderHandler.Create, shopper...)
	e.GET("/orders", deps.OrderHandler.List, shopper...)
	e.GET("/orders/:id", deps.OrderHandler.Get, shopper...)
	e.POST("/orders/:id/cancel", deps.OrderHandler.Cancel, shopper...)

	// Wishlist
	e.GET("/wishlist", deps.WishlistHandler.View, shopper...)
	e.POST("/wishlist", deps.WishlistHandler.Add, shopper...)
	e.DELETE("/wishlist/:productId", deps.WishlistHandler.Remove, shopper...)
}
