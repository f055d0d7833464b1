package routes

import (
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes have no shopper or API key middleware. Each webhook handler
// verifies the request signature itself.
func RegisterWebhookRoutes(e *echo.Echo, deps WebhookDeps) {
	hooks := e.Group("/webhooks", echo.WrapMiddleware(middleware.MaxBodySize(middleware.WebhookMaxBodySize)))
	hooks.POST("/stripe", deps.StripeHandler.HandleWebhook)
}
