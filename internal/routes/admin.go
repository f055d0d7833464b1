package routes

import (
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterAdminRoutes registers the operator routes behind the API key.
func RegisterAdminRoutes(e *echo.Echo, deps AdminDeps) {
	admin := e.Group("/admin",
		echo.WrapMiddleware(middleware.MaxBodySize()),
		echo.WrapMiddleware(middleware.RequireAPIKey(deps.APIKey)),
	)

	admin.POST("/products/:id/stock", deps.Handler.AdjustStock)
	admin.POST("/orders/:id/status", deps.Handler.AdvanceStatus)
}
