// Package routes wires handlers and middleware onto an echo instance.
package routes

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/storefront/internal/handler"
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/labstack/echo/v4"
)

// New builds the echo instance with the global middleware stack and every
// route registered.
//
// Global middleware runs request id, trace context, request logger,
// recovery, security headers, then metrics. Body limits and identity checks
// are attached per route. Handler errors are rendered innermost so the
// logger and metrics see the final status.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	security := middleware.DefaultSecurityHeadersConfig(deps.Env)
	if deps.Security != nil {
		security = *deps.Security
	}

	e.Use(
		echo.WrapMiddleware(middleware.RequestID),
		echo.WrapMiddleware(middleware.TraceContext),
		echo.WrapMiddleware(middleware.WithRequestLogger(deps.Logger)),
		echo.WrapMiddleware(middleware.Recovery),
		echo.WrapMiddleware(middleware.SecurityHeaders(security)),
	)
	if deps.Metrics != nil {
		e.Use(echo.WrapMiddleware(deps.Metrics.Middleware))
	}
	e.Use(handler.Errors)

	e.GET("/health", echo.WrapHandler(healthHandler(deps.Health)))
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	RegisterStorefrontRoutes(e, deps.Storefront)
	RegisterAdminRoutes(e, deps.Admin)
	RegisterWebhookRoutes(e, deps.Webhook)

	return e
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
