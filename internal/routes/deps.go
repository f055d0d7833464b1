package routes

import (
	"context"
	"net/http"

	"github.com/dukerupert/storefront/internal/handler/admin"
	"github.com/dukerupert/storefront/internal/handler/storefront"
	"github.com/dukerupert/storefront/internal/handler/webhook"
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/rs/zerolog"
)

// StorefrontDeps contains dependencies for shopper routes
type StorefrontDeps struct {
	CartHandler     *storefront.CartHandler
	CheckoutHandler *storefront.CheckoutHandler
	OrderHandler    *storefront.OrderHandler
	WishlistHandler *storefront.WishlistHandler
}

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	Handler *admin.Handler

	// APIKey guards every /admin route. Empty rejects all admin requests.
	APIKey string
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler *webhook.StripeHandler
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything Register needs to build the HTTP surface.
type Deps struct {
	Logger   zerolog.Logger
	Env      string
	Metrics  *middleware.Metrics
	Health   map[string]HealthCheck
	Security *middleware.SecurityHeadersConfig

	Storefront StorefrontDeps
	Admin      AdminDeps
	Webhook    WebhookDeps
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeJSON(w, status, resp)
	}
}
