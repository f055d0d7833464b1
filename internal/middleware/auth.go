package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
)

const (
	// ShopperIDHeader carries the shopper identity issued by the session layer.
	ShopperIDHeader = "X-Shopper-ID"

	// APIKeyHeader carries the admin API key.
	APIKeyHeader = "X-API-Key"
)

// RequireShopper reads the shopper identity from X-Shopper-ID and adds it
// to the request context. Requests without one get 401.
func RequireShopper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shopperID := strings.TrimSpace(r.Header.Get(ShopperIDHeader))
		if shopperID == "" {
			handler.ErrorResponse(w, r, domain.Unauthorized("middleware.require_shopper", "Shopper identity required"))
			return
		}

		ctx := domain.NewContextWithShopperID(r.Context(), shopperID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAPIKey ensures the request carries the admin API key, returning 401
// if not. An empty configured key rejects every request.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(APIKeyHeader)
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(given), []byte(apiKey)) != 1 {
				logger := GetLogger(r.Context())
				logger.Warn().Msg("admin request with missing or invalid API key")
				handler.ErrorResponse(w, r, domain.Unauthorized("middleware.require_api_key", "Valid API key required"))
				return
			}

			ctx := domain.NewContextWithAdmin(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
