package middleware

import (
	"context"
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID echoes an upstream X-Request-ID or mints a uuid, then stores it
// on the response and the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(domain.NewContextWithRequestID(r.Context(), id)))
	})
}

func GetRequestID(ctx context.Context) string {
	return domain.RequestIDFromContext(ctx)
}
