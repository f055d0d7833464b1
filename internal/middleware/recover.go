package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
)

// Recovery recovers from panics, logs them with the stack, and answers 500.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger := GetLogger(r.Context())
				logger.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				handler.ErrorResponse(w, r, domain.Internal(fmt.Errorf("panic: %v", rec), "middleware.recovery", "panic recovered"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
