package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersConfig configures security headers
type SecurityHeadersConfig struct {
	// FrameOptions sets X-Frame-Options. Default: DENY
	FrameOptions string

	// ReferrerPolicy sets Referrer-Policy. Default: no-referrer
	ReferrerPolicy string

	// HSTSMaxAge sets Strict-Transport-Security max-age in seconds.
	// Zero disables HSTS, which is the right value for local development.
	HSTSMaxAge int
}

// DefaultSecurityHeadersConfig returns the configuration for a JSON API.
func DefaultSecurityHeadersConfig(env string) SecurityHeadersConfig {
	cfg := SecurityHeadersConfig{
		FrameOptions:   "DENY",
		ReferrerPolicy: "no-referrer",
	}
	if env == "prod" {
		cfg.HSTSMaxAge = 31536000 // 1 year
	}
	return cfg
}

// SecurityHeaders adds security headers to all responses
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Cache-Control", "no-store")
			if config.FrameOptions != "" {
				h.Set("X-Frame-Options", config.FrameOptions)
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.HSTSMaxAge > 0 {
				h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(config.HSTSMaxAge)+"; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
