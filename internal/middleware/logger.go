package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WithRequestLogger injects a request-scoped logger into the context and
// writes one access log line per request. Place it after RequestID.
func WithRequestLogger(baseLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lc := baseLogger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if requestID := GetRequestID(r.Context()); requestID != "" {
				lc = lc.Str("request_id", requestID)
			}
			requestLogger := lc.Logger()

			wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(requestLogger.WithContext(r.Context())))

			event := requestLogger.Info()
			if wrapped.statusCode >= http.StatusInternalServerError {
				event = requestLogger.Error()
			}
			event.
				Int("status", wrapped.statusCode).
				Dur("latency", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request")
		})
	}
}

// GetLogger retrieves the request-scoped logger from the context.
// If none was injected, returns the provided fallback, or a disabled logger.
func GetLogger(ctx context.Context, fallback ...zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return zerolog.Nop()
}

// statusWriter wraps http.ResponseWriter to capture the status code and size
type statusWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
