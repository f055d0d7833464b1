// Package handler holds the JSON error contract shared by the HTTP
// handlers and middleware.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
// Unknown codes map to 500.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID, domain.EEMPTYCART:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT, domain.EUNAVAILABLE, domain.EINSUFFICIENTSTOCK, domain.EINVALIDOP:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorPayload is the body of every error response.
type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorEnvelope wraps ErrorPayload as {"error": {...}}.
type ErrorEnvelope struct {
	Error ErrorPayload `json:"error"`
}

// ErrorBody builds an envelope for errors that do not come from the domain.
func ErrorBody(code, message string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorPayload{Code: code, Message: message}}
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse writes err as a JSON error response. Internal errors are
// logged with their cause and answered with a generic message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("op", domain.ErrorOp(err)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("internal error")
	} else {
		logger.Debug().
			Str("code", code).
			Str("op", domain.ErrorOp(err)).
			Str("reason", domain.ErrorMessage(err)).
			Msg("request rejected")
	}

	WriteJSON(w, status, ErrorEnvelope{Error: ErrorPayload{
		Code:    code,
		Message: domain.ErrorMessage(err),
		Fields:  domain.GetValidationFields(err),
		Details: domain.ErrorDetails(err),
	}})
}

// HTTPErrorHandler is the echo error handler. Router errors such as 404 and
// 405 keep their status; everything else goes through ErrorResponse.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && he.Code < http.StatusInternalServerError {
			message = m
		}
		WriteJSON(c.Response(), he.Code, ErrorBody(httpErrorCode(he.Code), message))
		return
	}

	ErrorResponse(c.Response(), c.Request(), err)
}

// Errors turns a handler error into a response before the surrounding
// net/http middleware finishes, so access logs and metrics see the final
// status.
func Errors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := next(c); err != nil {
			c.Error(err)
		}
		return nil
	}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	}
	if status >= http.StatusInternalServerError {
		return domain.EINTERNAL
	}
	return domain.EINVALID
}

// Bind decodes a JSON request body into v. Malformed bodies are invalid
// input; bodies over the size limit keep their 413.
func Bind(c echo.Context, op string, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return domain.Invalid(op, "Request body must be valid JSON")
	}
	return nil
}
