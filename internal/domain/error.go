package domain

import (
	"errors"
	"fmt"
	"maps"
)

// Error codes. The handler package owns the mapping to HTTP status.
const (
	ECONFLICT          = "conflict"           // lost a concurrent stock decrement
	EINTERNAL          = "internal"           // details hidden from callers
	EINVALID           = "invalid"            // bad input
	ENOTFOUND          = "not_found"          // unknown product, line or order
	EUNAUTHORIZED      = "unauthorized"       // no shopper identity or api key
	EUNAVAILABLE       = "unavailable"        // product exists but is deactivated
	EINSUFFICIENTSTOCK = "insufficient_stock" // quantity exceeds live stock
	EINVALIDOP         = "invalid_operation"  // forbidden in the current order state
	EEMPTYCART         = "empty_cart"         // checkout with nothing purchasable
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is a coded failure returned by services. Message and Details are
// safe to show to shoppers; Op and Err are for logs.
type Error struct {
	Code    string
	Message string
	Op      string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compares code and message, so sentinels copied by WithOp or
// WithDetail still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code && e.Message == t.Message
}

// WithOp returns a copy tagged with op.
func (e *Error) WithOp(op string) *Error {
	c := *e
	c.Op = op
	c.Details = maps.Clone(e.Details)
	return &c
}

// WithDetail returns a copy carrying one more detail entry.
func (e *Error) WithDetail(key, value string) *Error {
	c := *e
	c.Details = maps.Clone(e.Details)
	if c.Details == nil {
		c.Details = map[string]string{}
	}
	c.Details[key] = value
	return &c
}

// ErrorCode returns the code of err, EINVALID for validation errors and
// EINTERNAL for anything else. A nil error has no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}
	return EINTERNAL
}

// ErrorMessage returns the shopper-facing message. Internal and unknown
// errors collapse to a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return internalMessage
		}
		return e.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "Validation failed"
	}
	return internalMessage
}

// ErrorDetails returns the details of a non-internal domain error.
func ErrorDetails(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Details
	}
	return nil
}

// ErrorOp returns the operation recorded on err, if any.
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Op
	}
	return ""
}

func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// ValidationError collects per-field failures, keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	var msg string
	if len(e.Fields) == 1 {
		for field, m := range e.Fields {
			msg = field + ": " + m
		}
	} else {
		msg = fmt.Sprintf("validation failed for %d fields", len(e.Fields))
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError records field on err when it is already a ValidationError
// and starts a new one otherwise.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return &ValidationError{Fields: map[string]string{field: message}}
}

// GetValidationFields returns the field map of a ValidationError, or nil.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// Storage sentinels. Services translate these; callers never see them.
var (
	ErrNotFoundInStore      = errors.New("store: not found")
	ErrStockConflict        = errors.New("store: stock conflict")
	ErrDuplicateOrderNumber = errors.New("store: duplicate order number")
)

// NotFound reports a missing resource and records its id as "<resource>_id".
func NotFound(op, resource, id string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]string{resource + "_id": id},
	}
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func InvalidOperation(op, message string) error {
	return &Error{Code: EINVALIDOP, Op: op, Message: message}
}

// Internal wraps err; shoppers only ever see the generic message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
