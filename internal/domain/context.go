// Package domain provides core business types, store contracts and context
// helpers for the storefront.
//
// Context helpers centralize request-scoped data access so that handlers and
// services agree on where the shopper identity and request id live.
package domain

import (
	"context"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// shopperContextKey stores the shopper identity in context.
	shopperContextKey contextKey = iota

	// adminContextKey marks a request as authenticated with the admin API key.
	adminContextKey

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// --- Shopper Context Helpers ---

// NewContextWithShopperID returns a new context with the shopper id attached.
func NewContextWithShopperID(ctx context.Context, shopperID string) context.Context {
	return context.WithValue(ctx, shopperContextKey, shopperID)
}

// ShopperIDFromContext retrieves the shopper id from context.
// Returns empty string if no shopper is present.
func ShopperIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(shopperContextKey).(string)
	return id
}

// RequireShopperID retrieves the shopper id from context, panicking if not present.
// The panic will be caught by the recover middleware in HTTP handlers.
func RequireShopperID(ctx context.Context) string {
	id := ShopperIDFromContext(ctx)
	if id == "" {
		panic("shopper_id required in context but not found")
	}
	return id
}

// --- Admin Context Helpers ---

// NewContextWithAdmin returns a new context flagged as an admin request.
func NewContextWithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminContextKey, true)
}

// IsAdmin returns true if the request was authenticated as admin.
func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(adminContextKey).(bool)
	return ok
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

// HasShopper returns true if there is a shopper in context.
func HasShopper(ctx context.Context) bool {
	return ShopperIDFromContext(ctx) != ""
}
