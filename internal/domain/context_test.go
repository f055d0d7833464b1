package domain

import (
	"context"
	"testing"
)

func TestShopperContext(t *testing.T) {
	t.Run("ShopperIDFromContext returns empty when no shopper", func(t *testing.T) {
		ctx := context.Background()
		if id := ShopperIDFromContext(ctx); id != "" {
			t.Errorf("expected empty shopper id, got %q", id)
		}
		if HasShopper(ctx) {
			t.Error("HasShopper should be false")
		}
	})

	t.Run("ShopperIDFromContext returns id when set", func(t *testing.T) {
		ctx := NewContextWithShopperID(context.Background(), "shopper-1")
		if id := ShopperIDFromContext(ctx); id != "shopper-1" {
			t.Errorf("expected %q, got %q", "shopper-1", id)
		}
		if !HasShopper(ctx) {
			t.Error("HasShopper should be true")
		}
	})

	t.Run("RequireShopperID panics when no shopper", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic")
			}
		}()
		RequireShopperID(context.Background())
	})

	t.Run("RequireShopperID returns id when set", func(t *testing.T) {
		ctx := NewContextWithShopperID(context.Background(), "shopper-2")
		if id := RequireShopperID(ctx); id != "shopper-2" {
			t.Errorf("expected %q, got %q", "shopper-2", id)
		}
	})
}

func TestAdminContext(t *testing.T) {
	if IsAdmin(context.Background()) {
		t.Error("plain context should not be admin")
	}
	if !IsAdmin(NewContextWithAdmin(context.Background())) {
		t.Error("expected admin context")
	}
}

func TestRequestIDContext(t *testing.T) {
	t.Run("returns empty when not set", func(t *testing.T) {
		if id := RequestIDFromContext(context.Background()); id != "" {
			t.Errorf("expected empty request id, got %q", id)
		}
	})

	t.Run("returns value when set", func(t *testing.T) {
		ctx := NewContextWithRequestID(context.Background(), "req-123")
		if id := RequestIDFromContext(ctx); id != "req-123" {
			t.Errorf("expected %q, got %q", "req-123", id)
		}
	})
}
