package address

import (
	"context"

	"github.com/dukerupert/storefront/internal/domain"
)

// MockValidator is a test implementation of Validator.
type MockValidator struct {
	ValidateFunc func(ctx context.Context, addr domain.Address) (domain.Address, error)
}

// NewMockValidator creates a new mock address validator for testing.
func NewMockValidator() *MockValidator {
	return &MockValidator{}
}

// Validate delegates to the configured function or accepts the address as-is.
func (m *MockValidator) Validate(ctx context.Context, addr domain.Address) (domain.Address, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, addr)
	}
	return addr, nil
}
