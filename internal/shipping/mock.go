package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// MockCalculator is a test implementation of Calculator.
type MockCalculator struct {
	QuoteFunc func(ctx context.Context, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// NewMockCalculator creates a new mock shipping calculator for testing.
func NewMockCalculator() *MockCalculator {
	return &MockCalculator{}
}

// Quote delegates to the configured function or returns free shipping.
func (m *MockCalculator) Quote(ctx context.Context, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, subtotal)
	}
	return decimal.Zero, nil
}
