package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// PercentageCalculator calculates tax using a simple percentage rate.
type PercentageCalculator struct {
	rate decimal.Decimal // e.g., 0.08 for 8%
}

// NewPercentageCalculator creates a new percentage-based tax calculator.
// Returns ErrInvalidTaxRate if rate is negative.
func NewPercentageCalculator(rate decimal.Decimal) (*PercentageCalculator, error) {
	if rate.IsNegative() {
		return nil, ErrInvalidTaxRate
	}
	return &PercentageCalculator{rate: rate}, nil
}

// CalculateTax computes round(subtotal * rate, 2). Shipping is not taxed.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	if params.Subtotal.IsNegative() {
		return nil, ErrNegativeSubtotal
	}

	amount := params.Subtotal.Mul(c.rate).Round(2)
	return &TaxResult{
		Total: amount,
		Breakdown: []TaxBreakdown{
			{
				Jurisdiction: "state",
				Name:         "Default Sales Tax",
				Rate:         c.rate,
				Amount:       amount,
			},
		},
	}, nil
}
