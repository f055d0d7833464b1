package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// FlatRateCalculator charges a single flat rate, waived at or above a
// free-shipping threshold. An empty cart ships for free.
type FlatRateCalculator struct {
	flat          decimal.Decimal
	freeThreshold decimal.Decimal
}

// NewFlatRateCalculator creates a flat-rate calculator. A zero threshold
// disables free shipping.
func NewFlatRateCalculator(flat, freeThreshold decimal.Decimal) (*FlatRateCalculator, error) {
	if flat.IsNegative() {
		return nil, ErrNegativeRate
	}
	if freeThreshold.IsNegative() {
		return nil, ErrNegativeThreshold
	}
	return &FlatRateCalculator{flat: flat.Round(2), freeThreshold: freeThreshold}, nil
}

// Quote implements Calculator.
func (c *FlatRateCalculator) Quote(ctx context.Context, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if subtotal.IsNegative() {
		return decimal.Zero, ErrNegativeSubtotal
	}
	if subtotal.IsZero() {
		return decimal.Zero, nil
	}
	if c.freeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(c.freeThreshold) {
		return decimal.Zero, nil
	}
	return c.flat, nil
}
