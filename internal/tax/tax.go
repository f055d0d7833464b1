package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// Calculator defines the interface for tax calculation.
// Implementations: PercentageCalculator, NoTaxCalculator
type Calculator interface {
	// CalculateTax computes tax for a cart or order.
	// Returns the tax amount rounded to the cent.
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
// Subtotal excludes out-of-stock lines.
type TaxParams struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
}

// TaxResult contains the calculated tax amount and breakdown.
type TaxResult struct {
	Total     decimal.Decimal
	Breakdown []TaxBreakdown
}

// TaxBreakdown represents tax for a single jurisdiction.
type TaxBreakdown struct {
	Jurisdiction string          // "state", "county", "city"
	Name         string          // e.g., "Default Sales Tax"
	Rate         decimal.Decimal // e.g., 0.08 for 8%
	Amount       decimal.Decimal
}
