package tax_test

import (
	"context"
	"testing"

	"github.com/dukerupert/storefront/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Test_PercentageCalculator_DefaultRate: $25.00 subtotal * 8% = $2.00, shipping untaxed
func Test_PercentageCalculator_DefaultRate(t *testing.T) {
	calc, err := tax.NewPercentageCalculator(dec("0.08"))
	require.NoError(t, err)

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		Subtotal: dec("25.00"),
		Shipping: dec("5.00"),
	})

	require.NoError(t, err)
	assert.True(t, result.Total.Equal(dec("2.00")), "25.00 * 0.08 = 2.00, got %s", result.Total)
	require.Len(t, result.Breakdown, 1, "Should have exactly one breakdown entry")
	assert.Equal(t, "state", result.Breakdown[0].Jurisdiction)
	assert.Equal(t, "Default Sales Tax", result.Breakdown[0].Name)
	assert.True(t, result.Breakdown[0].Rate.Equal(dec("0.08")))
}

// Test_PercentageCalculator_DifferentTaxRates validates calculation accuracy across various rates
func Test_PercentageCalculator_DifferentTaxRates(t *testing.T) {
	tests := []struct {
		name        string
		rate        string
		subtotal    string
		expectedTax string
		explanation string
	}{
		{"zero percent rate", "0", "100.00", "0", "100 * 0 = 0"},
		{"five percent rate", "0.05", "100.00", "5.00", "100 * 0.05 = 5"},
		{"eight point five percent rate", "0.085", "100.00", "8.50", "100 * 0.085 = 8.50"},
		{"half cent rounds away from zero", "0.08", "0.0625", "0.01", "0.0625 * 0.08 = 0.005 -> 0.01"},
		{"sub half cent rounds down", "0.08", "0.06", "0", "0.06 * 0.08 = 0.0048 -> 0.00"},
		{"odd cents", "0.0725", "19.99", "1.45", "19.99 * 0.0725 = 1.449275 -> 1.45"},
		{"one hundred percent rate edge case", "1", "50.00", "50.00", "tax equals subtotal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := tax.NewPercentageCalculator(dec(tt.rate))
			require.NoError(t, err)

			result, err := calc.CalculateTax(context.Background(), tax.TaxParams{Subtotal: dec(tt.subtotal)})

			require.NoError(t, err)
			assert.True(t, result.Total.Equal(dec(tt.expectedTax)), "%s: got %s", tt.explanation, result.Total)
		})
	}
}

func Test_PercentageCalculator_RejectsNegativeInput(t *testing.T) {
	_, err := tax.NewPercentageCalculator(dec("-0.01"))
	assert.ErrorIs(t, err, tax.ErrInvalidTaxRate)

	calc, err := tax.NewPercentageCalculator(dec("0.08"))
	require.NoError(t, err)
	_, err = calc.CalculateTax(context.Background(), tax.TaxParams{Subtotal: dec("-1")})
	assert.ErrorIs(t, err, tax.ErrNegativeSubtotal)
}

func TestNoTaxCalculator_ReturnsZeroTax(t *testing.T) {
	calc := tax.NewNoTaxCalculator()

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		Subtotal: dec("58.00"),
		Shipping: dec("9.99"),
	})

	require.NoError(t, err)
	assert.True(t, result.Total.IsZero())
	assert.Empty(t, result.Breakdown)
}

func TestNew_SelectsCalculator(t *testing.T) {
	zero, err := tax.New(decimal.Zero)
	require.NoError(t, err)
	assert.IsType(t, &tax.NoTaxCalculator{}, zero)

	pct, err := tax.New(dec("0.08"))
	require.NoError(t, err)
	assert.IsType(t, &tax.PercentageCalculator{}, pct)
}
