package shipping_test

import (
	"context"
	"testing"

	"github.com/dukerupert/storefront/internal/shipping"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFlatRateCalculator_Quote(t *testing.T) {
	calc, err := shipping.NewFlatRateCalculator(dec("9.99"), dec("100"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		subtotal string
		want     string
	}{
		{"empty cart ships free", "0", "0"},
		{"below threshold pays flat rate", "25.50", "9.99"},
		{"just below threshold", "99.99", "9.99"},
		{"at threshold ships free", "100.00", "0"},
		{"above threshold ships free", "250", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Quote(context.Background(), dec(tt.subtotal))
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "Quote(%s) = %s, want %s", tt.subtotal, got, tt.want)
		})
	}
}

func TestFlatRateCalculator_ZeroThresholdDisablesFreeShipping(t *testing.T) {
	calc, err := shipping.NewFlatRateCalculator(dec("5"), decimal.Zero)
	require.NoError(t, err)

	got, err := calc.Quote(context.Background(), dec("10000"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("5")))
}

func TestFlatRateCalculator_RejectsNegatives(t *testing.T) {
	_, err := shipping.NewFlatRateCalculator(dec("-1"), dec("100"))
	assert.ErrorIs(t, err, shipping.ErrNegativeRate)

	_, err = shipping.NewFlatRateCalculator(dec("1"), dec("-100"))
	assert.ErrorIs(t, err, shipping.ErrNegativeThreshold)

	calc, err := shipping.NewFlatRateCalculator(dec("1"), dec("100"))
	require.NoError(t, err)
	_, err = calc.Quote(context.Background(), dec("-0.01"))
	assert.ErrorIs(t, err, shipping.ErrNegativeSubtotal)
}
