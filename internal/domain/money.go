package domain

import (
	"github.com/shopspring/decimal"
)

// Totals is the derived monetary breakdown of a cart or order.
// Total always equals Subtotal + Tax + Shipping after rounding.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shippingCost"`
	Total    decimal.Decimal `json:"total"`
}

// RoundMoney rounds to two decimal places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeTotals rounds each figure to the cent and derives the total
// from the rounded parts.
func ComputeTotals(subtotal, tax, shipping decimal.Decimal) Totals {
	s := RoundMoney(subtotal)
	t := RoundMoney(tax)
	sh := RoundMoney(shipping)
	return Totals{
		Subtotal: s,
		Tax:      t,
		Shipping: sh,
		Total:    RoundMoney(s.Add(t).Add(sh)),
	}
}

// ToCents converts a monetary amount to integer minor units.
func ToCents(d decimal.Decimal) int64 {
	return RoundMoney(d).Shift(2).IntPart()
}

// FromCents converts integer minor units to a monetary amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
