package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// Calculator quotes a shipping cost for a cart or order.
// Implementations can integrate with carriers later; FlatRateCalculator
// covers the store's single-rate policy.
type Calculator interface {
	// Quote returns the shipping cost for the given purchasable subtotal.
	Quote(ctx context.Context, subtotal decimal.Decimal) (decimal.Decimal, error)
}
