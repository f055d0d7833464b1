package tax

import "github.com/dukerupert/storefront/internal/domain"

var (
	ErrInvalidTaxRate   = &domain.Error{Code: domain.EINVALID, Message: "Tax rate must not be negative"}
	ErrNegativeSubtotal = &domain.Error{Code: domain.EINVALID, Message: "Subtotal must not be negative"}
)
