package shipping

import "github.com/dukerupert/storefront/internal/domain"

var (
	ErrNegativeRate      = &domain.Error{Code: domain.EINVALID, Message: "Shipping rate must not be negative"}
	ErrNegativeThreshold = &domain.Error{Code: domain.EINVALID, Message: "Free shipping threshold must not be negative"}
	ErrNegativeSubtotal  = &domain.Error{Code: domain.EINVALID, Message: "Subtotal must not be negative"}
)
