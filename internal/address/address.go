package address

import (
	"context"

	"github.com/dukerupert/storefront/internal/domain"
)

// Validator defines the interface for address validation.
// Implementations can use external APIs like USPS, Lob, SmartyStreets, etc.
// BasicValidator checks required fields and lengths only.
type Validator interface {
	// Validate checks that an address has every required field.
	// Returns the normalized address, or a *domain.ValidationError naming
	// each missing or malformed field.
	Validate(ctx context.Context, addr domain.Address) (domain.Address, error)
}
