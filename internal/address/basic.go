package address

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
)

// BasicValidator performs format validation without external API calls,
// driven by the validate tags on domain.Address.
type BasicValidator struct {
	validate *validator.Validate
}

// NewBasicValidator creates a new basic address validator.
func NewBasicValidator() *BasicValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so callers can point at form inputs.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BasicValidator{validate: v}
}

// Validate trims whitespace, upper-cases the country, then checks tags.
func (v *BasicValidator) Validate(ctx context.Context, addr domain.Address) (domain.Address, error) {
	const op = "address.validate"

	addr = normalize(addr)

	err := v.validate.StructCtx(ctx, addr)
	if err == nil {
		return addr, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return addr, domain.Internal(err, op, "address validation failed")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return addr, &domain.ValidationError{Op: op, Fields: fields}
}

func normalize(a domain.Address) domain.Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	return a
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
