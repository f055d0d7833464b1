package address_test

import (
	"context"
	"strings"
	"testing"

	"github.com/dukerupert/storefront/internal/address"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAddress() domain.Address {
	return domain.Address{
		Name:       "Ada Lovelace",
		Line1:      "123 Main St",
		City:       "Seattle",
		State:      "WA",
		PostalCode: "98101",
		Country:    "US",
	}
}

func TestBasicValidator_AcceptsCompleteAddress(t *testing.T) {
	v := address.NewBasicValidator()

	in := validAddress()
	in.City = "  Seattle "
	in.Country = "us"

	got, err := v.Validate(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, "Seattle", got.City)
	assert.Equal(t, "US", got.Country)
}

func TestBasicValidator_ReportsEachMissingField(t *testing.T) {
	v := address.NewBasicValidator()

	tests := []struct {
		name   string
		mutate func(*domain.Address)
		fields []string
	}{
		{"missing line1", func(a *domain.Address) { a.Line1 = "" }, []string{"line1"}},
		{"missing city", func(a *domain.Address) { a.City = "   " }, []string{"city"}},
		{"missing state and postal code", func(a *domain.Address) {
			a.State = ""
			a.PostalCode = ""
		}, []string{"state", "postalCode"}},
		{"missing country", func(a *domain.Address) { a.Country = "" }, []string{"country"}},
		{"everything missing", func(a *domain.Address) { *a = domain.Address{} },
			[]string{"line1", "city", "state", "postalCode", "country"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := validAddress()
			tt.mutate(&addr)

			_, err := v.Validate(context.Background(), addr)

			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			fields := domain.GetValidationFields(err)
			assert.Len(t, fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
				assert.Equal(t, f+" is required", fields[f])
			}
		})
	}
}

func TestBasicValidator_RejectsOverlongPostalCode(t *testing.T) {
	v := address.NewBasicValidator()

	addr := validAddress()
	addr.PostalCode = strings.Repeat("9", 21)

	_, err := v.Validate(context.Background(), addr)

	require.Error(t, err)
	assert.Equal(t, "postalCode must be at most 20 characters", domain.GetValidationFields(err)["postalCode"])
}
