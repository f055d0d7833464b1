package billing

import (
	"errors"
	"strings"
)

// StripeConfig configures StripeProvider. Zero values for Currency,
// MaxRetries and TimeoutSeconds fall back to usd, 3 and 30.
type StripeConfig struct {
	APIKey         string // sk_test_... or sk_live_...
	WebhookSecret  string // whsec_...
	Currency       string
	MaxRetries     int
	TimeoutSeconds int
}

func (c *StripeConfig) Validate() error {
	switch {
	case c.APIKey == "":
		return errors.New("stripe: API key is required")
	case c.WebhookSecret == "":
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode reports whether the key is a test-mode secret key.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}

func (c *StripeConfig) applyDefaults() {
	if c.Currency == "" {
		c.Currency = "usd"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}
