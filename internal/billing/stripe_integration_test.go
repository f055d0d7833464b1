//go:build integration
// +build integration

package billing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadTestConfig loads Stripe test credentials from .env.test
func loadTestConfig(t *testing.T) StripeConfig {
	t.Helper()

	if err := godotenv.Load("../../.env.test"); err != nil {
		t.Logf(".env.test not loaded (%v), falling back to environment", err)
	}

	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	if apiKey == "" || apiKey == "sk_test_your_key_here" {
		t.Skip("Skipping integration test: STRIPE_SECRET_KEY not set")
	}

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		webhookSecret = "whsec_placeholder"
	}

	config := StripeConfig{
		APIKey:         apiKey,
		WebhookSecret:  webhookSecret,
		MaxRetries:     2,
		TimeoutSeconds: 30,
	}

	if !config.IsTestMode() {
		t.Fatal("DANGER: Live Stripe key detected! Integration tests must use test mode keys (sk_test_...)")
	}

	return config
}

func TestStripeIntegration_PaymentIntentLifecycle(t *testing.T) {
	provider, err := NewStripeProvider(loadTestConfig(t))
	require.NoError(t, err)

	ctx := context.Background()
	key := "integration_test_" + time.Now().Format("20060102_150405.000")

	created, err := provider.CreatePaymentIntent(ctx, CreatePaymentIntentParams{
		AmountCents:    5000,
		Currency:       "usd",
		Description:    "Integration test payment",
		Metadata:       map[string]string{"shopper_id": "shopper_integration"},
		IdempotencyKey: key,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ClientSecret)
	assert.Equal(t, int64(5000), created.AmountCents)
	assert.Equal(t, "usd", created.Currency)
	assert.Equal(t, "requires_payment_method", created.Status)
	assert.Equal(t, "shopper_integration", created.Metadata["shopper_id"])

	again, err := provider.CreatePaymentIntent(ctx, CreatePaymentIntentParams{
		AmountCents:    5000,
		Currency:       "usd",
		Description:    "Integration test payment",
		Metadata:       map[string]string{"shopper_id": "shopper_integration"},
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID, "idempotency key should return the same intent")

	fetched, err := provider.GetPaymentIntent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)

	require.NoError(t, provider.CancelPaymentIntent(ctx, created.ID))
	assert.ErrorIs(t, provider.CancelPaymentIntent(ctx, created.ID), ErrPaymentIntentNotCancelable)

	_, err = provider.GetPaymentIntent(ctx, "pi_does_not_exist")
	assert.ErrorIs(t, err, ErrPaymentIntentNotFound)

	t.Logf("Created payment intent: %s", created.ID)
}
