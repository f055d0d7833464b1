package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	currency      string
}

// NewStripeProvider creates a Stripe billing provider. The client is scoped
// to the provider so tests and multiple keys never share the global stripe.Key.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	httpClient := &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second}
	backend := func(t stripe.SupportedBackend) stripe.Backend {
		return stripe.GetBackendWithConfig(t, &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(int64(config.MaxRetries)),
		})
	}

	return &StripeProvider{
		api: client.New(config.APIKey, &stripe.Backends{
			API:     backend(stripe.APIBackend),
			Connect: backend(stripe.ConnectBackend),
			Uploads: backend(stripe.UploadsBackend),
		}),
		webhookSecret: config.WebhookSecret,
		currency:      config.Currency,
	}, nil
}

// CreatePaymentIntent creates a Stripe payment intent with automatic payment methods.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if params.AmountCents < MinimumAmountCents {
		return nil, ErrAmountTooSmall
	}

	currency := params.Currency
	if currency == "" {
		currency = s.currency
	}

	p := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	p.Context = ctx
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(p)
	if err != nil {
		return nil, convertStripeError(err)
	}
	return convertPaymentIntent(pi), nil
}

// GetPaymentIntent retrieves a Stripe payment intent.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	if paymentIntentID == "" {
		return nil, ErrPaymentIntentNotFound
	}

	p := &stripe.PaymentIntentParams{}
	p.Context = ctx

	pi, err := s.api.PaymentIntents.Get(paymentIntentID, p)
	if err != nil {
		return nil, convertStripeError(err)
	}
	return convertPaymentIntent(pi), nil
}

// CancelPaymentIntent cancels a Stripe payment intent.
func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	if paymentIntentID == "" {
		return ErrPaymentIntentNotFound
	}

	p := &stripe.PaymentIntentCancelParams{}
	p.Context = ctx

	if _, err := s.api.PaymentIntents.Cancel(paymentIntentID, p); err != nil {
		return convertStripeError(err)
	}
	return nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	if err := webhook.ValidatePayload(payload, signature, s.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

// ParseWebhookEvent verifies the signature and maps the event. API version
// mismatches are tolerated; only the fields read by mapEvent matter.
func (s *StripeProvider) ParseWebhookEvent(payload []byte, signature string) (*domain.PaymentEvent, error) {
	if err := s.VerifyWebhookSignature(payload, signature); err != nil {
		return nil, err
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}

	return mapEvent(event)
}

func convertPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}
	if e := pi.LastPaymentError; e != nil {
		out.LastPaymentError = &PaymentError{
			Code:        string(e.Code),
			DeclineCode: string(e.DeclineCode),
			Message:     e.Msg,
		}
	}
	return out
}

func convertStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe request failed: %w", err)
	}

	switch {
	case stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return ErrPaymentIntentNotFound
	case stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState:
		return ErrPaymentIntentNotCancelable
	case stripeErr.Type == stripe.ErrorTypeIdempotency:
		return ErrIdempotencyConflict
	}

	return &StripeError{
		Message:       stripeErr.Msg,
		Code:          string(stripeErr.Code),
		DeclineCode:   string(stripeErr.DeclineCode),
		HTTPStatus:    stripeErr.HTTPStatusCode,
		RequestID:     stripeErr.RequestID,
		OriginalError: err,
	}
}
