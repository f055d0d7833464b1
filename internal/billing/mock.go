package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/google/uuid"
)

// MockProvider keeps payment intents in memory. It backs tests and local
// development when no Stripe key is configured. Webhook payloads are
// domain.PaymentEvent values encoded as JSON.
type MockProvider struct {
	// Optional overrides; nil keeps the in-memory behavior.
	CreatePaymentIntentFunc    func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)
	CancelPaymentIntentFunc    func(ctx context.Context, paymentIntentID string) error
	VerifyWebhookSignatureFunc func(payload []byte, signature string) error

	PaymentIntents map[string]*PaymentIntent
	CallLog        []string

	mu sync.Mutex
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents: make(map[string]*PaymentIntent),
		CallLog:        []string{},
	}
}

func (m *MockProvider) log(format string, args ...any) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

// Calls returns a copy of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// CreatePaymentIntent enforces the minimum charge and replays intents for a
// repeated idempotency key and amount.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.log("CreatePaymentIntent(%d, %s)", params.AmountCents, params.Currency)

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}

	if params.AmountCents < MinimumAmountCents {
		return nil, ErrAmountTooSmall
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if params.IdempotencyKey != "" {
		for _, pi := range m.PaymentIntents {
			if pi.Metadata["idempotency_key"] == params.IdempotencyKey && pi.AmountCents == params.AmountCents {
				return pi, nil
			}
		}
	}

	metadata := maps.Clone(params.Metadata)
	if metadata == nil {
		metadata = map[string]string{}
	}
	if params.IdempotencyKey != "" {
		metadata["idempotency_key"] = params.IdempotencyKey
	}

	id := "pi_" + uuid.NewString()
	pi := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString(),
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}

	m.PaymentIntents[pi.ID] = pi
	return pi, nil
}

func (m *MockProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	m.log("GetPaymentIntent(%s)", paymentIntentID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if pi, ok := m.PaymentIntents[paymentIntentID]; ok {
		return pi, nil
	}
	return nil, ErrPaymentIntentNotFound
}

// CancelPaymentIntent refuses intents that already succeeded or were canceled.
func (m *MockProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	m.log("CancelPaymentIntent(%s)", paymentIntentID)

	if m.CancelPaymentIntentFunc != nil {
		return m.CancelPaymentIntentFunc(ctx, paymentIntentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pi, ok := m.PaymentIntents[paymentIntentID]
	switch {
	case !ok:
		return ErrPaymentIntentNotFound
	case pi.Status == "succeeded", pi.Status == "canceled":
		return ErrPaymentIntentNotCancelable
	}
	pi.Status = "canceled"
	return nil
}

// VerifyWebhookSignature accepts any non-empty signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string) error {
	m.log("VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature)
	}
	if signature == "" {
		return ErrInvalidWebhookSignature
	}
	return nil
}

func (m *MockProvider) ParseWebhookEvent(payload []byte, signature string) (*domain.PaymentEvent, error) {
	if err := m.VerifyWebhookSignature(payload, signature); err != nil {
		return nil, err
	}

	var event domain.PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}
	return &event, nil
}

var (
	_ Provider = (*MockProvider)(nil)
	_ Provider = (*StripeProvider)(nil)
)
