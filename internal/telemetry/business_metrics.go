package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// BusinessMetrics holds Prometheus metrics for the cart, order and payment
// pipeline. A nil *BusinessMetrics is valid and records nothing.
type BusinessMetrics struct {
	// Cart
	CartMutations *prometheus.CounterVec

	// Orders
	OrdersCreated   prometheus.Counter
	OrdersCancelled *prometheus.CounterVec
	OrderValue      prometheus.Histogram
	OrderRejected   *prometheus.CounterVec
	StockConflicts  prometheus.Counter

	// Payments
	PaymentIntents *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec

	// Side channels
	NotificationsFailed *prometheus.CounterVec

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

// NewBusinessMetrics registers the business collectors on reg under
// <namespace>_business_*. Tests pass a fresh registry.
func NewBusinessMetrics(reg prometheus.Registerer, namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "storefront"
	}
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "business", Name: name, Help: help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "business", Name: name, Help: help,
		}, labels)
	}

	return &BusinessMetrics{
		CartMutations: counterVec("cart_mutations_total", "Cart mutations by action and result", "action", "result"),

		OrdersCreated:   counter("orders_created_total", "Orders committed"),
		OrdersCancelled: counterVec("orders_cancelled_total", "Orders cancelled by source", "source"),
		OrderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "order_value_dollars",
			Help:      "Order total at creation",
			Buckets:   []float64{10, 25, 50, 75, 100, 150, 200, 500, 1000},
		}),
		OrderRejected:  counterVec("orders_rejected_total", "Order attempts rejected, by error code", "code"),
		StockConflicts: counter("stock_conflicts_total", "Conditional stock decrements that lost a race"),

		PaymentIntents: counterVec("payment_intents_total", "Payment intents requested from the gateway", "result"),

		WebhookReceived:  counterVec("webhook_received_total", "Verified webhook events", "kind"),
		WebhookProcessed: counterVec("webhook_processed_total", "Webhook events by outcome", "kind", "processed"),
		WebhookFailed:    counterVec("webhook_failed_total", "Webhooks rejected or failed during reconciliation", "reason"),

		NotificationsFailed: counterVec("notifications_failed_total", "Notification or cache invalidation publishes that failed", "kind"),

		JobsProcessed: counterVec("jobs_processed_total", "Background job runs", "job_type"),
		JobsFailed:    counterVec("jobs_failed_total", "Background job failures", "job_type"),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "business",
			Name:      "job_duration_seconds",
			Help:      "Background job execution duration",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job_type"}),
	}
}

// CartMutation records a cart change.
func (m *BusinessMetrics) CartMutation(action string, err error) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(action, result(err)).Inc()
}

// OrderCreated records a committed order and its total.
func (m *BusinessMetrics) OrderCreated(total decimal.Decimal) {
	if m == nil {
		return
	}
	m.OrdersCreated.Inc()
	m.OrderValue.Observe(total.InexactFloat64())
}

// OrderRejectedWith records a rejected order attempt by error code.
func (m *BusinessMetrics) OrderRejectedWith(code string) {
	if m == nil {
		return
	}
	m.OrderRejected.WithLabelValues(code).Inc()
}

// OrderCancelled records a cancellation by source.
func (m *BusinessMetrics) OrderCancelled(source string) {
	if m == nil {
		return
	}
	m.OrdersCancelled.WithLabelValues(source).Inc()
}

// StockConflict records a lost conditional decrement.
func (m *BusinessMetrics) StockConflict() {
	if m == nil {
		return
	}
	m.StockConflicts.Inc()
}

// PaymentIntent records a gateway intent request.
func (m *BusinessMetrics) PaymentIntent(err error) {
	if m == nil {
		return
	}
	m.PaymentIntents.WithLabelValues(result(err)).Inc()
}

// Webhook records a reconciled webhook event.
func (m *BusinessMetrics) Webhook(kind string, processed bool) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(kind).Inc()
	m.WebhookProcessed.WithLabelValues(kind, strconv.FormatBool(processed)).Inc()
}

// WebhookFailure records a rejected or failed webhook.
func (m *BusinessMetrics) WebhookFailure(reason string) {
	if m == nil {
		return
	}
	m.WebhookFailed.WithLabelValues(reason).Inc()
}

// NotificationFailed records a swallowed side-channel failure.
func (m *BusinessMetrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.NotificationsFailed.WithLabelValues(kind).Inc()
}

// JobRun records one background job execution.
func (m *BusinessMetrics) JobRun(job string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(job).Inc()
	m.JobDuration.WithLabelValues(job).Observe(seconds)
	if err != nil {
		m.JobsFailed.WithLabelValues(job).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
