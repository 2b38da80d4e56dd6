package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the reconciliation paths. SwallowedErrors is the alerting
// hook for the policy of acknowledging webhooks 2xx even when processing
// fails internally: the failure must surface somewhere, and this is where.
type Metrics struct {
	WebhookReceived  *prometheus.CounterVec
	WebhookDuplicate *prometheus.CounterVec
	WebhookRejected  *prometheus.CounterVec
	SwallowedErrors  *prometheus.CounterVec
	UnknownStatus    *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	StatusApplied    *prometheus.CounterVec
}

// NewMetrics registers the reconciliation metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhookReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_received_total",
			Help: "Inbound webhook events by provider.",
		}, []string{"provider"}),
		WebhookDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_duplicate_total",
			Help: "Webhook events dropped by the idempotency ledger.",
		}, []string{"provider"}),
		WebhookRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_rejected_total",
			Help: "Webhook events rejected before processing (auth, malformed).",
		}, []string{"provider", "reason"}),
		SwallowedErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_errors_swallowed_total",
			Help: "Internal processing failures acknowledged 2xx to the provider.",
		}, []string{"provider"}),
		UnknownStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_status_unknown_total",
			Help: "Provider status strings with no canonical mapping.",
		}, []string{"provider"}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_requests_total",
			Help: "Outbound courier API calls by provider and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		StatusApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "order_status_applied_total",
			Help: "Canonical order status transitions applied.",
		}, []string{"status"}),
	}
}

// NewNopMetrics returns metrics bound to a throwaway registry, for tests.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
