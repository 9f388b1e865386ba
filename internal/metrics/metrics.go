package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonapedidos_billing_webhook_events_total",
			Help: "Billing webhook events by provider, event name and outcome",
		},
		[]string{"provider", "event", "outcome"}, // processed, ignored, failed, rejected
	)

	BillingTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonapedidos_billing_transitions_total",
			Help: "Tenant billing status writes by source and new status",
		},
		[]string{"source", "status"},
	)

	SyncErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zonapedidos_billing_sync_errors_total",
			Help: "Per-tenant failures during subscription sync sweeps",
		},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zonapedidos_gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "op", "result"},
	)
)
