// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Outbound delivery attempts by call type and outcome",
		},
		[]string{"call", "outcome"},
	)

	DeliveryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_attempt_duration_seconds",
			Help:    "Duration of a single outbound delivery attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"call"},
	)

	CascadeDispatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_dispatches_total",
			Help: "Total number of cascade dispatch calls",
		},
	)

	CascadeJobsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_jobs_created_total",
			Help: "Cascade jobs newly inserted by dispatch",
		},
	)

	CascadeJobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_jobs_completed_total",
			Help: "Cascade jobs finished by the delivery worker, by result",
		},
		[]string{"result"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment provider events by ledger outcome",
		},
		[]string{"status"},
	)
)

// Outcome labels for DeliveryAttemptsTotal.
const (
	OutcomeSuccess        = "success"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(DeliveryAttemptsTotal)
	prometheus.MustRegister(DeliveryLatency)
	prometheus.MustRegister(CascadeDispatchesTotal)
	prometheus.MustRegister(CascadeJobsCreatedTotal)
	prometheus.MustRegister(CascadeJobsCompletedTotal)
	prometheus.MustRegister(WebhookEventsTotal)
}
