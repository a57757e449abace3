package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts Stripe webhook deliveries by event type and outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flyrpro",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Total Stripe webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flyrpro",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// EntitlementMergesTotal counts merge-policy outcomes by provider source.
	EntitlementMergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flyrpro",
		Subsystem: "billing",
		Name:      "entitlement_merges_total",
		Help:      "Merge policy outcomes (applied/rejected) by update source.",
	}, []string{"source", "outcome"})
)
