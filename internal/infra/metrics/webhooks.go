package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookEventsTotal,
		webhookDuration,
		reconcileTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Stripe webhook deliveries by event type and result.",
		},
		[]string{"type", "result"}, // ok, ignored, duplicate, invalid, error
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stripe_webhook_duration_seconds",
			Help:    "Time spent handling a verified Stripe webhook.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_reconcile_total",
			Help: "Subscription reconciliations by outcome.",
		},
		[]string{"outcome"}, // created, updated, stale, unresolved, error
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

func ObserveWebhookDuration(eventType string, d time.Duration) {
	webhookDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

func IncReconcile(outcome string) {
	reconcileTotal.WithLabelValues(outcome).Inc()
}
