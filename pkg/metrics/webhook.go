package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// WebhookResponsesTotal counts webhook deliveries by the literal body we answered with.
	WebhookResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "molliebridge",
			Subsystem: "webhook",
			Name:      "responses_total",
			Help:      "Webhook deliveries by response literal",
		},
		[]string{"response"},
	)

	// ReconcileActionsTotal counts which reconciler branch fired per delivery.
	ReconcileActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "molliebridge",
			Subsystem: "webhook",
			Name:      "reconcile_actions_total",
			Help:      "Reconciler transitions by action",
		},
		[]string{"action"},
	)

	ProviderFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "molliebridge",
			Subsystem: "provider",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of payment lookups against the provider API",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

func init() {
	Registry.MustRegister(WebhookResponsesTotal, ReconcileActionsTotal, ProviderFetchDuration)
}
