package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records processing latency and outcomes for inbound webhooks.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_duration_seconds",
		Help:    "End-to-end processing duration of inbound webhooks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_outcomes_total",
		Help: "Processed webhooks partitioned by outcome.",
	}, []string{"source", "outcome"})
	reg.MustRegister(duration, outcomes)
	return &WebhookMetrics{duration: duration, outcomes: outcomes}
}

// ObserveDuration records the processing duration for the named source.
func (w *WebhookMetrics) ObserveDuration(source string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(source)).Observe(duration.Seconds())
}

// IncOutcome increments the outcome counter for the named source.
func (w *WebhookMetrics) IncOutcome(source, outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}
