// Package metrics exposes the process-wide Prometheus collectors. Services
// register their own observations; every binary serves them on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsSubmitted counts accepted submit-job requests.
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagent_jobs_submitted_total",
		Help: "Jobs accepted onto the main queue.",
	})

	// JobsProcessed counts finished jobs by outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsagent_jobs_processed_total",
		Help: "Jobs finished by the worker, labeled by outcome.",
	}, []string{"outcome"})

	// JobDuration tracks end-to-end pipeline time per outcome.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsagent_job_duration_seconds",
		Help:    "End-to-end pipeline duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"outcome"})

	// QueueDepth is the current length of the main and dead-letter lists.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "newsagent_queue_depth",
		Help: "Current queue depth, labeled main or dlq.",
	}, []string{"queue"})

	// URLsDiscovered counts candidate URLs found on listing pages.
	URLsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagent_urls_discovered_total",
		Help: "Candidate article URLs extracted from listing pages.",
	})

	// URLsSubmitted counts discovered URLs successfully handed to the Job API.
	URLsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagent_urls_submitted_total",
		Help: "Discovered URLs submitted as jobs.",
	})

	// WebhookDeliveries counts terminal webhook posts by result.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsagent_webhook_deliveries_total",
		Help: "Webhook delivery attempts, labeled accepted or failed.",
	}, []string{"result"})
)

// Outcome labels for JobsProcessed and JobDuration.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCrashed   = "crashed"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
