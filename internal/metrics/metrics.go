package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "washhub",
			Name:      "webhook_events_total",
			Help:      "Stripe webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	assignmentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "washhub",
			Name:      "assignment_runs_total",
			Help:      "Auto-assignment runs by outcome.",
		},
		[]string{"outcome"},
	)

	assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "washhub",
			Name:      "assignments_total",
			Help:      "Per-booking assignment attempts by outcome.",
		},
		[]string{"outcome"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "washhub",
			Name:      "assignment_run_duration_seconds",
			Help:      "Duration of auto-assignment runs.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "washhub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(webhookEvents, assignmentRuns, assignments, runDuration, httpRequests)
	})
}

// IncWebhookEvent increments the webhook event counter.
func IncWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncAssignmentRun increments the run counter for an outcome label.
func IncAssignmentRun(outcome string) {
	assignmentRuns.WithLabelValues(outcome).Inc()
}

// IncAssignment increments the per-booking assignment counter.
func IncAssignment(outcome string) {
	assignments.WithLabelValues(outcome).Inc()
}

// ObserveRunDuration records an assignment run duration in seconds.
func ObserveRunDuration(seconds float64) {
	runDuration.Observe(seconds)
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
