package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobSubmissionsTotal, jobOutcomesTotal, pollTransientTotal, pollAttempts, pollDurationSec)
}

var jobSubmissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enrich_job_submissions_total",
		Help: "Job submissions by action and acceptance mode (async/sync/rejected).",
	},
	[]string{"action", "mode"},
)

var jobOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enrich_job_outcomes_total",
		Help: "Terminal job outcomes by action.",
	},
	[]string{"action", "outcome"},
)

var pollTransientTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "enrich_poll_transient_errors_total",
		Help: "Status queries that failed inside the transient retry window.",
	},
)

var pollAttempts = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "enrich_poll_attempts",
		Help:    "Status queries needed to reach a terminal state.",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 30, 60, 100, 150},
	},
)

var pollDurationSec = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "enrich_poll_duration_seconds",
		Help:    "Wall time spent polling one job, by outcome.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 645},
	},
	[]string{"outcome"},
)

func IncSubmission(action string, mode string) {
	jobSubmissionsTotal.WithLabelValues(norm(action), norm(mode)).Inc()
}

func IncJobOutcome(action string, outcome string) {
	jobOutcomesTotal.WithLabelValues(norm(action), norm(outcome)).Inc()
}

func IncPollTransient() { pollTransientTotal.Inc() }

func ObservePoll(attempts int, elapsed time.Duration, outcome string) {
	pollAttempts.Observe(float64(attempts))
	pollDurationSec.WithLabelValues(norm(outcome)).Observe(elapsed.Seconds())
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
