package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/isdmx/safebox/result"
)

const namespace = "safebox"

// Collector holds the engine's Prometheus instruments
type Collector struct {
	submissions       *prometheus.CounterVec
	submissionSeconds *prometheus.HistogramVec
	operations        prometheus.Histogram
	sessionsActive    *prometheus.GaugeVec
	provisions        *prometheus.CounterVec
	provisionSeconds  *prometheus.HistogramVec
	teardowns         *prometheus.CounterVec
}

// NewCollector registers the instruments with reg. A nil registerer uses
// the global default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of submissions by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		submissionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Wall time of a submission in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		operations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluated_operations",
				Help:      "Operations charged per local submission",
				Buckets:   prometheus.ExponentialBuckets(10, 10, 8),
			},
		),
		sessionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Remote sandbox sessions currently provisioned",
			},
			[]string{"backend"},
		),
		provisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_provisions_total",
				Help:      "Session provisioning attempts by backend and status",
			},
			[]string{"backend", "status"},
		),
		provisionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_provision_duration_seconds",
				Help:      "Time to provision a remote sandbox session",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		teardowns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_teardowns_total",
				Help:      "Session teardowns by backend and status",
			},
			[]string{"backend", "status"},
		),
	}
}

// ObserveSubmission records a finished submission
func (c *Collector) ObserveSubmission(backend string, res *result.Result) {
	if c == nil || res == nil {
		return
	}
	c.submissions.WithLabelValues(backend, res.Outcome()).Inc()
	c.submissionSeconds.WithLabelValues(backend).Observe(res.Duration.Seconds())
	if res.Operations > 0 {
		c.operations.Observe(float64(res.Operations))
	}
}

// ObserveProvision records one provisioning attempt
func (c *Collector) ObserveProvision(backend string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.provisions.WithLabelValues(backend, "error").Inc()
		return
	}
	c.provisions.WithLabelValues(backend, "ok").Inc()
	c.provisionSeconds.WithLabelValues(backend).Observe(elapsed.Seconds())
	c.sessionsActive.WithLabelValues(backend).Inc()
}

// ObserveTeardown records the release of a provisioned session
func (c *Collector) ObserveTeardown(backend string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.teardowns.WithLabelValues(backend, status).Inc()
	c.sessionsActive.WithLabelValues(backend).Dec()
}
