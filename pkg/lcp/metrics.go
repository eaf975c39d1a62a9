package lcp

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Audit outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
)

// Metrics exports audit counters and latencies to Prometheus. Each Metrics
// owns its registry so that several services can coexist in one process.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	audits   *prometheus.CounterVec
	duration prometheus.Histogram
	lcp      prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewMetrics creates and registers the lcpd collectors, plus the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lcpd_audits_total",
			Help: "Audit requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lcpd_audit_duration_seconds",
			Help:    "Wall time of admitted audits, successful or not.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		lcp: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lcpd_lcp_seconds",
			Help:    "Measured Largest Contentful Paint.",
			Buckets: []float64{0.5, 1, 1.5, 2, 2.5, 3, 4, 5, 7.5, 10, 20},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lcpd_audit_in_flight",
			Help: "1 while an audit holds the gate.",
		}),
	}

	m.registry.MustRegister(
		m.audits,
		m.duration,
		m.lcp,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.audits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeAudit(took time.Duration, lcp float64, ok bool) {
	if m == nil {
		return
	}
	m.duration.Observe(took.Seconds())
	if ok {
		m.lcp.Observe(lcp)
		m.audits.WithLabelValues(OutcomeSuccess).Inc()
		return
	}
	m.audits.WithLabelValues(OutcomeFailure).Inc()
}

func (m *Metrics) setInFlight(v float64) {
	if m == nil {
		return
	}
	m.inFlight.Set(v)
}
