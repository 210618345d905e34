package request

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records controller activity in Prometheus. A nil *Metrics is
// valid and records nothing. Series are labelled by controller name,
// not by cache key, to keep cardinality bounded.
type Metrics struct {
	executions *prometheus.CounterVec
	retries    *prometheus.CounterVec
	cacheHits  *prometheus.CounterVec
	superseded *prometheus.CounterVec
	inFlight   *prometheus.GaugeVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the controller collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_request_executions_total",
				Help: "Executions that reached the request function, by outcome",
			},
			[]string{"name", "outcome"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_request_retries_total",
				Help: "Retries scheduled after a failed call",
			},
			[]string{"name"},
		),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_request_cache_hits_total",
				Help: "Executions answered from a fresh cache entry",
			},
			[]string{"name"},
		),
		superseded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_request_superseded_total",
				Help: "Executions discarded because a newer one started",
			},
			[]string{"name"},
		),
		inFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_request_in_flight",
				Help: "Executions currently waiting on the request function",
			},
			[]string{"name"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchkit_request_duration_seconds",
				Help:    "Execution latency including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"name"},
		),
	}
}

func (m *Metrics) recordExecution(name, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(name, outcome).Inc()
	m.duration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) recordRetry(name string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(name).Inc()
}

func (m *Metrics) recordCacheHit(name string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(name).Inc()
}

func (m *Metrics) recordSuperseded(name string) {
	if m == nil {
		return
	}
	m.superseded.WithLabelValues(name).Inc()
}

func (m *Metrics) trackInFlight(name string) func() {
	if m == nil {
		return func() {}
	}
	g := m.inFlight.WithLabelValues(name)
	g.Inc()
	return g.Dec
}
