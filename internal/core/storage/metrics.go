package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records data source query latency and circuit breaker state.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	queryDuration *prometheus.HistogramVec
	queryTotal    *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
	breakerTrips  *prometheus.CounterVec
}

// NewMetrics registers the data source metrics on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradepulse_datasource_query_duration_seconds",
		Help:    "Duration of data source aggregate queries in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	queryTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepulse_datasource_queries_total",
		Help: "Data source aggregate queries by outcome.",
	}, []string{"source", "result"})
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradepulse_datasource_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
	breakerTrips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepulse_datasource_breaker_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"name", "from", "to"})
	reg.MustRegister(queryDuration, queryTotal, breakerState, breakerTrips)
	return &Metrics{
		queryDuration: queryDuration,
		queryTotal:    queryTotal,
		breakerState:  breakerState,
		breakerTrips:  breakerTrips,
	}
}

// ObserveQuery records one query and its outcome.
func (m *Metrics) ObserveQuery(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.queryDuration.WithLabelValues(source).Observe(d.Seconds())
	m.queryTotal.WithLabelValues(source, result).Inc()
}

// SetBreakerState records a breaker transition.
func (m *Metrics) SetBreakerState(name, from, to string, value float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(value)
	if from != to {
		m.breakerTrips.WithLabelValues(name, from, to).Inc()
	}
}
