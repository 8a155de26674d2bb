package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup results.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultBypass = "bypass"
)

// Metrics records cache effectiveness. A nil *Metrics records nothing.
type Metrics struct {
	lookups     *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	compute     *prometheus.HistogramVec
}

// NewMetrics registers the cache metrics on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepulse_cache_lookups_total",
		Help: "Cache lookups by identity and result.",
	}, []string{"identity", "result"})
	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepulse_cache_store_errors_total",
		Help: "Cache backend failures by stage.",
	}, []string{"stage"})
	compute := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradepulse_cache_compute_duration_seconds",
		Help:    "Duration of computations run on cache misses.",
		Buckets: prometheus.DefBuckets,
	}, []string{"identity"})
	reg.MustRegister(lookups, storeErrors, compute)
	return &Metrics{lookups: lookups, storeErrors: storeErrors, compute: compute}
}

func (m *Metrics) lookup(identity, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(identity, result).Inc()
}

func (m *Metrics) storeError(stage string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) observeCompute(identity string, d time.Duration) {
	if m == nil {
		return
	}
	m.compute.WithLabelValues(identity).Observe(d.Seconds())
}
