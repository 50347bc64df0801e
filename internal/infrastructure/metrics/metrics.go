package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopee_sync"

// Metrics groups the collectors exported by the sync engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	upstreamCalls     *prometheus.CounterVec
	tokenRefreshes    *prometheus.CounterVec
	entitiesFetched   *prometheus.CounterVec
	entitiesPersisted *prometheus.CounterVec
	syncDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Marketplace API calls by endpoint and response class",
		}, []string{"endpoint", "class"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts by outcome",
		}, []string{"outcome"}),
		entitiesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_fetched_total",
			Help:      "Entities obtained from listing or explicit id lists",
		}, []string{"kind"}),
		entitiesPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_persisted_total",
			Help:      "Entities whose raw record upsert succeeded",
		}, []string{"kind"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "integration_sync_duration_seconds",
			Help:      "Duration of one integration sync pass",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"kind", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.upstreamCalls,
			m.tokenRefreshes,
			m.entitiesFetched,
			m.entitiesPersisted,
			m.syncDuration,
		)
	}
	return m
}

// ObserveUpstreamCall counts one classified marketplace response
func (m *Metrics) ObserveUpstreamCall(endpoint, class string) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(endpoint, class).Inc()
}

// ObserveTokenRefresh counts one refresh attempt
func (m *Metrics) ObserveTokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(outcome).Inc()
}

// AddFetched adds n fetched entities of kind
func (m *Metrics) AddFetched(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entitiesFetched.WithLabelValues(kind).Add(float64(n))
}

// AddPersisted adds n persisted entities of kind
func (m *Metrics) AddPersisted(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entitiesPersisted.WithLabelValues(kind).Add(float64(n))
}

// ObserveSync records the duration of one integration pass
func (m *Metrics) ObserveSync(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.WithLabelValues(kind, outcome).Observe(d.Seconds())
}
