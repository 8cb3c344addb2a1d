package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/cache"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// Metrics groups the inventory collectors. A nil *Metrics records nothing.
type Metrics struct {
	cacheRequests *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics creates and registers the inventory collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_cache_requests_total",
			Help: "Cache lookups per slot, labelled hit or miss.",
		}, []string{"slot", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_fetch_duration_seconds",
			Help:    "Time spent recomputing a cache slot from its sources.",
			Buckets: prometheus.DefBuckets,
		}, []string{"slot"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_fetch_errors_total",
			Help: "Failed slot recomputations.",
		}, []string{"slot"}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_malformed_records_total",
			Help: "Source records skipped because required fields were missing.",
		}, []string{"category"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_invalidations_total",
			Help: "Cache slots flipped to invalid.",
		}, []string{"slot"}),
	}

	reg.MustRegister(m.cacheRequests, m.fetchDuration, m.fetchErrors, m.malformed, m.invalidations)
	return m
}

func (m *Metrics) cacheResult(slot cache.Key, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(string(slot), result).Inc()
}

func (m *Metrics) fetched(slot cache.Key, started time.Time, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(string(slot)).Observe(time.Since(started).Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(string(slot)).Inc()
	}
}

func (m *Metrics) malformedRecord(category models.Category) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) invalidated(slots []cache.Key) {
	if m == nil {
		return
	}
	for _, slot := range slots {
		m.invalidations.WithLabelValues(string(slot)).Inc()
	}
}
