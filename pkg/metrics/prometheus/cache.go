// Package prometheus implements the metrics interfaces with Prometheus
// collectors registered on metrics.GetRegistry().
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tiercache/pkg/cache"
	"github.com/marmos91/tiercache/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(NewCacheMetrics)
	metrics.RegisterWorkerMetricsConstructor(NewWorkerMetrics)
	metrics.RegisterPipelineMetricsConstructor(NewPipelineMetrics)
}

// cacheMetrics is the Prometheus implementation of cache.CacheMetrics.
type cacheMetrics struct {
	reads     *prometheus.CounterVec
	evictions *prometheus.CounterVec
	items     *prometheus.GaugeVec
	bytes     *prometheus.GaugeVec
}

// NewCacheMetrics creates Prometheus-backed tier metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics() cache.CacheMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &cacheMetrics{
		reads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_tier_reads_total",
				Help: "Total number of tier lookups by tier and status",
			},
			[]string{"tier", "status"}, // status: "hit", "miss"
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_tier_evictions_total",
				Help: "Total number of entries leaving a tier by reason",
			},
			[]string{"tier", "reason"}, // reason: "size_limit", "explicit", "clear", "replaced"
		),
		items: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tiercache_tier_items",
				Help: "Current number of resident entries per tier",
			},
			[]string{"tier"},
		),
		bytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tiercache_tier_bytes",
				Help: "Current accounted size per tier in bytes",
			},
			[]string{"tier"},
		),
	}
}

func (m *cacheMetrics) RecordHit(tier string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(tier, "hit").Inc()
}

func (m *cacheMetrics) RecordMiss(tier string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(tier, "miss").Inc()
}

func (m *cacheMetrics) RecordEviction(tier, reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(tier, reason).Inc()
}

func (m *cacheMetrics) RecordTierSize(tier string, items int, bytes int64) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(tier).Set(float64(items))
	m.bytes.WithLabelValues(tier).Set(float64(bytes))
}
