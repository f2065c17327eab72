package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tiercache/pkg/metrics"
	"github.com/marmos91/tiercache/pkg/pipeline"
)

// pipelineMetrics is the Prometheus implementation of pipeline.Metrics.
type pipelineMetrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	decodes       *prometheus.CounterVec
	decodeTime    prometheus.Histogram
	writes        *prometheus.CounterVec
	pending       *prometheus.GaugeVec
}

// NewPipelineMetrics creates Prometheus-backed coordinator metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPipelineMetrics() pipeline.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &pipelineMetrics{
		fetches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_fetch_total",
				Help: "Total number of fetches by outcome",
			},
			[]string{"outcome"}, // "hit", "loaded", "joined", "miss", "timeout", "unavailable"
		),
		fetchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tiercache_fetch_duration_milliseconds",
				Help: "Fetch latency in milliseconds by outcome",
				Buckets: []float64{
					0.01, // 10us - Tier-2 hits
					0.1,  // 100us
					1,    // 1ms
					10,   // 10ms
					50,   // 50ms - disk loads
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s - timeout
				},
			},
			[]string{"outcome"},
		),
		decodes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_decode_total",
				Help: "Total number of texture decodes by status",
			},
			[]string{"status"}, // "ok", "error"
		),
		decodeTime: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tiercache_decode_duration_milliseconds",
				Help:    "Texture decode duration in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		writes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_ingest_writes_total",
				Help: "Total number of ingest write outcomes",
			},
			[]string{"outcome"}, // "ok", "failed", "sync_fallback"
		),
		pending: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tiercache_pending",
				Help: "In-flight loads and writes",
			},
			[]string{"kind"}, // "load", "write"
		),
	}
}

func (m *pipelineMetrics) ObserveFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds() * 1000)
}

func (m *pipelineMetrics) ObserveDecode(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	m.decodes.WithLabelValues(status).Inc()
	m.decodeTime.Observe(duration.Seconds() * 1000)
}

func (m *pipelineMetrics) RecordWrite(outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(outcome).Inc()
}

func (m *pipelineMetrics) RecordPending(loads, writes int) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues("load").Set(float64(loads))
	m.pending.WithLabelValues("write").Set(float64(writes))
}
