package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tiercache/pkg/diskworker"
	"github.com/marmos91/tiercache/pkg/metrics"
)

// workerMetrics is the Prometheus implementation of diskworker.Metrics.
type workerMetrics struct {
	commands      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	bytes         *prometheus.HistogramVec
	queueDepth    *prometheus.GaugeVec
	recompression *prometheus.CounterVec
	savedBytes    prometheus.Counter
}

// NewWorkerMetrics creates Prometheus-backed disk worker metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewWorkerMetrics() diskworker.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &workerMetrics{
		commands: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_worker_commands_total",
				Help: "Total number of disk worker commands by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tiercache_worker_command_duration_milliseconds",
				Help: "Duration of disk worker commands in milliseconds",
				Buckets: []float64{
					0.5,  // 500us - small verbatim reads
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms - typical recompression
					100,  // 100ms
					500,  // 500ms - large images
					1000, // 1s
					5000, // 5s - fetch timeout
				},
			},
			[]string{"kind"},
		),
		bytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tiercache_worker_command_bytes",
				Help: "Distribution of bytes loaded or saved per command",
				Buckets: []float64{
					16384,    // 16KB - thumbnails
					65536,    // 64KB
					262144,   // 256KB
					1048576,  // 1MB
					4194304,  // 4MB - typical camera JPEG
					16777216, // 16MB
				},
			},
			[]string{"kind"},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tiercache_worker_queue_depth",
				Help: "Queued requests per priority lane",
			},
			[]string{"lane"}, // "interactive", "save", "prefetch"
		),
		recompression: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_worker_loads_total",
				Help: "Loads served recompressed or verbatim",
			},
			[]string{"mode"}, // "recompressed", "verbatim"
		),
		savedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tiercache_worker_recompression_saved_bytes_total",
				Help: "Bytes saved by recompression",
			},
		),
	}
}

func (m *workerMetrics) ObserveCommand(kind, outcome string, bytes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(duration.Seconds() * 1000)
	if bytes > 0 {
		m.bytes.WithLabelValues(kind).Observe(float64(bytes))
	}
}

func (m *workerMetrics) RecordQueueDepth(lane string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(lane).Set(float64(depth))
}

func (m *workerMetrics) RecordRecompression(recompressed bool, savedBytes int) {
	if m == nil {
		return
	}
	if !recompressed {
		m.recompression.WithLabelValues("verbatim").Inc()
		return
	}
	m.recompression.WithLabelValues("recompressed").Inc()
	if savedBytes > 0 {
		m.savedBytes.Add(float64(savedBytes))
	}
}
