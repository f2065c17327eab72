package metrics

import (
	"github.com/marmos91/tiercache/pkg/cache"
	"github.com/marmos91/tiercache/pkg/diskworker"
	"github.com/marmos91/tiercache/pkg/pipeline"
)

// Constructors registered by pkg/metrics/prometheus.
var (
	newPrometheusCacheMetrics    func() cache.CacheMetrics
	newPrometheusWorkerMetrics   func() diskworker.Metrics
	newPrometheusPipelineMetrics func() pipeline.Metrics
)

// RegisterCacheMetricsConstructor registers the tier metrics constructor.
func RegisterCacheMetricsConstructor(constructor func() cache.CacheMetrics) {
	newPrometheusCacheMetrics = constructor
}

// RegisterWorkerMetricsConstructor registers the disk worker metrics constructor.
func RegisterWorkerMetricsConstructor(constructor func() diskworker.Metrics) {
	newPrometheusWorkerMetrics = constructor
}

// RegisterPipelineMetricsConstructor registers the coordinator metrics constructor.
func RegisterPipelineMetricsConstructor(constructor func() pipeline.Metrics) {
	newPrometheusPipelineMetrics = constructor
}

// NewCacheMetrics returns tier metrics, or nil when metrics are disabled.
//
// Example usage:
//
//	metrics.InitRegistry()
//	tierMetrics := metrics.NewCacheMetrics()
//	bytes, err := cache.NewByteTier(budget, tierMetrics, nil)
func NewCacheMetrics() cache.CacheMetrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// NewWorkerMetrics returns disk worker metrics, or nil when metrics are disabled.
func NewWorkerMetrics() diskworker.Metrics {
	if !IsEnabled() || newPrometheusWorkerMetrics == nil {
		return nil
	}
	return newPrometheusWorkerMetrics()
}

// NewPipelineMetrics returns coordinator metrics, or nil when metrics are disabled.
func NewPipelineMetrics() pipeline.Metrics {
	if !IsEnabled() || newPrometheusPipelineMetrics == nil {
		return nil
	}
	return newPrometheusPipelineMetrics()
}
