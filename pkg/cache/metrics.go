package cache

// CacheMetrics provides observability for tier operations.
//
// Implementations collect hit/miss ratios, eviction counts, and occupancy.
// This is optional - pass nil to disable collection with zero overhead.
//
// Example implementations:
//   - Prometheus metrics (pkg/metrics/prometheus)
//   - In-memory counters for testing
type CacheMetrics interface {
	// RecordHit records a Get that found its key.
	RecordHit(tier string)

	// RecordMiss records a Get that did not find its key.
	RecordMiss(tier string)

	// RecordEviction records an entry leaving the tier.
	// reason is one of ReasonSizeLimit, ReasonExplicit, ReasonClear, ReasonReplaced.
	RecordEviction(tier, reason string)

	// RecordTierSize records the tier occupancy after a mutation.
	RecordTierSize(tier string, items int, bytes int64)
}
