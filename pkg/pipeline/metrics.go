package pipeline

import "time"

// Fetch outcomes reported to Metrics.
const (
	OutcomeHit         = "hit"         // served from Tier 2
	OutcomeLoaded      = "loaded"      // served after a disk load
	OutcomeJoined      = "joined"      // shared another caller's in-flight load
	OutcomeMiss        = "miss"        // load failed
	OutcomeTimeout     = "timeout"     // wait exceeded FetchTimeout
	OutcomeUnavailable = "unavailable" // no running worker
)

// Write outcomes reported to Metrics.
const (
	WriteOK           = "ok"
	WriteFailed       = "failed"
	WriteSyncFallback = "sync_fallback"
)

// Metrics provides observability for the coordinator.
//
// This is optional - pass nil to disable collection with zero overhead.
type Metrics interface {
	// ObserveFetch records a Fetch call and how it was served.
	ObserveFetch(outcome string, duration time.Duration)

	// ObserveDecode records a texture decode.
	ObserveDecode(success bool, duration time.Duration)

	// RecordWrite records the outcome of an ingest write.
	RecordWrite(outcome string)

	// RecordPending records in-flight loads and writes.
	RecordPending(loads, writes int)
}
