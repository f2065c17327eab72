package diskworker

import "time"

// Metrics provides observability for the disk worker.
//
// This is optional - pass nil to disable collection with zero overhead.
type Metrics interface {
	// ObserveCommand records a completed command.
	// outcome is "ok" or an ErrorKind string.
	ObserveCommand(kind string, outcome string, bytes int, duration time.Duration)

	// RecordQueueDepth records the number of queued requests per lane.
	RecordQueueDepth(lane string, depth int)

	// RecordRecompression records whether a load was served recompressed or verbatim.
	RecordRecompression(recompressed bool, savedBytes int)
}
