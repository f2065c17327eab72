package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Assets
	// ========================================================================
	KeyKey       = "key"        // Asset key (canonical file path)
	KeyPath      = "path"       // File system path
	KeySize      = "size"       // Encoded size in bytes
	KeyWidth     = "width"      // Decoded width in pixels
	KeyHeight    = "height"     // Decoded height in pixels
	KeyPriority  = "priority"   // Load priority: interactive, normal, prefetch
	KeyFidelity  = "fidelity"   // Prefetch fidelity: full, bytes_only
	KeyCommandID = "command_id" // DiskWorker command identifier
	KeyCommand   = "command"    // DiskWorker command kind

	// ========================================================================
	// Cache Tiers
	// ========================================================================
	KeyTier      = "tier"      // Tier name: bytes, texture
	KeyItems     = "items"     // Resident entry count
	KeyBytes     = "bytes"     // Resident accounted bytes
	KeyMaxItems  = "max_items" // Item budget
	KeyMaxBytes  = "max_bytes" // Byte budget
	KeyEvicted   = "evicted"   // Number of entries evicted
	KeyCacheHit  = "cache_hit" // Cache hit indicator
	KeyPending   = "pending"   // In-flight loads or writes
	KeyMemClass  = "mem_class" // Device memory class: generous, constrained
	KeyTotalRAM  = "total_ram" // Probed physical memory
	KeyRevision  = "revision"  // Cache-changed counter
	KeyBatchSize = "batch"     // Number of keys in a batch

	// ========================================================================
	// Navigation & Lifecycle
	// ========================================================================
	KeyFolderID  = "folder_id" // Folder identifier
	KeyParentID  = "parent_id" // Parent folder identifier
	KeyAncestors = "ancestors" // AncestorSet size
	KeyContexts  = "contexts"  // Folder contexts popped or tracked
	KeyState     = "state"     // Lifecycle state: foreground, background

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyOperation  = "operation"   // Operation name
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyReason     = "reason"      // Human-readable reason for a failure or eviction
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyStore      = "store"       // Backing store: badger, memory, sqlite, postgres
)

// Attr helpers for the fields logged outside a LogContext.

// Evicted returns a slog.Attr for an eviction count
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// FolderID returns a slog.Attr for a folder identifier
func FolderID(id int64) slog.Attr {
	return slog.Int64(KeyFolderID, id)
}

// State returns a slog.Attr for a lifecycle state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// DurationMs returns a slog.Attr for a duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or an empty attr for nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
