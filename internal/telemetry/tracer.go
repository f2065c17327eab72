package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/tiercache/internal/logger"
)

// Attribute keys for cache operations.
const (
	// Asset
	AttrAssetKey      = "asset.key"
	AttrAssetSize     = "asset.size"
	AttrAssetWidth    = "asset.width"
	AttrAssetHeight   = "asset.height"
	AttrAssetPriority = "asset.priority"

	// Tiers
	AttrCacheHit     = "cache.hit"
	AttrCacheTier    = "cache.tier"
	AttrCacheEvicted = "cache.evicted"
	AttrCacheDeduped = "cache.deduped"

	// Disk worker
	AttrCommandID   = "worker.command_id"
	AttrCommandKind = "worker.command"

	// Navigation and lifecycle
	AttrFolderID  = "nav.folder_id"
	AttrAncestors = "nav.ancestors"
	AttrBatchSize = "nav.batch_size"
	AttrLifecycle = "lifecycle.state"
)

// Span names. Format: <component>.<operation>
const (
	SpanFetch        = "pipeline.fetch"
	SpanFetchBatch   = "pipeline.fetch_batch"
	SpanPrewarm      = "pipeline.prewarm"
	SpanPrewarmBatch = "pipeline.prewarm_batch"
	SpanIngest       = "pipeline.ingest"
	SpanEvict        = "pipeline.evict"

	SpanWorkerLoad = "worker.load_image"
	SpanWorkerSave = "worker.save_to_file"

	SpanNavigate     = "navigation.navigate"
	SpanPrefetchPlan = "prefetch.plan"

	SpanLifecycleBackground = "lifecycle.background"
	SpanLifecycleForeground = "lifecycle.foreground"
	SpanLifecyclePressure   = "lifecycle.memory_pressure"
)

// AssetKey returns an attribute for an asset key.
func AssetKey(key string) attribute.KeyValue {
	return attribute.String(AttrAssetKey, key)
}

// AssetSize returns an attribute for an encoded asset size.
func AssetSize(n int) attribute.KeyValue {
	return attribute.Int(AttrAssetSize, n)
}

// AssetPriority returns an attribute for a load priority.
func AssetPriority(p string) attribute.KeyValue {
	return attribute.String(AttrAssetPriority, p)
}

// CacheHit returns an attribute for a cache hit indicator.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheTier returns an attribute for a tier name.
func CacheTier(name string) attribute.KeyValue {
	return attribute.String(AttrCacheTier, name)
}

// CacheEvicted returns an attribute for an eviction count.
func CacheEvicted(n int) attribute.KeyValue {
	return attribute.Int(AttrCacheEvicted, n)
}

// CacheDeduped reports whether a request joined an in-flight load.
func CacheDeduped(joined bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheDeduped, joined)
}

// CommandID returns an attribute for a disk worker command id.
func CommandID(id string) attribute.KeyValue {
	return attribute.String(AttrCommandID, id)
}

// FolderID returns an attribute for a folder id.
func FolderID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrFolderID, id)
}

// BatchSize returns an attribute for a batch length.
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// StartPipelineSpan starts a span for a coordinator operation on one asset.
// Log lines emitted under it carry the asset key.
func StartPipelineSpan(ctx context.Context, name, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(append([]attribute.KeyValue{AssetKey(key)}, attrs...)...))
	return logger.WithContext(ctx, logger.FromContext(ctx).WithKey(key)), span
}

// StartWorkerSpan starts a span around a disk worker command.
func StartWorkerSpan(ctx context.Context, name, commandID, path string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(CommandID(commandID), AssetKey(path)),
	)
	return logger.WithContext(ctx, logger.FromContext(ctx).WithKey(path)), span
}

// StartFolderSpan starts a span for navigation-driven work on a folder.
// Log lines emitted under it carry the folder id.
func StartFolderSpan(ctx context.Context, name string, folder int64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(append([]attribute.KeyValue{FolderID(folder)}, attrs...)...))
	return logger.WithContext(ctx, logger.FromContext(ctx).WithFolder(folder)), span
}
