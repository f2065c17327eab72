package pipeline

import (
	"context"
	"time"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/asset"
)

// Prewarm makes key render-ready: it decodes Tier-2 bytes (fetching them
// first on a miss) into a texture and inserts it into Tier 0. A texture that
// is already resident is only touched. Concurrent prewarms of one key decode
// once.
func (c *Coordinator) Prewarm(ctx context.Context, key asset.Key) bool {
	return c.prewarm(ctx, key, asset.PriorityNormal)
}

func (c *Coordinator) prewarm(ctx context.Context, key asset.Key, prio asset.Priority) bool {
	ctx, span := telemetry.StartPipelineSpan(ctx, telemetry.SpanPrewarm, key.String(),
		telemetry.AssetPriority(prio.String()))
	defer span.End()

	if tex, ok := c.textures.Get(key); ok {
		tex.Release()
		span.SetAttributes(telemetry.CacheHit(true))
		return true
	}
	span.SetAttributes(telemetry.CacheHit(false))

	v, _, _ := c.decodes.Do(key.String(), func() (any, error) {
		if c.textures.Contains(key) {
			return true, nil
		}
		gen := c.generation(key)
		data, ok := c.Fetch(ctx, key, prio)
		if !ok {
			return false, nil
		}
		return c.decodeInto(ctx, key, data, gen), nil
	})
	ok, _ := v.(bool)
	return ok
}

// decodeInto decodes data and inserts the texture into Tier 0. gen is the
// ingest generation data was read at; if key was ingested since, the texture
// is dropped and the newer ingest's own decode fills Tier 0.
func (c *Coordinator) decodeInto(ctx context.Context, key asset.Key, data []byte, gen uint64) bool {
	start := time.Now()
	img, err := c.decode(data)
	if c.metrics != nil {
		c.metrics.ObserveDecode(err == nil, time.Since(start))
	}
	if err != nil {
		logger.DebugCtx(ctx, "Texture decode failed",
			logger.KeySize, len(data),
			logger.Err(err))
		telemetry.RecordError(ctx, err)
		return false
	}

	tex := asset.NewTexture(key, img, nil)

	c.ingestMu.Lock()
	if c.gens[key] != gen {
		c.ingestMu.Unlock()
		tex.Release()
		logger.DebugCtx(ctx, "Discarding texture decoded from superseded bytes")
		return false
	}
	c.textures.Put(key, tex)
	c.ingestMu.Unlock()
	return true
}

// PrewarmBatch prewarms keys at prefetch priority with at most concurrency
// decodes in flight, returning how many became resident. concurrency <= 0
// uses the configured default.
func (c *Coordinator) PrewarmBatch(ctx context.Context, keys []asset.Key, concurrency int) int {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPrewarmBatch)
	defer span.End()
	span.SetAttributes(telemetry.BatchSize(len(keys)))

	return c.forEach(ctx, keys, concurrency, func(ctx context.Context, key asset.Key) bool {
		return c.prewarm(ctx, key, asset.PriorityPrefetch)
	})
}

// Redecode decodes key from Tier 2 only, never touching disk. It returns
// false when the bytes are not resident or do not decode.
func (c *Coordinator) Redecode(ctx context.Context, key asset.Key) bool {
	if c.textures.Contains(key) {
		return true
	}
	gen := c.generation(key)
	data, ok := c.bytes.Peek(key)
	if !ok {
		return false
	}
	v, _, _ := c.decodes.Do(key.String(), func() (any, error) {
		if c.textures.Contains(key) {
			return true, nil
		}
		return c.decodeInto(ctx, key, data, gen), nil
	})
	ok, _ = v.(bool)
	return ok
}
