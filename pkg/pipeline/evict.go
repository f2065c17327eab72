package pipeline

import (
	"context"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/cache"
)

// EvictItems evicts at most n entries in total: least recently used
// textures first, then least recently used byte entries for the remainder.
// It returns the number evicted.
func (c *Coordinator) EvictItems(n int) int {
	if n <= 0 {
		return 0
	}
	_, span := telemetry.StartSpan(context.Background(), telemetry.SpanEvict)
	defer span.End()

	textures := 0
	for textures < n {
		if _, ok := c.textures.EvictOne(); !ok {
			break
		}
		textures++
	}

	entries := 0
	for textures+entries < n {
		if _, ok := c.bytes.EvictOne(); !ok {
			break
		}
		entries++
	}

	span.SetAttributes(telemetry.CacheEvicted(textures + entries))
	logger.Debug("Evicted least recently used items",
		logger.Evicted(textures+entries),
		cache.TierTexture, textures,
		cache.TierBytes, entries)
	return textures + entries
}

// EvictTexture drops key from Tier 0.
func (c *Coordinator) EvictTexture(key asset.Key) bool {
	return c.textures.Remove(key)
}

// EvictBytes drops key from Tier 2.
func (c *Coordinator) EvictBytes(key asset.Key) bool {
	return c.bytes.Remove(key)
}

// EvictAssets drops keys from both tiers and returns how many entries left.
func (c *Coordinator) EvictAssets(keys []asset.Key) int {
	n := 0
	for _, key := range keys {
		if c.textures.Remove(key) {
			n++
		}
		if c.bytes.Remove(key) {
			n++
		}
	}
	return n
}

// Clear empties both tiers.
func (c *Coordinator) Clear() {
	c.textures.Clear()
	c.bytes.Clear()
	logger.Info("Cache cleared")
}
