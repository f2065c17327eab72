package cache

import "github.com/marmos91/tiercache/pkg/asset"

// TextureTier (Tier 0) holds decoded textures, accounted by pixel estimate.
//
// The tier owns exactly one reference per resident texture. Eviction releases
// that reference only; consumers holding their own references keep a valid
// image until they release it.
type TextureTier struct {
	tier *Tier[*asset.Texture]
}

// NewTextureTier creates an empty texture tier.
func NewTextureTier(budget Budget, metrics CacheMetrics, onChange func()) (*TextureTier, error) {
	t, err := NewTier(Config[*asset.Texture]{
		Name:     TierTexture,
		Budget:   budget,
		SizeOf:   func(tex *asset.Texture) int64 { return tex.PixelBytes() },
		Release:  func(tex *asset.Texture) { tex.Release() },
		OnChange: onChange,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}
	return &TextureTier{tier: t}, nil
}

// Put inserts tex, taking ownership of one reference. A texture already
// resident under the same key is released and replaced.
func (t *TextureTier) Put(key asset.Key, tex *asset.Texture) int {
	return t.tier.Put(key, tex)
}

// Get returns a retained handle and marks the key most recently used.
// The caller must Release the handle.
func (t *TextureTier) Get(key asset.Key) (*asset.Texture, bool) {
	tex, ok := t.tier.Get(key)
	if !ok {
		return nil, false
	}
	if tex = tex.Retain(); tex == nil {
		return nil, false
	}
	return tex, true
}

// Contains reports whether key is resident.
func (t *TextureTier) Contains(key asset.Key) bool { return t.tier.Contains(key) }

// EvictOne releases the least recently used texture.
func (t *TextureTier) EvictOne() (asset.Key, bool) { return t.tier.EvictOne() }

// Remove releases the texture stored under key.
func (t *TextureTier) Remove(key asset.Key) bool { return t.tier.Remove(key) }

// Clear releases every texture.
func (t *TextureTier) Clear() { t.tier.Clear() }

// Keys returns resident keys, least recently used first.
func (t *TextureTier) Keys() []asset.Key { return t.tier.Keys() }

// Len returns the number of resident textures.
func (t *TextureTier) Len() int { return t.tier.Len() }

// Bytes returns the summed pixel estimate of resident textures.
func (t *TextureTier) Bytes() int64 { return t.tier.Bytes() }

// Budget returns the tier budget.
func (t *TextureTier) Budget() Budget { return t.tier.Budget() }

// Stats returns a snapshot of the tier.
func (t *TextureTier) Stats() Stats { return t.tier.Stats() }
