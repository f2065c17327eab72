package asset

import (
	"image"
	"sync"
	"sync/atomic"
)

// BytesPerPixel is the RGBA footprint used for texture memory estimates.
const BytesPerPixel = 4

// Texture is a reference-counted handle to a decoded, render-ready image.
//
// The cache tier owns one reference. Consumers that keep a texture beyond the
// call that produced it must Retain it and Release it when done. The pixels
// are dropped only when the last reference is released, so evicting a texture
// from the cache never invalidates a handle a consumer still holds.
type Texture struct {
	key    Key
	width  int
	height int

	refs atomic.Int32

	mu     sync.RWMutex
	img    image.Image
	onFree func(Key)
}

// NewTexture wraps img with a reference count of one (owned by the caller).
// onFree, if non-nil, runs once when the count reaches zero.
func NewTexture(key Key, img image.Image, onFree func(Key)) *Texture {
	b := img.Bounds()
	t := &Texture{
		key:    key,
		width:  b.Dx(),
		height: b.Dy(),
		img:    img,
		onFree: onFree,
	}
	t.refs.Store(1)
	return t
}

// Key returns the asset the texture was decoded from.
func (t *Texture) Key() Key { return t.key }

// Width returns the decoded width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the decoded height in pixels.
func (t *Texture) Height() int { return t.height }

// PixelBytes is the estimated memory footprint: width * height * 4.
func (t *Texture) PixelBytes() int64 {
	return int64(t.width) * int64(t.height) * BytesPerPixel
}

// Refs returns the current reference count.
func (t *Texture) Refs() int32 { return t.refs.Load() }

// Retain adds a reference and returns t for chaining.
// Retaining a texture whose count already dropped to zero returns nil.
func (t *Texture) Retain() *Texture {
	for {
		n := t.refs.Load()
		if n <= 0 {
			return nil
		}
		if t.refs.CompareAndSwap(n, n+1) {
			return t
		}
	}
}

// Release drops a reference. The last release frees the pixels.
func (t *Texture) Release() {
	n := t.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		// Over-release is a caller bug; keep the count pinned at zero.
		t.refs.Store(0)
		return
	}

	t.mu.Lock()
	t.img = nil
	t.mu.Unlock()

	if t.onFree != nil {
		t.onFree(t.key)
	}
}

// Image returns the decoded image, or nil once the texture has been freed.
func (t *Texture) Image() image.Image {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.img
}
