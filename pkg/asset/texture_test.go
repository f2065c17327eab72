package asset

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTexture_RefCounting(t *testing.T) {
	freed := 0
	tex := NewTexture("a.jpg", image.NewRGBA(image.Rect(0, 0, 8, 4)), func(Key) { freed++ })

	assert.Equal(t, int64(8*4*BytesPerPixel), tex.PixelBytes())
	assert.Equal(t, int32(1), tex.Refs())

	assert.Same(t, tex, tex.Retain())
	tex.Release()
	assert.Equal(t, 0, freed)
	assert.NotNil(t, tex.Image())

	tex.Release()
	assert.Equal(t, 1, freed)
	assert.Nil(t, tex.Image())

	// Freed textures cannot be resurrected.
	assert.Nil(t, tex.Retain())

	tex.Release()
	assert.Equal(t, int32(0), tex.Refs())
	assert.Equal(t, 1, freed)
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, Key("/a/b/c.jpg"), NewKey("/a/b/../b/./c.jpg"))
	assert.Equal(t, NewKey("x/y.png"), NewKey("x//y.png"))
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "interactive", PriorityInteractive.String())
	assert.Equal(t, "normal", PriorityNormal.String())
	assert.Equal(t, "prefetch", PriorityPrefetch.String())
}
