// Package asset defines the identity and handle types shared by every cache
// tier and by the disk worker protocol.
package asset

import "path/filepath"

// Key is the canonical file path of an asset. Two keys are equal iff their
// strings are equal; callers are expected to canonicalise paths before use.
type Key string

// NewKey cleans p into its canonical form.
func NewKey(p string) Key {
	return Key(filepath.Clean(p))
}

// String returns the path.
func (k Key) String() string {
	return string(k)
}

// Priority orders disk loads. Higher values are served first.
type Priority int

const (
	// PriorityPrefetch is speculative work that may be dropped under load.
	PriorityPrefetch Priority = iota

	// PriorityNormal is the default for explicit fetches.
	PriorityNormal

	// PriorityInteractive is used when the user is waiting on the asset.
	PriorityInteractive
)

// String returns the string representation of Priority.
func (p Priority) String() string {
	switch p {
	case PriorityPrefetch:
		return "prefetch"
	case PriorityNormal:
		return "normal"
	case PriorityInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// Fidelity describes how far down the pipeline a prefetch goes.
type Fidelity int

const (
	// FidelityFull loads the bytes and decodes a texture.
	FidelityFull Fidelity = iota

	// FidelityBytesOnly stops at the byte tier and skips decoding.
	FidelityBytesOnly
)

// String returns the string representation of Fidelity.
func (f Fidelity) String() string {
	if f == FidelityBytesOnly {
		return "bytes_only"
	}
	return "full"
}
