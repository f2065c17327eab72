package cache

import "errors"

// Tier names used in stats, logs, and metric labels.
const (
	TierBytes   = "bytes"   // Tier 2: raw encoded asset bytes
	TierTexture = "texture" // Tier 0: decoded, render-ready images
)

// Eviction reasons reported to CacheMetrics.
const (
	ReasonSizeLimit = "size_limit" // pre-insertion loop made room
	ReasonExplicit  = "explicit"   // EvictOne or Remove requested by a caller
	ReasonClear     = "clear"      // Clear dropped everything
	ReasonReplaced  = "replaced"   // Put overwrote an existing key
)

// ErrInvalidBudget is returned when a tier is built with a negative budget.
var ErrInvalidBudget = errors.New("invalid tier budget")

// Budget bounds a tier. A zero field means that dimension is unbounded.
type Budget struct {
	// MaxItems is the maximum number of entries.
	MaxItems int `mapstructure:"max_items" yaml:"max_items"`

	// MaxBytes is the maximum accounted size in bytes.
	// For the byte tier this is the encoded size; for the texture tier the
	// pixel estimate.
	MaxBytes int64 `mapstructure:"max_bytes" yaml:"max_bytes"`
}

// Validate rejects negative limits.
func (b Budget) Validate() error {
	if b.MaxItems < 0 || b.MaxBytes < 0 {
		return ErrInvalidBudget
	}
	return nil
}

// Stats is a point-in-time snapshot of a tier for diagnostics.
type Stats struct {
	Name      string `json:"name"`
	Items     int    `json:"items"`
	Bytes     int64  `json:"bytes"`
	MaxItems  int    `json:"max_items"`
	MaxBytes  int64  `json:"max_bytes"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// HitRate returns hits / (hits + misses), or 0 with no reads.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
