package cache

import "github.com/marmos91/tiercache/pkg/asset"

// ByteTier (Tier 2) holds encoded asset bytes, accounted by length.
//
// Stored slices are treated as immutable once inserted: callers must not
// modify a slice after Put or a slice returned by Get.
type ByteTier struct {
	*Tier[[]byte]
}

// NewByteTier creates an empty byte tier.
func NewByteTier(budget Budget, metrics CacheMetrics, onChange func()) (*ByteTier, error) {
	t, err := NewTier(Config[[]byte]{
		Name:     TierBytes,
		Budget:   budget,
		SizeOf:   func(b []byte) int64 { return int64(len(b)) },
		OnChange: onChange,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}
	return &ByteTier{Tier: t}, nil
}

// Size returns the byte length of a resident entry without touching recency.
func (b *ByteTier) Size(key asset.Key) (int64, bool) {
	v, ok := b.Peek(key)
	if !ok {
		return 0, false
	}
	return int64(len(v)), true
}
