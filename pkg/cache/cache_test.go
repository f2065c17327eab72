package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tiercache/pkg/asset"
)

func newByteTier(t *testing.T, budget Budget) *ByteTier {
	t.Helper()
	tier, err := NewByteTier(budget, nil, nil)
	require.NoError(t, err)
	return tier
}

func TestTier_LRUOrder(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 2})

	tier.Put("A", []byte("a"))
	tier.Put("B", []byte("b"))
	tier.Put("C", []byte("c"))

	// C evicted A.
	assert.False(t, tier.Contains("A"))
	assert.Equal(t, []asset.Key{"B", "C"}, tier.Keys())

	_, ok := tier.Get("B")
	require.True(t, ok)

	// B is now most recent, so D evicts C.
	tier.Put("D", []byte("d"))
	assert.Equal(t, []asset.Key{"B", "D"}, tier.Keys())
}

func TestTier_GetOfEvictedKeyThenPut(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 2})

	tier.Put("A", []byte("a"))
	tier.Put("B", []byte("b"))
	tier.Put("C", []byte("c"))

	_, ok := tier.Get("A")
	assert.False(t, ok)

	// The miss on A changes nothing, so D evicts the oldest, B.
	tier.Put("D", []byte("d"))
	assert.False(t, tier.Contains("B"))
	assert.Equal(t, []asset.Key{"C", "D"}, tier.Keys())
}

func TestTier_GetTouchesRecency(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 3})

	tier.Put("A", []byte("a"))
	tier.Put("B", []byte("b"))
	tier.Put("C", []byte("c"))

	_, ok := tier.Get("A")
	require.True(t, ok)

	tier.Put("D", []byte("d"))

	assert.True(t, tier.Contains("A"))
	assert.False(t, tier.Contains("B"))
	assert.Equal(t, []asset.Key{"C", "A", "D"}, tier.Keys())
}

func TestTier_PeekDoesNotTouch(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 2})

	tier.Put("A", []byte("a"))
	tier.Put("B", []byte("b"))

	_, ok := tier.Peek("A")
	require.True(t, ok)

	tier.Put("C", []byte("c"))
	assert.False(t, tier.Contains("A"))
	assert.Equal(t, uint64(0), tier.Stats().Hits)
}

func TestTier_ByteBudgetHolds(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 100, MaxBytes: 10})

	for i := 0; i < 20; i++ {
		tier.Put(asset.Key(rune('a'+i)), make([]byte, 3))
		assert.LessOrEqual(t, tier.Bytes(), int64(10))
		assert.LessOrEqual(t, tier.Len(), 100)
	}
	assert.Equal(t, 3, tier.Len())
	assert.Equal(t, int64(9), tier.Bytes())
}

func TestTier_ItemBudgetHolds(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 5, MaxBytes: 1 << 20})

	for i := 0; i < 50; i++ {
		tier.Put(asset.Key(rune('a'+i)), []byte{byte(i)})
		assert.LessOrEqual(t, tier.Len(), 5)
	}
	stats := tier.Stats()
	assert.Equal(t, 5, stats.Items)
	assert.Equal(t, uint64(45), stats.Evictions)
}

func TestTier_OversizedItemInsertedAfterClearing(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 10, MaxBytes: 10})

	tier.Put("A", make([]byte, 4))
	tier.Put("B", make([]byte, 4))

	evicted := tier.Put("huge", make([]byte, 25))

	assert.Equal(t, 2, evicted)
	assert.Equal(t, []asset.Key{"huge"}, tier.Keys())
	assert.Equal(t, int64(25), tier.Bytes())

	// The next insert makes room again.
	tier.Put("C", make([]byte, 1))
	assert.Equal(t, []asset.Key{"C"}, tier.Keys())
	assert.Equal(t, int64(1), tier.Bytes())
}

func TestTier_ReplaceExistingKey(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 3, MaxBytes: 100})

	tier.Put("A", make([]byte, 10))
	tier.Put("B", make([]byte, 10))
	tier.Put("A", make([]byte, 30))

	assert.Equal(t, []asset.Key{"B", "A"}, tier.Keys())
	assert.Equal(t, int64(40), tier.Bytes())
	assert.Equal(t, uint64(0), tier.Stats().Evictions)

	size, ok := tier.Size("A")
	require.True(t, ok)
	assert.Equal(t, int64(30), size)
}

func TestTier_ReplaceAtCapacityDoesNotEvictOthers(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 2})

	tier.Put("A", []byte("a"))
	tier.Put("B", []byte("b"))
	tier.Put("A", []byte("a2"))

	assert.Equal(t, []asset.Key{"B", "A"}, tier.Keys())
}

func TestTier_EvictOneRemoveClear(t *testing.T) {
	tier := newByteTier(t, Budget{})

	tier.Put("A", []byte("aa"))
	tier.Put("B", []byte("bb"))
	tier.Put("C", []byte("cc"))

	key, ok := tier.EvictOne()
	require.True(t, ok)
	assert.Equal(t, asset.Key("A"), key)

	assert.True(t, tier.Remove("C"))
	assert.False(t, tier.Remove("C"))
	assert.Equal(t, []asset.Key{"B"}, tier.Keys())
	assert.Equal(t, int64(2), tier.Bytes())

	tier.Clear()
	assert.Equal(t, 0, tier.Len())
	assert.Equal(t, int64(0), tier.Bytes())

	_, ok = tier.EvictOne()
	assert.False(t, ok)
}

func TestTier_Stats(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 4, MaxBytes: 64})

	tier.Put("A", []byte("abc"))
	tier.Get("A")
	tier.Get("A")
	tier.Get("missing")

	stats := tier.Stats()
	assert.Equal(t, TierBytes, stats.Name)
	assert.Equal(t, 1, stats.Items)
	assert.Equal(t, int64(3), stats.Bytes)
	assert.Equal(t, 4, stats.MaxItems)
	assert.Equal(t, int64(64), stats.MaxBytes)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 0.0001)
}

func TestTier_OnChange(t *testing.T) {
	changes := 0
	tier, err := NewByteTier(Budget{MaxItems: 1}, nil, func() { changes++ })
	require.NoError(t, err)

	tier.Put("A", []byte("a"))
	tier.Put("B", []byte("b"))
	tier.Get("B")
	tier.EvictOne()
	tier.Clear() // empty, no change

	assert.Equal(t, 3, changes)
}

func TestTier_InvalidBudget(t *testing.T) {
	_, err := NewByteTier(Budget{MaxItems: -1}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidBudget)
}

type recordingMetrics struct {
	mu        sync.Mutex
	hits      map[string]int
	misses    map[string]int
	evictions map[string]int
	items     int
	bytes     int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		hits:      map[string]int{},
		misses:    map[string]int{},
		evictions: map[string]int{},
	}
}

func (m *recordingMetrics) RecordHit(tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[tier]++
}

func (m *recordingMetrics) RecordMiss(tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[tier]++
}

func (m *recordingMetrics) RecordEviction(_ string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions[reason]++
}

func (m *recordingMetrics) RecordTierSize(_ string, items int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
	m.bytes = bytes
}

func TestTier_Metrics(t *testing.T) {
	m := newRecordingMetrics()
	tier, err := NewByteTier(Budget{MaxItems: 1}, m, nil)
	require.NoError(t, err)

	tier.Put("A", []byte("a"))
	tier.Put("B", []byte("bb"))
	tier.Get("B")
	tier.Get("A")
	tier.Put("B", []byte("b"))
	tier.Remove("B")

	assert.Equal(t, 1, m.hits[TierBytes])
	assert.Equal(t, 1, m.misses[TierBytes])
	assert.Equal(t, 1, m.evictions[ReasonSizeLimit])
	assert.Equal(t, 1, m.evictions[ReasonReplaced])
	assert.Equal(t, 1, m.evictions[ReasonExplicit])
	assert.Equal(t, 0, m.items)
	assert.Equal(t, int64(0), m.bytes)
}

func TestTier_ConcurrentAccess(t *testing.T) {
	tier := newByteTier(t, Budget{MaxItems: 16, MaxBytes: 1024})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := asset.Key(string(rune('a' + (g*7+i)%26)))
				tier.Put(key, make([]byte, 1+i%64))
				tier.Get(key)
				if i%10 == 0 {
					tier.EvictOne()
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, tier.Len(), 16)
	assert.LessOrEqual(t, tier.Bytes(), int64(1024))
}
