// Package cache implements the in-memory tiers of the asset cache.
//
// Each tier is an LRU map from asset.Key to a value, bounded by item count
// and accounted bytes. Two instantiations exist:
//
//   - ByteTier (Tier 2): raw encoded bytes, accounted by length
//   - TextureTier (Tier 0): decoded textures, accounted by pixel estimate
//
// Key Design Principles:
//   - Eviction always removes the least recently used entry first
//   - Get and Put move the key to the most recently used end
//   - Put makes room before inserting; an item larger than the whole budget
//     is still inserted after clearing the tier (over budget by one item)
//   - Eviction only drops the tier's own reference to a value
//   - Tiers evict independently of each other
//
// Thread Safety:
// All operations are safe for concurrent use.
package cache

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/marmos91/tiercache/pkg/asset"
)

// Config configures a Tier.
type Config[V any] struct {
	// Name identifies the tier in stats, logs, and metrics.
	Name string

	// Budget bounds the tier.
	Budget Budget

	// SizeOf returns the accounted size of a value.
	SizeOf func(V) int64

	// Release is called for every value that leaves the tier. It must only
	// drop the tier's reference and never destroy a shared resource.
	Release func(V)

	// OnChange is called after every mutation (insert, evict, clear).
	OnChange func()

	// Metrics is optional.
	Metrics CacheMetrics
}

// Tier is a size- and count-bounded LRU map.
type Tier[V any] struct {
	name    string
	budget  Budget
	sizeOf  func(V) int64
	release func(V)

	onChange func()
	metrics  CacheMetrics

	mu    sync.Mutex
	lru   *simplelru.LRU[asset.Key, V]
	bytes int64

	// reason attributes the next eviction callback; set under mu.
	reason string

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewTier creates an empty tier.
func NewTier[V any](cfg Config[V]) (*Tier[V], error) {
	if err := cfg.Budget.Validate(); err != nil {
		return nil, err
	}

	t := &Tier[V]{
		name:     cfg.Name,
		budget:   cfg.Budget,
		sizeOf:   cfg.SizeOf,
		release:  cfg.Release,
		onChange: cfg.OnChange,
		metrics:  cfg.Metrics,
		reason:   ReasonSizeLimit,
	}
	if t.sizeOf == nil {
		t.sizeOf = func(V) int64 { return 0 }
	}

	// The underlying LRU never evicts on its own: the pre-insertion loop
	// keeps the count below MaxItems, so its capacity only needs headroom.
	capacity := math.MaxInt32
	if cfg.Budget.MaxItems > 0 {
		capacity = cfg.Budget.MaxItems + 1
	}

	lru, err := simplelru.NewLRU[asset.Key, V](capacity, t.dropped)
	if err != nil {
		return nil, err
	}
	t.lru = lru

	return t, nil
}

// dropped is the LRU eviction callback. Caller holds t.mu.
func (t *Tier[V]) dropped(key asset.Key, v V) {
	t.bytes -= t.sizeOf(v)
	if t.bytes < 0 {
		t.bytes = 0
	}
	if t.reason != ReasonReplaced {
		t.evictions++
	}
	if t.metrics != nil {
		t.metrics.RecordEviction(t.name, t.reason)
	}
	if t.release != nil {
		t.release(v)
	}
}

// Name returns the tier name.
func (t *Tier[V]) Name() string { return t.name }

// Budget returns the tier budget.
func (t *Tier[V]) Budget() Budget { return t.budget }

// Get returns the value for key and marks it most recently used.
func (t *Tier[V]) Get(key asset.Key) (V, bool) {
	t.mu.Lock()
	v, ok := t.lru.Get(key)
	if ok {
		t.hits++
	} else {
		t.misses++
	}
	t.mu.Unlock()

	if t.metrics != nil {
		if ok {
			t.metrics.RecordHit(t.name)
		} else {
			t.metrics.RecordMiss(t.name)
		}
	}
	return v, ok
}

// Peek returns the value for key without touching recency or hit counters.
func (t *Tier[V]) Peek(key asset.Key) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lru.Peek(key)
}

// Contains reports whether key is resident.
func (t *Tier[V]) Contains(key asset.Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lru.Contains(key)
}

// Put inserts v under key, evicting least recently used entries first until
// the new value fits. Returns the number of entries evicted to make room.
func (t *Tier[V]) Put(key asset.Key, v V) int {
	incoming := t.sizeOf(v)

	t.mu.Lock()
	if t.lru.Contains(key) {
		t.reason = ReasonReplaced
		t.lru.Remove(key)
	}

	t.reason = ReasonSizeLimit
	evicted := 0
	for t.lru.Len() > 0 && t.overBudget(incoming) {
		if _, _, ok := t.lru.RemoveOldest(); !ok {
			break
		}
		evicted++
	}

	t.lru.Add(key, v)
	t.bytes += incoming
	items, bytes := t.lru.Len(), t.bytes
	t.mu.Unlock()

	t.changed(items, bytes)
	return evicted
}

// overBudget reports whether inserting incoming bytes would break the budget.
// Caller holds t.mu.
func (t *Tier[V]) overBudget(incoming int64) bool {
	if t.budget.MaxItems > 0 && t.lru.Len() >= t.budget.MaxItems {
		return true
	}
	if t.budget.MaxBytes > 0 && t.bytes+incoming > t.budget.MaxBytes {
		return true
	}
	return false
}

// EvictOne removes the least recently used entry.
func (t *Tier[V]) EvictOne() (asset.Key, bool) {
	t.mu.Lock()
	t.reason = ReasonExplicit
	key, _, ok := t.lru.RemoveOldest()
	items, bytes := t.lru.Len(), t.bytes
	t.mu.Unlock()

	if ok {
		t.changed(items, bytes)
	}
	return key, ok
}

// Remove drops key if present.
func (t *Tier[V]) Remove(key asset.Key) bool {
	t.mu.Lock()
	t.reason = ReasonExplicit
	ok := t.lru.Remove(key)
	items, bytes := t.lru.Len(), t.bytes
	t.mu.Unlock()

	if ok {
		t.changed(items, bytes)
	}
	return ok
}

// Clear drops every entry.
func (t *Tier[V]) Clear() {
	t.mu.Lock()
	had := t.lru.Len() > 0
	t.reason = ReasonClear
	t.lru.Purge()
	t.bytes = 0
	t.mu.Unlock()

	if had {
		t.changed(0, 0)
	}
}

// Keys returns the resident keys, least recently used first.
func (t *Tier[V]) Keys() []asset.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lru.Keys()
}

// Len returns the number of resident entries.
func (t *Tier[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lru.Len()
}

// Bytes returns the accounted size of all resident entries.
func (t *Tier[V]) Bytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytes
}

// Stats returns a snapshot of the tier.
func (t *Tier[V]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Name:      t.name,
		Items:     t.lru.Len(),
		Bytes:     t.bytes,
		MaxItems:  t.budget.MaxItems,
		MaxBytes:  t.budget.MaxBytes,
		Hits:      t.hits,
		Misses:    t.misses,
		Evictions: t.evictions,
	}
}

// changed publishes a mutation. Caller must NOT hold t.mu.
func (t *Tier[V]) changed(items int, bytes int64) {
	if t.metrics != nil {
		t.metrics.RecordTierSize(t.name, items, bytes)
	}
	if t.onChange != nil {
		t.onChange()
	}
}
