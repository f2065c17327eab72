package pipeline

import (
	"sync"
	"sync/atomic"
)

// Notifier is the cache-changed signal: a monotonically increasing revision
// plus a coalescing fan-out to subscribers.
//
// Subscribers get a buffered channel of size one. A slow subscriber misses
// intermediate revisions but always sees that something changed, and can read
// the latest value with Revision.
type Notifier struct {
	rev atomic.Uint64

	mu   sync.Mutex
	subs map[int]chan uint64
	next int
}

// NewNotifier creates a notifier at revision zero.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan uint64)}
}

// Bump increments the revision and notifies subscribers without blocking.
func (n *Notifier) Bump() uint64 {
	rev := n.rev.Add(1)

	n.mu.Lock()
	for _, ch := range n.subs {
		select {
		case ch <- rev:
		default:
		}
	}
	n.mu.Unlock()

	return rev
}

// Revision returns the current revision.
func (n *Notifier) Revision() uint64 {
	return n.rev.Load()
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel.
func (n *Notifier) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
