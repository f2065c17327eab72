package pipeline

import (
	"context"
	"sync"

	"github.com/marmos91/tiercache/pkg/asset"
)

// WriteConfirmation resolves once an ingested asset has been persisted, or
// has failed to be. It resolves exactly once.
type WriteConfirmation struct {
	key  asset.Key
	done chan struct{}

	once sync.Once
	mu   sync.Mutex
	ok   bool
}

func newWriteConfirmation(key asset.Key) *WriteConfirmation {
	return &WriteConfirmation{key: key, done: make(chan struct{})}
}

func (w *WriteConfirmation) resolve(ok bool) {
	w.once.Do(func() {
		w.mu.Lock()
		w.ok = ok
		w.mu.Unlock()
		close(w.done)
	})
}

// Key returns the asset being written.
func (w *WriteConfirmation) Key() asset.Key { return w.key }

// Done is closed when the write resolves.
func (w *WriteConfirmation) Done() <-chan struct{} { return w.done }

// Wait blocks until the write resolves or ctx ends. It returns the write
// outcome, or false if ctx ended first.
func (w *WriteConfirmation) Wait(ctx context.Context) bool {
	select {
	case <-w.done:
		ok, _ := w.Result()
		return ok
	case <-ctx.Done():
		return false
	}
}

// Result returns the outcome and whether it is known yet.
func (w *WriteConfirmation) Result() (ok, resolved bool) {
	select {
	case <-w.done:
	default:
		return false, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ok, true
}
