// Package foldertrack keeps the short list of recently visited folders used
// for re-warming and for choosing what to drop under memory pressure.
package foldertrack

import (
	"slices"
	"sync"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/repository"
)

// DefaultCapacity is the number of folder contexts kept.
const DefaultCapacity = 5

// Tracker is a bounded most-recently-visited queue of folders.
// All methods are safe for concurrent use.
type Tracker struct {
	capacity int

	mu     sync.Mutex
	recent []repository.FolderID // front is most recent
}

// New creates a tracker holding at most capacity folders. capacity <= 0
// uses DefaultCapacity.
func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{capacity: capacity, recent: make([]repository.FolderID, 0, capacity)}
}

// Capacity returns the maximum number of tracked folders.
func (t *Tracker) Capacity() int { return t.capacity }

// RecordVisit moves id to the front, dropping the oldest folder when full.
func (t *Tracker) RecordVisit(id repository.FolderID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := slices.Index(t.recent, id); i >= 0 {
		t.recent = slices.Delete(t.recent, i, i+1)
	}
	t.recent = slices.Insert(t.recent, 0, id)

	if len(t.recent) > t.capacity {
		dropped := t.recent[t.capacity:]
		logger.Debug("Folder context dropped from tracker", logger.FolderID(int64(dropped[0])))
		t.recent = t.recent[:t.capacity]
	}
}

// Recent returns tracked folders, most recent first.
func (t *Tracker) Recent() []repository.FolderID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.recent)
}

// EvictionOrder returns tracked folders, oldest first.
func (t *Tracker) EvictionOrder() []repository.FolderID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := slices.Clone(t.recent)
	slices.Reverse(out)
	return out
}

// FoldersToWarm returns up to Capacity-1 tracked folders other than current,
// most recent first.
func (t *Tracker) FoldersToWarm(current repository.FolderID) []repository.FolderID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]repository.FolderID, 0, t.capacity-1)
	for _, id := range t.recent {
		if id == current {
			continue
		}
		out = append(out, id)
		if len(out) == t.capacity-1 {
			break
		}
	}
	return out
}

// PopOldest removes up to n of the oldest folders for which pinned returns
// false and returns them, oldest first. A nil pinned pins nothing.
func (t *Tracker) PopOldest(n int, pinned func(repository.FolderID) bool) []repository.FolderID {
	if n <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var popped []repository.FolderID
	for i := len(t.recent) - 1; i >= 0 && len(popped) < n; i-- {
		id := t.recent[i]
		if pinned != nil && pinned(id) {
			continue
		}
		popped = append(popped, id)
		t.recent = slices.Delete(t.recent, i, i+1)
	}
	return popped
}

// Remove forgets id.
func (t *Tracker) Remove(id repository.FolderID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := slices.Index(t.recent, id); i >= 0 {
		t.recent = slices.Delete(t.recent, i, i+1)
		return true
	}
	return false
}

// Contains reports whether id is tracked.
func (t *Tracker) Contains(id repository.FolderID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Contains(t.recent, id)
}

// Len returns the number of tracked folders.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.recent)
}
