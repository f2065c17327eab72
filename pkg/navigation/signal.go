// Package navigation publishes folder changes to the cache engine.
//
// Every change recomputes the AncestorSet (the folder and its parent chain
// up to Root) before any subscriber runs, so subscribers and pinning
// decisions always see the set for the folder being entered.
package navigation

import (
	"context"
	"slices"
	"sync"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/repository"
)

// Event describes one folder change.
type Event struct {
	Folder    repository.FolderID
	Previous  repository.FolderID
	First     bool // no folder was current before
	Ancestors []repository.FolderID
}

// Listener reacts to a folder change. Listeners run synchronously in
// subscription order and must not call Navigate.
type Listener func(ctx context.Context, ev Event)

// Signal is the navigation signal.
type Signal struct {
	repo repository.Repository

	// nav serialises Navigate so listeners see changes in order.
	nav sync.Mutex

	mu        sync.RWMutex
	current   repository.FolderID
	started   bool
	ancestors map[repository.FolderID]struct{}
	chain     []repository.FolderID
	listeners []Listener
}

// New creates a signal with no current folder.
func New(repo repository.Repository) *Signal {
	return &Signal{repo: repo, ancestors: map[repository.FolderID]struct{}{}}
}

// Subscribe appends l to the listener list.
func (s *Signal) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Navigate makes id current, recomputes the AncestorSet, and notifies
// listeners. Navigating to the folder that is already current is dropped
// and returns false.
func (s *Signal) Navigate(ctx context.Context, id repository.FolderID) bool {
	s.nav.Lock()
	defer s.nav.Unlock()

	s.mu.RLock()
	if s.started && s.current == id {
		s.mu.RUnlock()
		return false
	}
	s.mu.RUnlock()

	ctx, span := telemetry.StartFolderSpan(ctx, telemetry.SpanNavigate, int64(id))
	defer span.End()

	chain := repository.Ancestors(s.repo, id)
	set := make(map[repository.FolderID]struct{}, len(chain))
	for _, a := range chain {
		set[a] = struct{}{}
	}

	s.mu.Lock()
	ev := Event{Folder: id, Previous: s.current, First: !s.started, Ancestors: chain}
	s.current = id
	s.started = true
	s.ancestors = set
	s.chain = chain
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	logger.DebugCtx(ctx, "Folder changed",
		logger.KeyParentID, int64(ev.Previous),
		logger.KeyAncestors, len(chain))

	for _, l := range listeners {
		l(ctx, ev)
	}
	return true
}

// Current returns the current folder. ok is false before the first Navigate.
func (s *Signal) Current() (id repository.FolderID, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.started
}

// Ancestors returns the current AncestorSet, current folder first.
func (s *Signal) Ancestors() []repository.FolderID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chain)
}

// IsPinned reports whether id belongs to the current AncestorSet.
func (s *Signal) IsPinned(id repository.FolderID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ancestors[id]
	return ok
}
