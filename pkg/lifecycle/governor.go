// Package lifecycle reacts to background, foreground, and memory-pressure
// signals.
//
// The policy is deliberately asymmetric:
//   - background: persist navigation state, evict nothing
//   - foreground: re-decode visible textures the OS reclaimed
//   - pressure while backgrounded: drop whole folder contexts, oldest first
//   - pressure while visible: evict a small fixed number of items
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/foldertrack"
	"github.com/marmos91/tiercache/pkg/repository"
)

// Pressure is the severity of a memory-pressure signal. It sets how many
// folder contexts a backgrounded governor pops.
type Pressure int

const (
	PressureModerate Pressure = iota + 1
	PressureHigh
	PressureCritical
)

// String returns the pressure name.
func (p Pressure) String() string {
	switch p {
	case PressureModerate:
		return "moderate"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return fmt.Sprintf("pressure(%d)", int(p))
	}
}

// State is the process visibility.
type State string

const (
	StateForeground State = "foreground"
	StateBackground State = "background"
)

// Config configures a Governor.
type Config struct {
	// ForegroundEvictCount is how many items a visible process evicts under
	// pressure, and the fallback when no folder context can be popped.
	ForegroundEvictCount int `mapstructure:"foreground_evict_count" yaml:"foreground_evict_count" validate:"gte=0"`

	// StateDir is the BadgerDB directory for NavState. Empty keeps state in
	// memory.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
}

// DefaultConfig evicts 25 items under foreground pressure.
func DefaultConfig() Config {
	return Config{ForegroundEvictCount: 25}
}

// Cache is the coordinator surface the governor drives.
type Cache interface {
	HasBytes(key asset.Key) bool
	HasTexture(key asset.Key) bool
	Redecode(ctx context.Context, key asset.Key) bool
	EvictAssets(keys []asset.Key) int
	EvictItems(n int) int
}

// Navigator exposes the current folder and the pinning set.
type Navigator interface {
	Current() (repository.FolderID, bool)
	IsPinned(id repository.FolderID) bool
}

// Governor applies the lifecycle policy.
type Governor struct {
	cfg     Config
	cache   Cache
	tracker *foldertrack.Tracker
	repo    repository.Repository
	nav     Navigator
	store   StateStore

	mu           sync.Mutex
	backgrounded bool
	visible      []asset.Key
	scroll       float64
}

// New creates a foregrounded governor.
func New(cfg Config, cache Cache, tracker *foldertrack.Tracker, repo repository.Repository, nav Navigator, store StateStore) *Governor {
	if cfg.ForegroundEvictCount <= 0 {
		cfg.ForegroundEvictCount = DefaultConfig().ForegroundEvictCount
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Governor{cfg: cfg, cache: cache, tracker: tracker, repo: repo, nav: nav, store: store}
}

// State returns the current visibility.
func (g *Governor) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.backgrounded {
		return StateBackground
	}
	return StateForeground
}

// IsBackgrounded reports whether the process is in the background.
func (g *Governor) IsBackgrounded() bool { return g.State() == StateBackground }

// SetVisible records the keys currently on screen.
func (g *Governor) SetVisible(keys []asset.Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.visible = slices.Clone(keys)
}

// Visible returns the keys currently on screen.
func (g *Governor) Visible() []asset.Key {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.visible)
}

// SetScrollOffset records the scroll position persisted on background.
func (g *Governor) SetScrollOffset(offset float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scroll = offset
}

// OnBackground persists navigation state. It never evicts.
func (g *Governor) OnBackground(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLifecycleBackground)
	defer span.End()

	g.mu.Lock()
	g.backgrounded = true
	state := NavState{
		ScrollOffset: g.scroll,
		Visible:      slices.Clone(g.visible),
		SavedAt:      time.Now(),
	}
	g.mu.Unlock()

	if g.nav != nil {
		state.Folder, state.HasFolder = g.nav.Current()
	}

	if err := g.store.Save(ctx, state); err != nil {
		logger.ErrorCtx(ctx, "Failed to persist navigation state", logger.Err(err))
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("persist navigation state: %w", err)
	}

	logger.InfoCtx(ctx, "Entered background; caches kept",
		logger.State(string(StateBackground)),
		logger.FolderID(int64(state.Folder)))
	return nil
}

// OnForeground re-decodes every visible asset whose bytes are resident but
// whose texture is gone. It returns how many textures were restored.
func (g *Governor) OnForeground(ctx context.Context) int {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLifecycleForeground)
	defer span.End()

	g.mu.Lock()
	g.backgrounded = false
	visible := slices.Clone(g.visible)
	g.mu.Unlock()

	restored := 0
	for _, key := range visible {
		if !g.cache.HasBytes(key) || g.cache.HasTexture(key) {
			continue
		}
		if g.cache.Redecode(ctx, key) {
			restored++
		}
	}

	logger.InfoCtx(ctx, "Entered foreground",
		logger.State(string(StateForeground)),
		"visible", len(visible),
		"restored", restored)
	return restored
}

// OnMemoryPressure evicts according to visibility and returns how many
// entries left the caches.
//
// Backgrounded, it pops up to level (1-3) of the oldest folder contexts not
// in the current AncestorSet and evicts both tiers for their assets, falling
// back to EvictItems when nothing can be popped. Foregrounded, it evicts
// ForegroundEvictCount items.
func (g *Governor) OnMemoryPressure(ctx context.Context, level Pressure) int {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLifecyclePressure)
	defer span.End()

	level = max(PressureModerate, min(level, PressureCritical))

	if !g.IsBackgrounded() {
		n := g.cache.EvictItems(g.cfg.ForegroundEvictCount)
		logger.WarnCtx(ctx, "Memory pressure while visible",
			"level", level.String(),
			logger.Evicted(n))
		span.SetAttributes(telemetry.CacheEvicted(n))
		return n
	}

	var popped []repository.FolderID
	if g.tracker != nil {
		popped = g.tracker.PopOldest(int(level), g.pinned)
	}

	if len(popped) == 0 {
		n := g.cache.EvictItems(g.cfg.ForegroundEvictCount)
		logger.WarnCtx(ctx, "Memory pressure in background; no folder context to drop",
			"level", level.String(),
			logger.Evicted(n))
		span.SetAttributes(telemetry.CacheEvicted(n))
		return n
	}

	var keys []asset.Key
	for _, folder := range popped {
		keys = append(keys, g.repo.ImagePathsForFolder(folder)...)
	}
	n := g.cache.EvictAssets(keys)

	logger.WarnCtx(ctx, "Memory pressure in background; dropped folder contexts",
		"level", level.String(),
		logger.KeyContexts, len(popped),
		logger.Evicted(n))
	span.SetAttributes(telemetry.CacheEvicted(n))
	return n
}

// pinned protects the current folder and its ancestors.
func (g *Governor) pinned(id repository.FolderID) bool {
	if g.nav == nil {
		return false
	}
	if cur, ok := g.nav.Current(); ok && cur == id {
		return true
	}
	return g.nav.IsPinned(id)
}

// Restore loads the persisted state and applies its visible set and scroll
// offset. It returns ErrNoState when nothing was saved.
func (g *Governor) Restore(ctx context.Context) (NavState, error) {
	state, err := g.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoState) {
			logger.ErrorCtx(ctx, "Failed to load navigation state", logger.Err(err))
		}
		return NavState{}, err
	}

	g.mu.Lock()
	g.visible = slices.Clone(state.Visible)
	g.scroll = state.ScrollOffset
	g.mu.Unlock()

	logger.InfoCtx(ctx, "Navigation state restored",
		logger.FolderID(int64(state.Folder)),
		"saved_at", state.SavedAt)
	return state, nil
}

// Close closes the state store.
func (g *Governor) Close() error { return g.store.Close() }
