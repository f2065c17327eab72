// Package engine wires the cache components into one runnable unit.
//
// Wiring:
//
//	navigation.Signal ──► foldertrack.Tracker (RecordVisit)
//	                  └─► prefetch.Prefetcher ──► pipeline.Coordinator ──► diskworker.Worker
//	lifecycle.Governor ──► pipeline.Coordinator, foldertrack.Tracker, StateStore
//
// The tracker subscribes before the prefetcher so step 4 of a plan already
// sees the folder being entered as the most recent context.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/diskworker"
	"github.com/marmos91/tiercache/pkg/foldertrack"
	"github.com/marmos91/tiercache/pkg/lifecycle"
	"github.com/marmos91/tiercache/pkg/metrics"
	"github.com/marmos91/tiercache/pkg/navigation"
	"github.com/marmos91/tiercache/pkg/pipeline"
	"github.com/marmos91/tiercache/pkg/prefetch"
	"github.com/marmos91/tiercache/pkg/repository"
)

// DefaultStopTimeout bounds the worker drain on Close when ctx has no deadline.
const DefaultStopTimeout = 5 * time.Second

// Option customises an Engine.
type Option func(*options)

type options struct {
	store    lifecycle.StateStore
	pipeline []pipeline.Option
	noWorker bool
}

// WithStateStore overrides the store selected by Lifecycle.StateDir.
func WithStateStore(s lifecycle.StateStore) Option {
	return func(o *options) { o.store = s }
}

// WithPipelineOptions passes options to the coordinator.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) { o.pipeline = append(o.pipeline, opts...) }
}

// WithoutWorker runs the coordinator with no disk worker: fetches miss and
// ingest writes happen synchronously.
func WithoutWorker() Option {
	return func(o *options) { o.noWorker = true }
}

// Engine owns every component and exposes the operations the UI drives.
type Engine struct {
	repo        repository.Repository
	worker      *diskworker.Worker
	coordinator *pipeline.Coordinator
	tracker     *foldertrack.Tracker
	nav         *navigation.Signal
	prefetcher  *prefetch.Prefetcher
	governor    *lifecycle.Governor

	closeOnce sync.Once
	closeErr  error
}

// New builds the engine. Metrics are collected when metrics.InitRegistry was
// called beforehand.
func New(cfg Config, repo repository.Repository, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("engine: repository is required")
	}
	cfg.ApplyDefaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{repo: repo}

	var worker pipeline.DiskWorker
	if !o.noWorker {
		e.worker = diskworker.New(cfg.Worker, metrics.NewWorkerMetrics())
		worker = e.worker
	}

	popts := []pipeline.Option{
		pipeline.WithMetrics(metrics.NewPipelineMetrics()),
		pipeline.WithCacheMetrics(metrics.NewCacheMetrics()),
	}
	coordinator, err := pipeline.New(cfg.Pipeline, worker, append(popts, o.pipeline...)...)
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}
	e.coordinator = coordinator

	store := o.store
	if store == nil {
		if cfg.Lifecycle.StateDir != "" {
			bs, err := lifecycle.OpenBadgerStore(cfg.Lifecycle.StateDir)
			if err != nil {
				return nil, err
			}
			store = bs
		} else {
			store = lifecycle.NewMemoryStore()
		}
	}

	e.tracker = foldertrack.New(cfg.Tracker.Capacity)
	e.nav = navigation.New(repo)
	e.prefetcher = prefetch.New(cfg.Prefetch, repo, coordinator, e.tracker)
	e.governor = lifecycle.New(cfg.Lifecycle, coordinator, e.tracker, repo, e.nav, store)

	e.nav.Subscribe(func(_ context.Context, ev navigation.Event) {
		e.tracker.RecordVisit(ev.Folder)
	})
	e.nav.Subscribe(e.prefetcher.OnNavigate)

	return e, nil
}

// Start launches the disk worker and the response dispatcher, then restores
// persisted navigation state. A restored folder is navigated to, which
// schedules its prefetch plan.
func (e *Engine) Start(ctx context.Context) error {
	if e.worker != nil {
		e.worker.Start(ctx)
	}
	e.coordinator.Start(ctx)

	state, err := e.governor.Restore(ctx)
	switch {
	case errors.Is(err, lifecycle.ErrNoState):
		return nil
	case err != nil:
		return fmt.Errorf("restore navigation state: %w", err)
	}

	if state.HasFolder {
		e.Navigate(ctx, state.Folder)
	}
	return nil
}

// Close stops prefetching, drains the worker, resolves outstanding work, and
// closes the state store. The worker drain is bounded by ctx's deadline.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.prefetcher.Close()

		if e.worker != nil {
			timeout := DefaultStopTimeout
			if deadline, ok := ctx.Deadline(); ok {
				timeout = time.Until(deadline)
			}
			e.worker.Stop(timeout)
		}
		e.coordinator.Close()

		if err := e.governor.Close(); err != nil {
			e.closeErr = fmt.Errorf("close state store: %w", err)
		}
		logger.Info("Cache engine stopped")
	})
	return e.closeErr
}

// Navigate makes folder current. It returns false when folder already is.
func (e *Engine) Navigate(ctx context.Context, folder repository.FolderID) bool {
	return e.nav.Navigate(ctx, folder)
}

// PredictNavigation starts warming folder ahead of a likely navigation.
func (e *Engine) PredictNavigation(ctx context.Context, folder repository.FolderID) {
	e.prefetcher.PredictNavigation(ctx, folder)
}

// Fetch returns the bytes for key, loading them from disk on a miss.
func (e *Engine) Fetch(ctx context.Context, key asset.Key, prio asset.Priority) ([]byte, bool) {
	return e.coordinator.Fetch(ctx, key, prio)
}

// Prewarm makes a texture for key available.
func (e *Engine) Prewarm(ctx context.Context, key asset.Key) bool {
	return e.coordinator.Prewarm(ctx, key)
}

// Texture returns a retained texture handle the caller must Release.
func (e *Engine) Texture(key asset.Key) (*asset.Texture, bool) {
	return e.coordinator.Texture(key)
}

// Ingest makes freshly captured bytes visible and persists them.
func (e *Engine) Ingest(key asset.Key, data []byte) *pipeline.WriteConfirmation {
	return e.coordinator.IngestImmediate(key, data)
}

// SetVisible records the assets on screen.
func (e *Engine) SetVisible(keys []asset.Key) { e.governor.SetVisible(keys) }

// SetScrollOffset records the scroll position.
func (e *Engine) SetScrollOffset(offset float64) { e.governor.SetScrollOffset(offset) }

// OnBackground persists navigation state.
func (e *Engine) OnBackground(ctx context.Context) error { return e.governor.OnBackground(ctx) }

// OnForeground restores textures for visible assets.
func (e *Engine) OnForeground(ctx context.Context) int { return e.governor.OnForeground(ctx) }

// OnMemoryPressure evicts according to visibility.
func (e *Engine) OnMemoryPressure(ctx context.Context, level lifecycle.Pressure) int {
	return e.governor.OnMemoryPressure(ctx, level)
}

// Coordinator returns the pipeline coordinator.
func (e *Engine) Coordinator() *pipeline.Coordinator { return e.coordinator }

// Prefetcher returns the prefetcher.
func (e *Engine) Prefetcher() *prefetch.Prefetcher { return e.prefetcher }

// Governor returns the lifecycle governor.
func (e *Engine) Governor() *lifecycle.Governor { return e.governor }

// Tracker returns the folder context tracker.
func (e *Engine) Tracker() *foldertrack.Tracker { return e.tracker }

// Navigation returns the navigation signal.
func (e *Engine) Navigation() *navigation.Signal { return e.nav }
