// Package prefetch schedules predictive loads when the user changes folder.
//
// On a change to folder F the prefetcher, in order:
//  1. decodes every asset of F
//  2. decodes every asset of F's parent
//  3. previews the first MaxChildren child folders: up to Horizon assets of
//     each are decoded, the remainder only loaded into Tier 2
//  4. re-decodes the Tier-2-resident assets of other recent folder contexts
//
// Navigating to the same folder twice in a row is a no-op. A newer
// navigation cancels the waits of the previous plan; disk reads already
// issued run to completion and still populate the cache.
package prefetch

import (
	"context"
	"sync"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/foldertrack"
	"github.com/marmos91/tiercache/pkg/navigation"
	"github.com/marmos91/tiercache/pkg/repository"
)

// Config configures a Prefetcher.
type Config struct {
	// MaxChildren is how many child folders are previewed.
	MaxChildren int `mapstructure:"max_children" yaml:"max_children" validate:"gte=0"`

	// Horizon is how many assets of each previewed child are decoded.
	Horizon int `mapstructure:"horizon" yaml:"horizon" validate:"gte=0"`

	// Concurrency bounds the decode pool of each step.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=0"`

	// WarmRecent enables step 4.
	WarmRecent *bool `mapstructure:"warm_recent" yaml:"warm_recent,omitempty"`
}

// DefaultConfig returns 8 children, a horizon of 12, and 4 workers.
func DefaultConfig() Config {
	warm := true
	return Config{MaxChildren: 8, Horizon: 12, Concurrency: 4, WarmRecent: &warm}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.MaxChildren <= 0 {
		c.MaxChildren = d.MaxChildren
	}
	if c.Horizon <= 0 {
		c.Horizon = d.Horizon
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.WarmRecent == nil {
		c.WarmRecent = d.WarmRecent
	}
}

// Cache is the coordinator surface the prefetcher drives.
type Cache interface {
	PrewarmBatch(ctx context.Context, keys []asset.Key, concurrency int) int
	FetchBatch(ctx context.Context, keys []asset.Key, prio asset.Priority, concurrency int) int
	HasBytes(key asset.Key) bool
	Redecode(ctx context.Context, key asset.Key) bool
}

// Prefetcher turns folder changes into prewarm and fetch batches.
type Prefetcher struct {
	cfg     Config
	repo    repository.Repository
	cache   Cache
	tracker *foldertrack.Tracker

	mu      sync.Mutex
	last    repository.FolderID
	hasLast bool
	cancel  context.CancelFunc
	plan    Plan

	wg sync.WaitGroup
}

// New creates a prefetcher. tracker may be nil, which disables step 4.
func New(cfg Config, repo repository.Repository, cache Cache, tracker *foldertrack.Tracker) *Prefetcher {
	cfg.ApplyDefaults()
	return &Prefetcher{cfg: cfg, repo: repo, cache: cache, tracker: tracker}
}

// Plan computes the plan for folder without scheduling anything.
func (p *Prefetcher) Plan(folder repository.FolderID) Plan {
	return BuildPlan(p.repo, folder, p.cfg)
}

// OnNavigate is a navigation.Listener.
func (p *Prefetcher) OnNavigate(ctx context.Context, ev navigation.Event) {
	p.Navigate(ctx, ev.Folder)
}

// Navigate schedules the plan for folder in the background. It returns
// false when folder equals the previous navigation.
func (p *Prefetcher) Navigate(ctx context.Context, folder repository.FolderID) bool {
	plan := p.Plan(folder)

	p.mu.Lock()
	if p.hasLast && p.last == folder {
		p.mu.Unlock()
		return false
	}
	p.last = folder
	p.hasLast = true
	p.plan = plan
	runCtx := p.replaceLocked(ctx)
	p.mu.Unlock()

	logger.Debug("Prefetch plan scheduled",
		logger.FolderID(int64(folder)),
		"current", len(plan.Current),
		"parent", len(plan.ParentAssets),
		"children", len(plan.Children),
		"full", len(plan.FullFidelity()),
		"bytes_only", len(plan.BytesOnly()))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(runCtx, plan)
	}()
	return true
}

// PredictNavigation starts step 1 for folder ahead of the navigation that
// is about to happen. The following Navigate cancels its waits.
func (p *Prefetcher) PredictNavigation(ctx context.Context, folder repository.FolderID) {
	keys := p.repo.ImagePathsForFolder(folder)
	if len(keys) == 0 {
		return
	}

	p.mu.Lock()
	runCtx := p.replaceLocked(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, span := telemetry.StartFolderSpan(runCtx, telemetry.SpanPrefetchPlan, int64(folder),
			telemetry.BatchSize(len(keys)))
		defer span.End()
		p.cache.PrewarmBatch(ctx, keys, p.cfg.Concurrency)
	}()
}

// replaceLocked cancels the running plan and returns the context for the
// next one. Caller holds p.mu.
func (p *Prefetcher) replaceLocked(parent context.Context) context.Context {
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	p.cancel = cancel
	return ctx
}

// LastPlan returns the most recently scheduled plan.
func (p *Prefetcher) LastPlan() (Plan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plan, p.hasLast
}

// Wait blocks until every scheduled plan has returned.
func (p *Prefetcher) Wait() { p.wg.Wait() }

// Close cancels the running plan and waits for it.
func (p *Prefetcher) Close() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Prefetcher) run(ctx context.Context, plan Plan) {
	ctx, span := telemetry.StartFolderSpan(ctx, telemetry.SpanPrefetchPlan, int64(plan.Folder),
		telemetry.BatchSize(len(plan.FullFidelity())+len(plan.BytesOnly())))
	defer span.End()

	conc := p.cfg.Concurrency

	steps := []func() int{
		func() int { return p.cache.PrewarmBatch(ctx, plan.Current, conc) },
		func() int { return p.cache.PrewarmBatch(ctx, plan.ParentAssets, conc) },
		func() int { return p.cache.PrewarmBatch(ctx, plan.ChildHorizon(), conc) },
		func() int { return p.cache.FetchBatch(ctx, plan.BytesOnly(), asset.PriorityPrefetch, conc) },
		func() int { return p.warmRecent(ctx, plan.Folder) },
	}

	loaded := 0
	for _, step := range steps {
		if ctx.Err() != nil {
			logger.DebugCtx(ctx, "Prefetch plan superseded")
			return
		}
		loaded += step()
	}

	logger.DebugCtx(ctx, "Prefetch plan finished", "loaded", loaded)
}

// warmRecent re-decodes Tier-2-resident assets of other recent folders.
func (p *Prefetcher) warmRecent(ctx context.Context, current repository.FolderID) int {
	if p.tracker == nil || !*p.cfg.WarmRecent {
		return 0
	}

	n := 0
	for _, folder := range p.tracker.FoldersToWarm(current) {
		for _, key := range p.repo.ImagePathsForFolder(folder) {
			if ctx.Err() != nil {
				return n
			}
			if p.cache.HasBytes(key) && p.cache.Redecode(ctx, key) {
				n++
			}
		}
	}
	return n
}
