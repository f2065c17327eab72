// Package pipeline implements the coordinator that sits between the UI and
// the cache tiers.
//
// Reads go Tier 2 first and fall back to the disk worker on a miss, with at
// most one in-flight load per key. Writes land in Tier 2 synchronously and are
// persisted asynchronously. Every tier mutation bumps the cache-changed
// revision so the UI can repaint.
//
// Concurrent fetches for one key share a per-key completion registered by the
// first requester and resolved by the response dispatcher, so no caller ever
// polls.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/cache"
	"github.com/marmos91/tiercache/pkg/diskworker"
)

var (
	// ErrFetchTimeout is logged when a fetch wait exceeds FetchTimeout.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrWorkerUnavailable is logged when no running disk worker can serve a request.
	ErrWorkerUnavailable = errors.New("disk worker unavailable")
)

// DiskWorker is the coordinator's view of the disk worker.
type DiskWorker interface {
	Submit(req diskworker.Request) bool
	Responses() <-chan diskworker.Response
	Started() bool
}

// Config configures a Coordinator.
type Config struct {
	// FetchTimeout bounds how long Fetch waits for a disk load.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout" validate:"gte=0"`

	// MemoryClass forces a device class: auto, generous, or constrained.
	MemoryClass string `mapstructure:"memory_class" yaml:"memory_class" validate:"omitempty,oneof=auto generous constrained"`

	// ConstrainedThreshold is the total RAM below which auto resolves to constrained.
	ConstrainedThreshold uint64 `mapstructure:"constrained_threshold" yaml:"constrained_threshold"`

	// Budgets holds the per-class tier budgets.
	Budgets BudgetConfig `mapstructure:"budgets" yaml:"budgets"`

	// PrewarmConcurrency is the default pool size for batch operations.
	PrewarmConcurrency int `mapstructure:"prewarm_concurrency" yaml:"prewarm_concurrency" validate:"gte=0"`
}

// DefaultConfig returns a 5s fetch timeout, auto classification, and the
// default budgets.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:         5 * time.Second,
		MemoryClass:          string(ClassAuto),
		ConstrainedThreshold: DefaultConstrainedThreshold,
		Budgets:              DefaultBudgetConfig(),
		PrewarmConcurrency:   4,
	}
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.MemoryClass == "" {
		c.MemoryClass = d.MemoryClass
	}
	if c.ConstrainedThreshold == 0 {
		c.ConstrainedThreshold = d.ConstrainedThreshold
	}
	if c.Budgets == (BudgetConfig{}) {
		c.Budgets = d.Budgets
	}
	if c.PrewarmConcurrency <= 0 {
		c.PrewarmConcurrency = d.PrewarmConcurrency
	}
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithDecoder replaces the texture decoder.
func WithDecoder(d Decoder) Option {
	return func(c *Coordinator) { c.decode = d }
}

// WithMetrics enables coordinator metrics.
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCacheMetrics enables tier metrics.
func WithCacheMetrics(m cache.CacheMetrics) Option {
	return func(c *Coordinator) { c.cacheMetrics = m }
}

// WithRAMProbe replaces the total-RAM probe used by auto classification.
func WithRAMProbe(probe func() uint64) Option {
	return func(c *Coordinator) { c.probe = probe }
}

// pendingLoad is the completion shared by every caller waiting on one key.
type pendingLoad struct {
	id      string
	key     asset.Key
	gen     uint64
	done    chan struct{}
	data    []byte
	ok      bool
	waiters int
}

// Coordinator routes reads and writes between the UI, the tiers, and the disk worker.
type Coordinator struct {
	cfg      Config
	class    MemoryClass
	bytes    *cache.ByteTier
	textures *cache.TextureTier
	worker   DiskWorker
	notifier *Notifier

	decode       Decoder
	metrics      Metrics
	cacheMetrics cache.CacheMetrics
	probe        func() uint64

	decodes singleflight.Group

	mu          sync.Mutex
	pending     map[asset.Key]*pendingLoad
	loads       map[string]*pendingLoad
	writes      map[string]*WriteConfirmation
	latestWrite map[asset.Key]*WriteConfirmation

	// ingestMu serialises ingests with tier installs that depend on the
	// bytes they were derived from. gens counts ingests per key; a decode
	// or late load started at an older generation must not install.
	ingestMu sync.Mutex
	gens     map[asset.Key]uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a coordinator. worker may be nil, in which case every fetch
// misses and every ingest is written synchronously.
func New(cfg Config, worker DiskWorker, opts ...Option) (*Coordinator, error) {
	cfg.ApplyDefaults()

	configured, err := ParseMemoryClass(cfg.MemoryClass)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:         cfg,
		worker:      worker,
		notifier:    NewNotifier(),
		decode:      DecodeImage,
		pending:     make(map[asset.Key]*pendingLoad),
		loads:       make(map[string]*pendingLoad),
		writes:      make(map[string]*WriteConfirmation),
		latestWrite: make(map[asset.Key]*WriteConfirmation),
		gens:        make(map[asset.Key]uint64),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.class = ResolveClass(configured, cfg.ConstrainedThreshold, c.probe)
	budgets := BudgetsFor(c.class, cfg.Budgets)

	onChange := func() { c.notifier.Bump() }

	c.bytes, err = cache.NewByteTier(budgets.Bytes, c.cacheMetrics, onChange)
	if err != nil {
		return nil, err
	}
	c.textures, err = cache.NewTextureTier(budgets.Textures, c.cacheMetrics, onChange)
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline coordinator created",
		logger.KeyMemClass, string(c.class),
		"bytes_max_items", budgets.Bytes.MaxItems,
		"bytes_max_bytes", budgets.Bytes.MaxBytes,
		"texture_max_bytes", budgets.Textures.MaxBytes,
		"fetch_timeout", cfg.FetchTimeout)

	return c, nil
}

// Start launches the response dispatcher. It is a no-op without a worker or
// when called twice.
func (c *Coordinator) Start(_ context.Context) {
	c.startOnce.Do(func() {
		if c.worker == nil {
			close(c.doneCh)
			return
		}
		go c.dispatch()
	})
}

// Close stops the dispatcher and resolves every outstanding load as a miss
// and every outstanding write as failed.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	// Without a running dispatcher nothing else closes doneCh.
	c.startOnce.Do(func() { close(c.doneCh) })
	<-c.doneCh

	c.failOutstanding()
}

// MemoryClass returns the class chosen at construction.
func (c *Coordinator) MemoryClass() MemoryClass { return c.class }

// Revision returns the cache-changed counter.
func (c *Coordinator) Revision() uint64 { return c.notifier.Revision() }

// Subscribe registers for cache-changed notifications.
func (c *Coordinator) Subscribe() (<-chan uint64, func()) { return c.notifier.Subscribe() }

// Bytes returns the Tier-2 bytes for key and marks them recently used.
// The slice must not be modified.
func (c *Coordinator) Bytes(key asset.Key) ([]byte, bool) {
	return c.bytes.Get(key)
}

// Texture returns a retained Tier-0 handle. The caller must Release it.
func (c *Coordinator) Texture(key asset.Key) (*asset.Texture, bool) {
	return c.textures.Get(key)
}

// HasBytes reports whether key is resident in Tier 2.
func (c *Coordinator) HasBytes(key asset.Key) bool { return c.bytes.Contains(key) }

// HasTexture reports whether key is resident in Tier 0.
func (c *Coordinator) HasTexture(key asset.Key) bool { return c.textures.Contains(key) }

// dispatch routes worker responses to waiting loads and writes.
func (c *Coordinator) dispatch() {
	defer close(c.doneCh)

	responses := c.worker.Responses()
	for {
		select {
		case resp, ok := <-responses:
			if !ok {
				logger.Debug("Disk worker response stream closed")
				c.failOutstanding()
				return
			}
			c.handle(resp)
		case <-c.stopCh:
			return
		}
	}
}

// handle applies one worker response.
func (c *Coordinator) handle(resp diskworker.Response) {
	switch r := resp.Result.(type) {
	case diskworker.ImageLoaded:
		c.resolveLoad(resp.CommandID, c.installLoaded(resp.CommandID, r), true)

	case diskworker.Error:
		c.mu.Lock()
		_, isLoad := c.loads[resp.CommandID]
		c.mu.Unlock()
		if isLoad {
			logger.Debug("Asset load failed",
				logger.KeyKey, r.Path.String(),
				logger.KeyCommandID, resp.CommandID,
				logger.KeyReason, r.Reason)
			c.resolveLoad(resp.CommandID, nil, false)
		} else {
			logger.Warn("Disk command failed",
				logger.KeyKey, r.Path.String(),
				logger.KeyCommandID, resp.CommandID,
				logger.KeyReason, r.Reason)
		}

	case diskworker.FileSaved:
		c.resolveWrite(resp.CommandID, r.Success)

	default:
		logger.Warn("Unexpected disk worker response", logger.KeyCommandID, resp.CommandID)
	}
}

// installLoaded inserts loaded bytes into Tier 2 unless an ingest of the
// same key landed after the load was registered, in which case the ingested
// bytes win and are returned instead. Insertion happens before the load
// resolves so woken waiters see a Tier-2 hit.
func (c *Coordinator) installLoaded(id string, r diskworker.ImageLoaded) []byte {
	c.mu.Lock()
	p, known := c.loads[id]
	c.mu.Unlock()

	c.ingestMu.Lock()
	defer c.ingestMu.Unlock()

	if known && c.gens[r.Path] != p.gen {
		if fresh, ok := c.bytes.Peek(r.Path); ok {
			return fresh
		}
	}
	c.bytes.Put(r.Path, r.Bytes)
	return r.Bytes
}

// generation returns how many times key has been ingested.
func (c *Coordinator) generation(key asset.Key) uint64 {
	c.ingestMu.Lock()
	defer c.ingestMu.Unlock()
	return c.gens[key]
}

// resolveLoad completes the pending load registered under id, if any.
func (c *Coordinator) resolveLoad(id string, data []byte, ok bool) {
	c.mu.Lock()
	p, known := c.loads[id]
	if !known {
		c.mu.Unlock()
		return
	}
	delete(c.loads, id)
	// A timeout may already have cleared the marker; callers that joined
	// before it still wait on p.
	if c.pending[p.key] == p {
		delete(c.pending, p.key)
	}
	loads, writes := len(c.pending), len(c.writes)
	c.mu.Unlock()

	c.recordPending(loads, writes)

	p.data = data
	p.ok = ok
	close(p.done)
}

// resolveWrite completes the write confirmation registered under id.
func (c *Coordinator) resolveWrite(id string, success bool) {
	c.mu.Lock()
	conf, known := c.writes[id]
	if known {
		delete(c.writes, id)
		if c.latestWrite[conf.key] == conf {
			delete(c.latestWrite, conf.key)
		}
	}
	loads, writes := len(c.pending), len(c.writes)
	c.mu.Unlock()

	if !known {
		return
	}

	c.recordPending(loads, writes)

	if success {
		c.recordWrite(WriteOK)
	} else {
		c.recordWrite(WriteFailed)
		logger.Error("Asset write failed; keeping in-memory copy", logger.KeyKey, conf.key.String())
	}
	conf.resolve(success)
}

// failOutstanding resolves every pending load and write as failed.
func (c *Coordinator) failOutstanding() {
	c.mu.Lock()
	loads := c.loads
	writes := c.writes
	c.pending = make(map[asset.Key]*pendingLoad)
	c.loads = make(map[string]*pendingLoad)
	c.writes = make(map[string]*WriteConfirmation)
	c.latestWrite = make(map[asset.Key]*WriteConfirmation)
	c.mu.Unlock()

	for _, p := range loads {
		close(p.done)
	}
	for _, w := range writes {
		w.resolve(false)
	}
	c.recordPending(0, 0)
}

// workerRunning reports whether the worker can serve requests.
func (c *Coordinator) workerRunning() bool {
	return c.worker != nil && c.worker.Started()
}

func (c *Coordinator) recordPending(loads, writes int) {
	if c.metrics != nil {
		c.metrics.RecordPending(loads, writes)
	}
}

func (c *Coordinator) recordWrite(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordWrite(outcome)
	}
}
