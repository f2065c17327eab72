// Package diskworker implements the single long-lived actor that performs all
// disk I/O for the asset cache.
//
// The worker is reached only through Submit and Responses. Nothing is shared
// with callers: SaveToFile payloads are copied on submit and loaded bytes are
// freshly allocated, so a slice on one side is never visible to the other.
//
// Priority order (highest to lowest):
//  1. Interactive and normal loads - the user is waiting for pixels
//  2. Saves - capture durability
//  3. Prefetch loads and thumbnails - speculative work
//
// Executors check lanes in priority order, so interactive loads are always
// served first even when the save or prefetch lanes are full.
package diskworker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/asset"
)

// Lane names used in logs and metrics.
const (
	LaneInteractive = "interactive"
	LaneSave        = "save"
	LanePrefetch    = "prefetch"
)

// Config configures a Worker.
type Config struct {
	// QueueSize is the capacity of each priority lane.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" validate:"gte=0"`

	// Executors is the number of goroutines draining the lanes.
	Executors int `mapstructure:"executors" yaml:"executors" validate:"gte=0"`

	// ResponseBuffer is the capacity of the response channel.
	ResponseBuffer int `mapstructure:"response_buffer" yaml:"response_buffer" validate:"gte=0"`

	// Codec configures recompression on load.
	Codec CodecConfig `mapstructure:"codec" yaml:"codec"`
}

// DefaultConfig returns a single-executor worker with default lanes.
func DefaultConfig() Config {
	return Config{
		QueueSize:      256,
		Executors:      1,
		ResponseBuffer: 256,
		Codec:          DefaultCodecConfig(),
	}
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Executors <= 0 {
		c.Executors = d.Executors
	}
	if c.ResponseBuffer <= 0 {
		c.ResponseBuffer = d.ResponseBuffer
	}
	if c.Codec.MaxDimension <= 0 {
		c.Codec.MaxDimension = d.Codec.MaxDimension
	}
	if c.Codec.Quality <= 0 {
		c.Codec.Quality = d.Codec.Quality
	}
}

// Worker executes disk commands off the caller's goroutine.
type Worker struct {
	codec   *codec
	metrics Metrics

	// Priority lanes - executors check in priority order
	interactive chan Request
	saves       chan Request
	prefetch    chan Request

	responses chan Response

	executors int
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu                 sync.Mutex
	started            bool
	stopped            bool
	pendingInteractive int
	pendingSave        int
	pendingPrefetch    int
	completed          int
	failed             int
	lastError          error
	lastErrorAt        time.Time
}

// New creates a worker. Call Start before submitting work that must be served.
func New(cfg Config, metrics Metrics) *Worker {
	cfg.ApplyDefaults()

	return &Worker{
		codec:       newCodec(cfg.Codec),
		metrics:     metrics,
		interactive: make(chan Request, cfg.QueueSize),
		saves:       make(chan Request, cfg.QueueSize),
		prefetch:    make(chan Request, cfg.QueueSize),
		responses:   make(chan Response, cfg.ResponseBuffer),
		executors:   cfg.Executors,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Start launches the executors. Calling Start more than once is a no-op.
func (w *Worker) Start(_ context.Context) {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	logger.Info("Starting disk worker", "executors", w.executors)

	for i := 0; i < w.executors; i++ {
		w.wg.Add(1)
		go w.run(i)
	}

	// Close the response stream once every executor has exited.
	go func() {
		w.wg.Wait()
		close(w.responses)
		close(w.stoppedCh)
	}()
}

// Started reports whether Start was called and Stop was not.
func (w *Worker) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.stopped
}

// Stop stops accepting work, drains queued requests, and waits up to timeout
// for the executors to exit. The Responses channel is closed once they have.
func (w *Worker) Stop(timeout time.Duration) {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.stopped = true
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	logger.Info("Stopping disk worker", logger.KeyPending, w.Pending())

	close(w.stopCh)

	select {
	case <-w.stoppedCh:
		logger.Info("Disk worker stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("Disk worker stop timed out", logger.KeyPending, w.Pending())
	}
}

// Responses returns the stream of command results. It is closed after Stop.
func (w *Worker) Responses() <-chan Response {
	return w.responses
}

// Submit enqueues req without blocking. Returns false if the worker is stopped
// or the request's lane is full.
func (w *Worker) Submit(req Request) bool {
	return w.TrySubmit(req) == nil
}

// TrySubmit is Submit with the failure reason: ErrWorkerStopped or ErrQueueFull.
func (w *Worker) TrySubmit(req Request) error {
	if req.Command == nil || req.ID == "" {
		return errors.New("diskworker: request needs an id and a command")
	}

	// Copy payloads so the caller may reuse its slice.
	if save, ok := req.Command.(SaveToFile); ok {
		save.Bytes = bytes.Clone(save.Bytes)
		req.Command = save
	}

	lane, name := w.laneFor(req.Command)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWorkerStopped
	}

	select {
	case lane <- req:
		w.adjustPending(name, 1)
		if w.metrics != nil {
			w.metrics.RecordQueueDepth(name, len(lane))
		}
		return nil
	default:
		logger.Warn("Disk worker lane full, dropping request",
			"lane", name,
			logger.KeyCommand, req.Command.Kind().String(),
			logger.KeyPath, req.Command.Target().String())
		return ErrQueueFull
	}
}

// laneFor routes a command to its priority lane.
func (w *Worker) laneFor(cmd Command) (chan Request, string) {
	switch c := cmd.(type) {
	case LoadImage:
		if c.Priority == asset.PriorityPrefetch {
			return w.prefetch, LanePrefetch
		}
		return w.interactive, LaneInteractive
	case SaveToFile:
		return w.saves, LaneSave
	default:
		return w.prefetch, LanePrefetch
	}
}

// adjustPending changes a lane counter. Caller holds w.mu.
func (w *Worker) adjustPending(lane string, delta int) {
	switch lane {
	case LaneInteractive:
		w.pendingInteractive += delta
	case LaneSave:
		w.pendingSave += delta
	default:
		w.pendingPrefetch += delta
	}
}

// Pending returns the total number of queued or executing requests.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingInteractive + w.pendingSave + w.pendingPrefetch
}

// PendingByLane returns pending counts by lane.
func (w *Worker) PendingByLane() (interactive, save, prefetch int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingInteractive, w.pendingSave, w.pendingPrefetch
}

// Stats returns command statistics.
func (w *Worker) Stats() (pending, completed, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pending = w.pendingInteractive + w.pendingSave + w.pendingPrefetch
	return pending, w.completed, w.failed
}

// LastError returns when the last error occurred and the error itself.
func (w *Worker) LastError() (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErrorAt, w.lastError
}

// run drains the lanes in priority order.
//
// The first two phases are non-blocking checks of the interactive and save
// lanes; the last phase blocks on every lane so an idle executor does not spin.
func (w *Worker) run(id int) {
	defer w.wg.Done()

	logger.Debug("Disk worker executor started", "executor", id)

	for {
		select {
		case req := <-w.interactive:
			w.process(req, LaneInteractive)
			continue
		default:
		}

		select {
		case req := <-w.saves:
			w.process(req, LaneSave)
			continue
		default:
		}

		select {
		case req := <-w.interactive:
			w.process(req, LaneInteractive)
		case req := <-w.saves:
			w.process(req, LaneSave)
		case req := <-w.prefetch:
			w.process(req, LanePrefetch)
		case <-w.stopCh:
			w.drain()
			logger.Debug("Disk worker executor stopped", "executor", id)
			return
		}
	}
}

// drain processes remaining requests during shutdown, highest priority first.
func (w *Worker) drain() {
	for {
		select {
		case req := <-w.interactive:
			w.process(req, LaneInteractive)
			continue
		default:
		}

		select {
		case req := <-w.interactive:
			w.process(req, LaneInteractive)
		case req := <-w.saves:
			w.process(req, LaneSave)
		case req := <-w.prefetch:
			w.process(req, LanePrefetch)
		default:
			return
		}
	}
}

// process executes one request and publishes its response.
func (w *Worker) process(req Request, lane string) {
	start := time.Now()
	kind := req.Command.Kind().String()

	var (
		result Result
		err    error
		size   int
	)

	switch cmd := req.Command.(type) {
	case LoadImage:
		ctx, span := telemetry.StartWorkerSpan(context.Background(), telemetry.SpanWorkerLoad, req.ID, cmd.Path.String())
		var res loadResult
		res, err = w.codec.load(cmd)
		if err != nil {
			telemetry.RecordError(ctx, err)
			result = Error{Path: cmd.Path, Reason: err.Error(), Kind: kindOf(err)}
		} else {
			size = len(res.data)
			result = ImageLoaded{Path: cmd.Path, Bytes: res.data}
			if w.metrics != nil {
				w.metrics.RecordRecompression(res.recompressed, res.original-size)
			}
		}
		span.End()

	case SaveToFile:
		ctx, span := telemetry.StartWorkerSpan(context.Background(), telemetry.SpanWorkerSave, req.ID, cmd.Path.String())
		err = WriteFileDurable(cmd.Path.String(), cmd.Bytes)
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		size = len(cmd.Bytes)
		result = FileSaved{Path: cmd.Path, Success: err == nil}
		span.End()

	case GenerateThumbnail:
		err = ErrUnsupported
		result = Error{Path: cmd.Path, Reason: "thumbnail generation is not implemented", Kind: ErrorUnsupported}

	default:
		err = ErrUnsupported
		result = Error{Path: req.Command.Target(), Reason: "unknown command", Kind: ErrorUnsupported}
	}

	w.recordResult(req, lane, err)

	if w.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = kindOf(err).String()
		}
		w.metrics.ObserveCommand(kind, outcome, size, time.Since(start))
	}

	w.responses <- Response{CommandID: req.ID, Result: result}
}

// recordResult updates counters after a command completes.
func (w *Worker) recordResult(req Request, lane string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.adjustPending(lane, -1)

	if err != nil {
		w.failed++
		w.lastError = err
		w.lastErrorAt = time.Now()
		// Missing files are logged at debug level.
		if errors.Is(err, ErrNotFound) {
			logger.Debug("Disk command failed",
				logger.KeyCommandID, req.ID,
				logger.KeyCommand, req.Command.Kind().String(),
				logger.KeyPath, req.Command.Target().String(),
				logger.Err(err))
		} else {
			logger.Error("Disk command failed",
				logger.KeyCommandID, req.ID,
				logger.KeyCommand, req.Command.Kind().String(),
				logger.KeyPath, req.Command.Target().String(),
				logger.Err(err))
		}
		return
	}

	w.completed++
	logger.Debug("Disk command completed",
		logger.KeyCommandID, req.ID,
		logger.KeyCommand, req.Command.Kind().String(),
		logger.KeyPath, req.Command.Target().String())
}
