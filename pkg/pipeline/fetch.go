package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/diskworker"
)

// Fetch returns the bytes for key, reading Tier 2 first and asking the disk
// worker on a miss.
//
// At most one load per key is in flight: concurrent callers for the same key
// wait on the first caller's completion. A wait is bounded by FetchTimeout;
// on timeout the pending marker is cleared so a later caller can retry, and
// the eventual response still populates Tier 2. Failure of any kind returns
// (nil, false).
func (c *Coordinator) Fetch(ctx context.Context, key asset.Key, prio asset.Priority) ([]byte, bool) {
	start := time.Now()
	ctx, span := telemetry.StartPipelineSpan(ctx, telemetry.SpanFetch, key.String(),
		telemetry.AssetPriority(prio.String()))
	defer span.End()

	if data, ok := c.bytes.Get(key); ok {
		span.SetAttributes(telemetry.CacheHit(true))
		c.observeFetch(OutcomeHit, start)
		return data, true
	}
	span.SetAttributes(telemetry.CacheHit(false))

	if !c.workerRunning() {
		logger.DebugCtx(ctx, "Fetch miss without disk worker")
		telemetry.RecordError(ctx, ErrWorkerUnavailable)
		c.observeFetch(OutcomeUnavailable, start)
		return nil, false
	}

	p, joined, err := c.registerLoad(key, prio)
	if err != nil {
		telemetry.RecordError(ctx, err)
		c.observeFetch(OutcomeUnavailable, start)
		return nil, false
	}
	span.SetAttributes(telemetry.CacheDeduped(joined))

	timer := time.NewTimer(c.cfg.FetchTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		if !p.ok {
			c.observeFetch(OutcomeMiss, start)
			return nil, false
		}
		if joined {
			c.observeFetch(OutcomeJoined, start)
		} else {
			c.observeFetch(OutcomeLoaded, start)
		}
		return p.data, true

	case <-timer.C:
		c.abandonLoad(key, p)
		logger.WarnCtx(ctx, "Fetch timed out",
			logger.KeyCommandID, p.id,
			"timeout", c.cfg.FetchTimeout)
		telemetry.RecordError(ctx, ErrFetchTimeout)
		c.observeFetch(OutcomeTimeout, start)
		return nil, false

	case <-ctx.Done():
		c.leaveLoad(p)
		c.observeFetch(OutcomeMiss, start)
		return nil, false
	}
}

// registerLoad joins the in-flight load for key or registers and submits a
// new one. joined is true when another caller's load was reused.
func (c *Coordinator) registerLoad(key asset.Key, prio asset.Priority) (*pendingLoad, bool, error) {
	c.mu.Lock()
	if p, ok := c.pending[key]; ok {
		p.waiters++
		c.mu.Unlock()
		return p, true, nil
	}

	req := diskworker.NewRequest(diskworker.LoadImage{Path: key, Priority: prio})
	p := &pendingLoad{id: req.ID, key: key, gen: c.generation(key), done: make(chan struct{}), waiters: 1}
	c.pending[key] = p
	c.loads[req.ID] = p
	loads, writes := len(c.pending), len(c.writes)
	c.mu.Unlock()

	c.recordPending(loads, writes)

	if !c.worker.Submit(req) {
		c.mu.Lock()
		_, mine := c.loads[req.ID]
		if mine {
			delete(c.loads, req.ID)
			if c.pending[key] == p {
				delete(c.pending, key)
			}
		}
		c.mu.Unlock()

		// Anyone who joined in the meantime sees a miss.
		if mine {
			close(p.done)
		}
		return nil, false, ErrWorkerUnavailable
	}
	return p, false, nil
}

// abandonLoad clears the pending marker after a timeout if it still belongs
// to p. The command id stays registered so a late response still lands in
// Tier 2.
func (c *Coordinator) abandonLoad(key asset.Key, p *pendingLoad) {
	c.mu.Lock()
	p.waiters--
	if c.pending[key] == p {
		delete(c.pending, key)
	}
	loads, writes := len(c.pending), len(c.writes)
	c.mu.Unlock()

	c.recordPending(loads, writes)
}

// leaveLoad drops a cancelled waiter. The load itself continues.
func (c *Coordinator) leaveLoad(p *pendingLoad) {
	c.mu.Lock()
	p.waiters--
	c.mu.Unlock()
}

// FetchBatch fetches keys with a bounded pool and returns how many
// succeeded. concurrency <= 0 uses the configured default.
func (c *Coordinator) FetchBatch(ctx context.Context, keys []asset.Key, prio asset.Priority, concurrency int) int {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanFetchBatch)
	defer span.End()
	span.SetAttributes(telemetry.BatchSize(len(keys)))

	return c.forEach(ctx, keys, concurrency, func(ctx context.Context, key asset.Key) bool {
		_, ok := c.Fetch(ctx, key, prio)
		return ok
	})
}

// forEach runs fn over keys with at most concurrency in flight and counts
// the true results.
func (c *Coordinator) forEach(ctx context.Context, keys []asset.Key, concurrency int, fn func(context.Context, asset.Key) bool) int {
	if len(keys) == 0 {
		return 0
	}
	if concurrency <= 0 {
		concurrency = c.cfg.PrewarmConcurrency
	}

	results := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, key := range keys {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = fn(gctx, key)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range results {
		if ok {
			n++
		}
	}
	return n
}

// PendingLoads returns the number of keys with an in-flight load.
func (c *Coordinator) PendingLoads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// waiters returns how many callers wait on key's in-flight load.
func (c *Coordinator) waiters(key asset.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[key]; ok {
		return p.waiters
	}
	return 0
}

func (c *Coordinator) observeFetch(outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveFetch(outcome, time.Since(start))
	}
}
