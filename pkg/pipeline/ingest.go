package pipeline

import (
	"bytes"
	"context"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/internal/telemetry"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/diskworker"
)

// IngestImmediate makes freshly captured bytes visible at once and persists
// them in the background.
//
// On return the bytes are resident in Tier 2, so a Fetch for key is a hit
// without waiting for disk. A texture decode starts in the background and
// the disk worker is asked to save the file. The returned confirmation
// resolves true once the file is durable and false on failure; Tier 2 keeps
// the bytes either way. Without a running worker the file is written
// synchronously on the caller before returning.
func (c *Coordinator) IngestImmediate(key asset.Key, data []byte) *WriteConfirmation {
	ctx, span := telemetry.StartPipelineSpan(context.Background(), telemetry.SpanIngest, key.String(),
		telemetry.AssetSize(len(data)))
	defer span.End()

	owned := bytes.Clone(data)
	if owned == nil {
		owned = []byte{}
	}

	// Drop any texture decoded from earlier bytes under the same key.
	c.ingestMu.Lock()
	c.gens[key]++
	gen := c.gens[key]
	c.textures.Remove(key)
	c.bytes.Put(key, owned)
	c.ingestMu.Unlock()

	go c.decodeInto(context.WithoutCancel(ctx), key, owned, gen)

	conf := newWriteConfirmation(key)

	if c.workerRunning() {
		req := diskworker.NewRequest(diskworker.SaveToFile{Path: key, Bytes: owned})

		c.mu.Lock()
		c.writes[req.ID] = conf
		c.latestWrite[key] = conf
		loads, writes := len(c.pending), len(c.writes)
		c.mu.Unlock()
		c.recordPending(loads, writes)

		if c.worker.Submit(req) {
			logger.DebugCtx(ctx, "Ingest queued",
				logger.KeySize, len(owned),
				logger.KeyCommandID, req.ID)
			return conf
		}

		c.mu.Lock()
		delete(c.writes, req.ID)
		if c.latestWrite[key] == conf {
			delete(c.latestWrite, key)
		}
		loads, writes = len(c.pending), len(c.writes)
		c.mu.Unlock()
		c.recordPending(loads, writes)
	}

	c.writeSync(ctx, key, owned, conf)
	return conf
}

// writeSync persists data on the calling goroutine and resolves conf.
func (c *Coordinator) writeSync(ctx context.Context, key asset.Key, data []byte, conf *WriteConfirmation) {
	logger.WarnCtx(ctx, "Disk worker unavailable; writing synchronously")
	c.recordWrite(WriteSyncFallback)

	if err := diskworker.WriteFileDurable(key.String(), data); err != nil {
		logger.ErrorCtx(ctx, "Synchronous asset write failed; keeping in-memory copy",
			logger.Err(err))
		telemetry.RecordError(ctx, err)
		c.recordWrite(WriteFailed)
		conf.resolve(false)
		return
	}
	c.recordWrite(WriteOK)
	conf.resolve(true)
}

// PendingWrite returns the most recent unresolved write for key.
func (c *Coordinator) PendingWrite(key asset.Key) (*WriteConfirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.latestWrite[key]
	return w, ok
}

// PendingWrites returns the number of unresolved writes.
func (c *Coordinator) PendingWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}
