package engine

import (
	"github.com/marmos91/tiercache/pkg/pipeline"
	"github.com/marmos91/tiercache/pkg/repository"
)

// WorkerStats describes the disk worker queues.
type WorkerStats struct {
	Running     bool `json:"running"`
	Interactive int  `json:"interactive"`
	Save        int  `json:"save"`
	Prefetch    int  `json:"prefetch"`
	Completed   int  `json:"completed"`
	Failed      int  `json:"failed"`
}

// Snapshot is a diagnostics view of the whole engine.
type Snapshot struct {
	Cache     pipeline.Stats        `json:"cache"`
	Worker    WorkerStats           `json:"worker"`
	Current   *repository.FolderID  `json:"current,omitempty"`
	Ancestors []repository.FolderID `json:"ancestors"`
	Recent    []repository.FolderID `json:"recent"`
	Lifecycle string                `json:"lifecycle"`
}

// Snapshot collects the current state of every component.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Cache:     e.coordinator.GetCacheStats(),
		Ancestors: e.nav.Ancestors(),
		Recent:    e.tracker.Recent(),
		Lifecycle: string(e.governor.State()),
	}

	if cur, ok := e.nav.Current(); ok {
		s.Current = &cur
	}

	if e.worker != nil {
		s.Worker.Running = e.worker.Started()
		s.Worker.Interactive, s.Worker.Save, s.Worker.Prefetch = e.worker.PendingByLane()
		_, s.Worker.Completed, s.Worker.Failed = e.worker.Stats()
	}

	return s
}

// Ready reports whether the engine can serve loads from disk.
func (e *Engine) Ready() bool {
	return e.worker != nil && e.worker.Started()
}
