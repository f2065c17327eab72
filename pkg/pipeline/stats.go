package pipeline

import "github.com/marmos91/tiercache/pkg/cache"

// Stats is a diagnostics snapshot of the coordinator.
type Stats struct {
	Bytes         cache.Stats `json:"bytes"`
	Textures      cache.Stats `json:"textures"`
	PendingLoads  int         `json:"pending_loads"`
	PendingWrites int         `json:"pending_writes"`
	MemoryClass   MemoryClass `json:"memory_class"`
	Revision      uint64      `json:"revision"`
}

// GetCacheStats returns per-tier occupancy and budgets plus in-flight work.
func (c *Coordinator) GetCacheStats() Stats {
	c.mu.Lock()
	loads, writes := len(c.pending), len(c.writes)
	c.mu.Unlock()

	return Stats{
		Bytes:         c.bytes.Stats(),
		Textures:      c.textures.Stats(),
		PendingLoads:  loads,
		PendingWrites: writes,
		MemoryClass:   c.class,
		Revision:      c.notifier.Revision(),
	}
}
