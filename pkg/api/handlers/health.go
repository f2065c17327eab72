package handlers

import (
	"net/http"

	"github.com/marmos91/tiercache/pkg/engine"
)

// Engine is the engine surface the handlers read.
type Engine interface {
	Ready() bool
	Snapshot() engine.Snapshot
}

// HealthHandler handles health check endpoints.
//
//   - Liveness probe: Is the process running?
//   - Readiness probe: Is the disk worker serving loads?
type HealthHandler struct {
	engine Engine
}

// NewHealthHandler creates a new health handler. A nil engine is never ready.
func NewHealthHandler(e Engine) *HealthHandler {
	return &HealthHandler{engine: e}
}

// Liveness handles GET /health. It succeeds as long as the server responds.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "tiercache",
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable until the disk worker is running.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("engine not initialized"))
		return
	}
	if !h.engine.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("disk worker not running"))
		return
	}

	snap := h.engine.Snapshot()
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"memory_class": snap.Cache.MemoryClass,
		"lifecycle":    snap.Lifecycle,
	}))
}
