package handlers

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tiercache/pkg/cache"
	"github.com/marmos91/tiercache/pkg/engine"
)

// StatsHandler serves engine diagnostics.
type StatsHandler struct {
	engine Engine
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(e Engine) *StatsHandler {
	return &StatsHandler{engine: e}
}

// TierSummary is a human-readable view of one tier.
type TierSummary struct {
	Items   int     `json:"items"`
	Size    string  `json:"size"`
	Budget  string  `json:"budget"`
	HitRate float64 `json:"hit_rate"`
}

// StatsResponse is the payload of GET /stats.
type StatsResponse struct {
	engine.Snapshot
	Summary map[string]TierSummary `json:"summary"`
}

// Stats handles GET /stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("engine not initialized"))
		return
	}

	snap := h.engine.Snapshot()
	writeJSON(w, http.StatusOK, okResponse(StatsResponse{
		Snapshot: snap,
		Summary: map[string]TierSummary{
			cache.TierBytes:   summarize(snap.Cache.Bytes),
			cache.TierTexture: summarize(snap.Cache.Textures),
		},
	}))
}

// TierResponse is the payload of GET /stats/tiers/{tier}.
type TierResponse struct {
	cache.Stats
	Summary TierSummary `json:"summary"`
}

// Tier handles GET /stats/tiers/{tier} for "bytes" or "texture".
func (h *StatsHandler) Tier(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("engine not initialized"))
		return
	}

	snap := h.engine.Snapshot()
	var s cache.Stats
	switch name := chi.URLParam(r, "tier"); name {
	case cache.TierBytes:
		s = snap.Cache.Bytes
	case cache.TierTexture:
		s = snap.Cache.Textures
	default:
		writeJSON(w, http.StatusNotFound, errorResponse("unknown tier "+name))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(TierResponse{Stats: s, Summary: summarize(s)}))
}

func summarize(s cache.Stats) TierSummary {
	budget := "unbounded"
	if s.MaxBytes > 0 {
		budget = humanize.Bytes(uint64(s.MaxBytes))
	}
	return TierSummary{
		Items:   s.Items,
		Size:    humanize.Bytes(uint64(s.Bytes)),
		Budget:  budget,
		HitRate: s.HitRate(),
	}
}
