package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/api/handlers"
	"github.com/marmos91/tiercache/pkg/metrics"
)

// NewRouter builds the diagnostics router.
//
// Routes:
//   - GET /health             liveness
//   - GET /health/ready       readiness (engine started)
//   - GET /stats              full engine snapshot with tier summaries
//   - GET /stats/tiers/{tier} one tier: "bytes" or "texture"
//   - GET /metrics            Prometheus exposition, 404 when metrics are off
func NewRouter(e handlers.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	health := handlers.NewHealthHandler(e)
	stats := handlers.NewStatsHandler(e)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})
	r.Route("/stats", func(r chi.Router) {
		r.Get("/", stats.Stats)
		r.Get("/tiers/{tier}", stats.Tier)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/stats", http.StatusTemporaryRedirect)
	})

	return r
}

const requestTimeout = 30 * time.Second

// requestLogger logs each request once it completes. Server errors are
// logged at WARN, everything else at DEBUG so polling stays quiet.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		args := []any{
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			logger.KeyPath, r.URL.Path,
			"status", status,
			logger.DurationMs(logger.Duration(start)),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("Diagnostics request failed", args...)
			return
		}
		logger.Debug("Diagnostics request", args...)
	})
}
