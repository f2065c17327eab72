package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/api/handlers"
)

// shutdownGrace bounds the graceful shutdown that follows ctx cancellation.
const shutdownGrace = 5 * time.Second

// Server serves the router returned by NewRouter.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a stopped server. Defaults are applied so a zero
// APIConfig is usable.
func NewServer(config APIConfig, e handlers.Engine) *Server {
	config.ApplyDefaults()

	return &Server{
		config: config,
		server: &http.Server{
			Addr:         config.ListenAddr(),
			Handler:      NewRouter(e),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start serves until ctx is cancelled or the listener fails. Cancellation
// triggers a graceful shutdown; nil is returned when it completes.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Diagnostics server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		// ctx is already done; shutdown needs a fresh deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("diagnostics server on %s: %w", s.server.Addr, err)
	}
}

// Stop initiates graceful shutdown. It is safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("diagnostics server shutdown: %w", err)
			logger.Error("Diagnostics server shutdown error", logger.Err(err))
		} else {
			logger.Info("Diagnostics server stopped")
		}
	})
	return shutdownErr
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
