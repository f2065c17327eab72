package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/api"
	"github.com/marmos91/tiercache/pkg/config"
	"github.com/marmos91/tiercache/pkg/engine"
	"github.com/marmos91/tiercache/pkg/lifecycle"
	"github.com/marmos91/tiercache/pkg/metrics"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cache engine",
	Long: `Start the cache engine over the configured repository, restore the last
navigation state, and serve diagnostics over HTTP.

Host lifecycle events can be simulated with signals:
  SIGUSR1   report high memory pressure
  SIGUSR2   toggle between background and foreground

Examples:
  # Start with default config location
  tiercache start

  # Start with custom config file
  tiercache start --config /etc/tiercache/config.yaml

  # Override settings with environment variables
  TIERCACHE_LOGGING_LEVEL=DEBUG tiercache start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	fmt.Println("tiercache - Predictive multi-tier image cache")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Collectors must exist before the engine builds its metric sinks.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	store, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Repository close error", logger.Err(err))
		}
	}()

	eng, err := engine.New(cfg.Engine, store)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	serverDone := make(chan error, 1)
	if cfg.API.IsEnabled() {
		server := api.NewServer(cfg.API, eng)
		go func() { serverDone <- server.Start(ctx) }()
	} else {
		logger.Info("Diagnostics server disabled")
	}

	err = waitForShutdown(ctx, cfg, eng, serverDone)

	cancel()
	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer closeCancel()
	if cerr := eng.Close(closeCtx); cerr != nil {
		logger.Error("Engine shutdown error", logger.Err(cerr))
		if err == nil {
			err = cerr
		}
	}
	if err == nil {
		logger.Info("Engine stopped gracefully")
	}
	return err
}

// waitForShutdown services lifecycle signals until SIGINT/SIGTERM arrives or
// the diagnostics server fails.
func waitForShutdown(ctx context.Context, cfg *config.Config, eng *engine.Engine, serverDone <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigChan)

	logger.Info("Engine is running. Press Ctrl+C to stop.")

	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				evicted := eng.OnMemoryPressure(ctx, lifecycle.PressureHigh)
				logger.Info("Memory pressure signal handled", logger.Evicted(evicted))

			case syscall.SIGUSR2:
				toggleLifecycle(ctx, cfg, eng)

			default:
				logger.Info("Shutdown signal received, initiating graceful shutdown")
				return nil
			}

		case err := <-serverDone:
			if err != nil {
				logger.Error("Diagnostics server error", logger.Err(err))
				return err
			}
			return nil
		}
	}
}

// toggleLifecycle flips the engine between background and foreground.
func toggleLifecycle(ctx context.Context, cfg *config.Config, eng *engine.Engine) {
	if eng.Governor().State() == lifecycle.StateBackground {
		restored := eng.OnForeground(ctx)
		logger.Info("Foreground signal handled", "restored", restored)
		return
	}

	bgCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := eng.OnBackground(bgCtx); err != nil {
		logger.Warn("Background transition incomplete", logger.Err(err))
		return
	}
	logger.Info("Background signal handled")
}
