package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/tiercache/pkg/engine"
	"github.com/marmos91/tiercache/pkg/repository"
)

const (
	defaultLogLevel        = "INFO"
	defaultLogFormat       = "text"
	defaultLogOutput       = "stdout"
	defaultOTLPEndpoint    = "localhost:4317"
	defaultPyroscopeURL    = "http://localhost:4040"
	defaultShutdownTimeout = 30 * time.Second
)

// defaultProfileTypes keeps profiling to CPU and heap unless configured.
var defaultProfileTypes = []string{"cpu", "inuse_space", "alloc_space"}

// ApplyDefaults fills zero-valued fields and normalizes case. Explicit values
// are kept, so it is safe to call more than once.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(orDefault(cfg.Logging.Level, defaultLogLevel))
	cfg.Logging.Format = strings.ToLower(orDefault(cfg.Logging.Format, defaultLogFormat))
	cfg.Logging.Output = orDefault(cfg.Logging.Output, defaultLogOutput)

	tel := &cfg.Telemetry
	tel.Endpoint = orDefault(tel.Endpoint, defaultOTLPEndpoint)
	if tel.SampleRate == 0 {
		tel.SampleRate = 1.0
	}
	tel.Profiling.Endpoint = orDefault(tel.Profiling.Endpoint, defaultPyroscopeURL)
	if len(tel.Profiling.ProfileTypes) == 0 {
		tel.Profiling.ProfileTypes = append([]string(nil), defaultProfileTypes...)
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.API.ApplyDefaults()
	cfg.Engine.ApplyDefaults()
	cfg.Repository.ApplyDefaults()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// GetDefaultConfig returns the configuration used when no file exists. It
// seeds viper and is what `tiercache init` writes out.
func GetDefaultConfig() *Config {
	eng := engine.DefaultConfig()
	eng.Lifecycle.StateDir = filepath.Join(getConfigDir(), "state")

	cfg := &Config{
		Engine:     eng,
		Repository: repository.Config{Type: repository.DatabaseTypeSQLite},
	}
	ApplyDefaults(cfg)
	return cfg
}
