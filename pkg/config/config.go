package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/tiercache/pkg/api"
	"github.com/marmos91/tiercache/pkg/engine"
	"github.com/marmos91/tiercache/pkg/repository"
)

// Config is the on-disk configuration of a tiercache process.
//
// Precedence, highest first: TIERCACHE_* environment variables, the YAML
// file, then GetDefaultConfig. Engine sections (pipeline, worker, prefetch,
// tracker, lifecycle) sit at the top level of the file.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds Engine.Close and the SIGUSR2 lifecycle flush.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	API        api.APIConfig     `mapstructure:"api" yaml:"api"`
	Engine     engine.Config     `mapstructure:",squash" yaml:",inline"`
	Repository repository.Config `mapstructure:"repository" yaml:"repository"`
}

// LoggingConfig selects the slog handler and its destination.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR; lowercase is accepted and
	// normalized by ApplyDefaults.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" (colored on a terminal) or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr", or a file path opened for append.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig exports fetch, prewarm, ingest and navigation spans over
// OTLP/gRPC. Off by default.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the parent-based trace ratio in [0, 1].
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig pushes continuous profiles to a Pyroscope server.
type ProfilingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes names pyroscope profile types, e.g. cpu, inuse_space,
	// goroutines, mutex_count.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig turns on Prometheus collectors. When off, components get nil
// metrics and /metrics answers 404.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load reads configPath (or the default location when empty), applies
// environment overrides and defaults, and validates the result. A missing
// file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	if _, err := mergeConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load for commands that need an existing file: a missing file
// is an error that tells the user how to create one.
func MustLoad(configPath string) (*Config, error) {
	path, hint := configPath, "tiercache init --config "+configPath
	if path == "" {
		path, hint = GetDefaultConfigPath(), "tiercache init"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no config at %s; create one with `%s`", path, hint)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories. The file is
// 0600 since the repository section may carry a database password.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// setupViper seeds viper with the defaults and configures env and file lookup.
//
// Seeding every key from the defaults lets environment variables override
// keys the file does not mention.
func setupViper(v *viper.Viper, configPath string) error {
	// Example: TIERCACHE_PIPELINE_FETCH_TIMEOUT=2s
	v.SetEnvPrefix("TIERCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	defaults, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/tiercache/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
	}
	return nil
}

// mergeConfigFile merges the configuration file over the defaults.
// Returns (fileFound, error).
func mergeConfigFile(v *viper.Viper) (bool, error) {
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for durations and byte
// sizes. The duration hook runs first so byte parsing never sees a duration.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
	)
}

var durationType = reflect.TypeOf(time.Duration(0))

// byteSizeDecodeHook parses human-readable sizes such as "200MB", "350 MiB",
// or "4GiB" into 64-bit integer fields (tier budgets, RAM thresholds).
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to == durationType {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}

		switch to.Kind() {
		case reflect.Int64:
			n, err := humanize.ParseBytes(s)
			if err != nil {
				return nil, fmt.Errorf("invalid byte size %q: %w", s, err)
			}
			return int64(n), nil
		case reflect.Uint64:
			n, err := humanize.ParseBytes(s)
			if err != nil {
				return nil, fmt.Errorf("invalid byte size %q: %w", s, err)
			}
			return n, nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}

		// Bare numbers are nanoseconds, matching how yaml.v3 writes Durations.
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		}
		return data, nil
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/tiercache, ~/.config/tiercache, or ".".
func getConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tiercache")
}

// GetConfigDir is the directory holding config.yaml and, by default, the
// lifecycle state store.
func GetConfigDir() string { return getConfigDir() }

// GetDefaultConfigPath returns GetConfigDir()/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether GetDefaultConfigPath exists.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
