package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultConfig(t *testing.T) {
	require.NoError(t, Validate(GetDefaultConfig()))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "LOUD" }, "oneof"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"api port", func(c *Config) { c.API.Port = 70000 }, "max"},
		{"api address", func(c *Config) { c.API.Address = "not a host!" }, "API.Address"},
		{"shutdown timeout", func(c *Config) { c.ShutdownTimeout = -1 }, "gt"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "lte"},
		{"codec quality", func(c *Config) { c.Engine.Worker.Codec.Quality = 101 }, "lte"},
		{"negative budget", func(c *Config) { c.Engine.Pipeline.Budgets.Texture.MaxBytes = -1 }, "budget"},
		{"repository type", func(c *Config) { c.Repository.Type = "mysql" }, "oneof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyDefaults_NormalizesLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}
