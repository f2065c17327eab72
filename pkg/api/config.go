package api

import (
	"net"
	"strconv"
	"time"
)

// Defaults for the diagnostics server.
const (
	DefaultAddress      = "127.0.0.1"
	DefaultPort         = 9090
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// APIConfig configures the diagnostics HTTP server (health, stats, metrics).
type APIConfig struct {
	// Enabled is a pointer so an absent key reads as enabled.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the bind host. Loopback unless overridden; use "0.0.0.0"
	// to expose diagnostics on every interface.
	Address string `mapstructure:"address" validate:"omitempty,ip|hostname" yaml:"address"`

	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// IsEnabled reports whether the server should run.
func (c *APIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ListenAddr returns host:port for net.Listen.
func (c *APIConfig) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// ApplyDefaults fills zero values.
func (c *APIConfig) ApplyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}
