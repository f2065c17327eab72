package engine

import (
	"github.com/marmos91/tiercache/pkg/diskworker"
	"github.com/marmos91/tiercache/pkg/foldertrack"
	"github.com/marmos91/tiercache/pkg/lifecycle"
	"github.com/marmos91/tiercache/pkg/pipeline"
	"github.com/marmos91/tiercache/pkg/prefetch"
)

// Config groups the configuration of every engine component.
type Config struct {
	// Pipeline configures the coordinator and tier budgets
	Pipeline pipeline.Config `mapstructure:"pipeline" yaml:"pipeline"`

	// Worker configures the disk worker
	Worker diskworker.Config `mapstructure:"worker" yaml:"worker"`

	// Prefetch configures navigation-driven warming
	Prefetch prefetch.Config `mapstructure:"prefetch" yaml:"prefetch"`

	// Tracker configures the recent folder contexts queue
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker"`

	// Lifecycle configures background persistence and memory pressure
	Lifecycle lifecycle.Config `mapstructure:"lifecycle" yaml:"lifecycle"`
}

// TrackerConfig configures the recent folder contexts queue.
type TrackerConfig struct {
	// Capacity is how many folder contexts are remembered.
	// Default: 5
	Capacity int `mapstructure:"capacity" yaml:"capacity" validate:"gte=0"`
}

// DefaultConfig returns the default configuration of every component.
// Navigation state is kept in memory.
func DefaultConfig() Config {
	return Config{
		Pipeline:  pipeline.DefaultConfig(),
		Worker:    diskworker.DefaultConfig(),
		Prefetch:  prefetch.DefaultConfig(),
		Tracker:   TrackerConfig{Capacity: foldertrack.DefaultCapacity},
		Lifecycle: lifecycle.DefaultConfig(),
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	c.Pipeline.ApplyDefaults()
	c.Worker.ApplyDefaults()
	c.Prefetch.ApplyDefaults()
	if c.Tracker.Capacity <= 0 {
		c.Tracker.Capacity = foldertrack.DefaultCapacity
	}
	if c.Lifecycle.ForegroundEvictCount <= 0 {
		c.Lifecycle.ForegroundEvictCount = lifecycle.DefaultConfig().ForegroundEvictCount
	}
}
