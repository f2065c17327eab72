package pipeline

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/tiercache/pkg/cache"
)

// MemoryClass is the two-way device classification that picks the Tier-2
// budget. It is decided once at construction and never changes.
type MemoryClass string

const (
	ClassAuto        MemoryClass = "auto"
	ClassGenerous    MemoryClass = "generous"
	ClassConstrained MemoryClass = "constrained"
)

// DefaultConstrainedThreshold is the total RAM below which a device is
// classified as constrained.
const DefaultConstrainedThreshold = 4 << 30

// BudgetConfig holds the budget for each class plus the class-independent
// texture budget.
type BudgetConfig struct {
	Generous    cache.Budget `mapstructure:"generous" yaml:"generous"`
	Constrained cache.Budget `mapstructure:"constrained" yaml:"constrained"`
	Texture     cache.Budget `mapstructure:"texture" yaml:"texture"`
}

// DefaultBudgetConfig returns 200MB/1000 items (generous), 50MB/500 items
// (constrained), and a 350MB texture ceiling with no item limit.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		Generous:    cache.Budget{MaxItems: 1000, MaxBytes: 200 * humanize.MByte},
		Constrained: cache.Budget{MaxItems: 500, MaxBytes: 50 * humanize.MByte},
		Texture:     cache.Budget{MaxBytes: 350 * humanize.MByte},
	}
}

// Budgets is the resolved pair of tier budgets.
type Budgets struct {
	Bytes    cache.Budget
	Textures cache.Budget
}

// BudgetsFor resolves the tier budgets for class. The texture budget does not
// depend on the class.
func BudgetsFor(class MemoryClass, cfg BudgetConfig) Budgets {
	b := Budgets{Bytes: cfg.Generous, Textures: cfg.Texture}
	if class == ClassConstrained {
		b.Bytes = cfg.Constrained
	}
	return b
}

// ClassifyDevice maps total RAM to a class. An unknown probe (0) is generous.
func ClassifyDevice(totalRAM, threshold uint64) MemoryClass {
	if totalRAM == 0 || threshold == 0 {
		return ClassGenerous
	}
	if totalRAM < threshold {
		return ClassConstrained
	}
	return ClassGenerous
}

// ParseMemoryClass parses a configured class name. Empty means auto.
func ParseMemoryClass(s string) (MemoryClass, error) {
	switch MemoryClass(strings.ToLower(strings.TrimSpace(s))) {
	case "", ClassAuto:
		return ClassAuto, nil
	case ClassGenerous:
		return ClassGenerous, nil
	case ClassConstrained:
		return ClassConstrained, nil
	default:
		return "", fmt.Errorf("unknown memory class %q", s)
	}
}

// ResolveClass turns a configured class into a concrete one, probing total
// RAM when the configured class is auto.
func ResolveClass(configured MemoryClass, threshold uint64, probe func() uint64) MemoryClass {
	if configured != ClassAuto && configured != "" {
		return configured
	}
	if probe == nil {
		probe = TotalRAM
	}
	return ClassifyDevice(probe(), threshold)
}
