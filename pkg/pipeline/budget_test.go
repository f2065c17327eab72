package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name      string
		ram       uint64
		threshold uint64
		want      MemoryClass
	}{
		{"unknown probe", 0, DefaultConstrainedThreshold, ClassGenerous},
		{"below threshold", 2 << 30, DefaultConstrainedThreshold, ClassConstrained},
		{"at threshold", 4 << 30, DefaultConstrainedThreshold, ClassGenerous},
		{"above threshold", 16 << 30, DefaultConstrainedThreshold, ClassGenerous},
		{"no threshold", 1 << 30, 0, ClassGenerous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDevice(tt.ram, tt.threshold))
		})
	}
}

func TestBudgetsFor(t *testing.T) {
	cfg := DefaultBudgetConfig()

	generous := BudgetsFor(ClassGenerous, cfg)
	assert.Equal(t, 1000, generous.Bytes.MaxItems)
	assert.Equal(t, int64(200_000_000), generous.Bytes.MaxBytes)

	constrained := BudgetsFor(ClassConstrained, cfg)
	assert.Equal(t, 500, constrained.Bytes.MaxItems)
	assert.Equal(t, int64(50_000_000), constrained.Bytes.MaxBytes)

	assert.Equal(t, generous.Textures, constrained.Textures)
	assert.Equal(t, 0, constrained.Textures.MaxItems)
}

func TestParseMemoryClass(t *testing.T) {
	for in, want := range map[string]MemoryClass{
		"":             ClassAuto,
		"auto":         ClassAuto,
		"Generous":     ClassGenerous,
		" constrained": ClassConstrained,
	} {
		got, err := ParseMemoryClass(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMemoryClass("tiny")
	assert.Error(t, err)
}

func TestResolveClass(t *testing.T) {
	probed := false
	probe := func() uint64 {
		probed = true
		return 1 << 30
	}

	assert.Equal(t, ClassGenerous, ResolveClass(ClassGenerous, DefaultConstrainedThreshold, probe))
	assert.False(t, probed)

	assert.Equal(t, ClassConstrained, ResolveClass(ClassAuto, DefaultConstrainedThreshold, probe))
	assert.True(t, probed)
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe()

	assert.Equal(t, uint64(1), n.Bump())
	assert.Equal(t, uint64(2), n.Bump())
	assert.Equal(t, uint64(2), n.Revision())

	// Buffer of one: the first undelivered revision is kept.
	assert.Equal(t, uint64(1), <-ch)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	n.Bump()
}
