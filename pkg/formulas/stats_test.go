package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Mean([]float64{}))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
}

func TestStdDev(t *testing.T) {
	// Fewer than two observations carry no spread information.
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{5}))

	// Sample std dev of {2,4,4,4,5,5,7,9} is ~2.138 (n-1 denominator).
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.1380899, got, 1e-6)
}

func TestPercentChanges(t *testing.T) {
	assert.Empty(t, PercentChanges([]float64{100}))

	changes := PercentChanges([]float64{100, 110, 99})
	assert.Len(t, changes, 2)
	assert.InDelta(t, 0.10, changes[0], 1e-12)
	assert.InDelta(t, -0.10, changes[1], 1e-12)

	// Division by zero level yields a zero change, not a NaN.
	changes = PercentChanges([]float64{0, 5})
	assert.Equal(t, 0.0, changes[0])
}

func TestClip(t *testing.T) {
	assert.Equal(t, 0.0, Clip(-3, 0, 100))
	assert.Equal(t, 100.0, Clip(250, 0, 100))
	assert.Equal(t, 42.5, Clip(42.5, 0, 100))
}

func TestRoundTo(t *testing.T) {
	assert.InDelta(t, 3.14, RoundTo(3.14159, 2), 1e-12)
	assert.InDelta(t, -2.68, RoundTo(-2.6789, 2), 1e-12)
	assert.InDelta(t, 10.0, RoundTo(9.996, 1), 1e-12)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(1.5))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(1)))
	assert.False(t, IsFinite(math.Inf(-1)))
}

func TestTrendDirection(t *testing.T) {
	tests := []struct {
		name   string
		levels []float64
		window int
		want   string
	}{
		{"too short", []float64{100, 101}, 4, TrendFlat},
		{"rising", []float64{100, 102, 104, 106, 110}, 4, TrendRising},
		{"falling", []float64{110, 108, 106, 104, 100}, 4, TrendFalling},
		{"flat", []float64{100, 100, 100, 100, 100}, 4, TrendFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrendDirection(tt.levels, tt.window))
		})
	}
}
