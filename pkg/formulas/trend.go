package formulas

import (
	"github.com/markcheno/go-talib"
)

// Trend direction labels for a level series.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendFlat    = "flat"
)

// Sma calculates the simple moving average over the given window.
// Returns nil if there is not enough data for a single window.
func Sma(levels []float64, window int) []float64 {
	if window < 1 || len(levels) < window {
		return nil
	}
	return talib.Sma(levels, window)
}

// TrendDirection compares the last observation against its trailing moving
// average. A deviation under 0.1% either way counts as flat.
//
// Args:
//   levels: Level series, oldest first
//   window: Moving average window (typically 4 for quarterly data)
func TrendDirection(levels []float64, window int) string {
	sma := Sma(levels, window)
	if sma == nil {
		return TrendFlat
	}

	last := levels[len(levels)-1]
	ref := sma[len(sma)-1]
	if !IsFinite(last) || !IsFinite(ref) || ref == 0 {
		return TrendFlat
	}

	const tolerance = 0.001
	switch {
	case last > ref*(1+tolerance):
		return TrendRising
	case last < ref*(1-tolerance):
		return TrendFalling
	default:
		return TrendFlat
	}
}
