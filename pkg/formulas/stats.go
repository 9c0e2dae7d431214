package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// PercentChanges converts a level series to fractional period-over-period changes
// Changes[i] = (Level[i+1] - Level[i]) / Level[i]
func PercentChanges(levels []float64) []float64 {
	if len(levels) < 2 {
		return []float64{}
	}

	changes := make([]float64, len(levels)-1)
	for i := 1; i < len(levels); i++ {
		if levels[i-1] != 0 {
			changes[i-1] = (levels[i] - levels[i-1]) / levels[i-1]
		}
	}

	return changes
}

// Clip bounds a value to the [lo, hi] interval
func Clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundTo rounds a value to the given number of decimal places
func RoundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
