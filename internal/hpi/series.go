// Package hpi loads and stores the quarterly house price index series.
package hpi

import (
	"time"

	"github.com/aristath/propsight/pkg/formulas"
)

// Point is a single quarterly observation. Date is always a quarter end.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is an ordered list of observations: strictly increasing dates,
// no duplicates, finite values. The loader is the only producer, so the
// invariants hold for every Series handed to other packages.
type Series []Point

// Len returns the number of observations
func (s Series) Len() int {
	return len(s)
}

// Last returns the most recent observation, or a zero Point when empty
func (s Series) Last() Point {
	if len(s) == 0 {
		return Point{}
	}
	return s[len(s)-1]
}

// Values returns the observation values in chronological order
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.Value
	}
	return values
}

// Dates returns the observation dates in chronological order
func (s Series) Dates() []time.Time {
	dates := make([]time.Time, len(s))
	for i, p := range s {
		dates[i] = p.Date
	}
	return dates
}

// PercentChanges returns quarter-over-quarter fractional changes
func (s Series) PercentChanges() []float64 {
	return formulas.PercentChanges(s.Values())
}

// NextQuarters returns the n quarter-end dates following the last observation.
// Returns nil for an empty series.
func (s Series) NextQuarters(n int) []time.Time {
	if len(s) == 0 || n < 1 {
		return nil
	}

	dates := make([]time.Time, n)
	cursor := s.Last().Date
	for i := 0; i < n; i++ {
		cursor = nextQuarterEnd(cursor)
		dates[i] = cursor
	}
	return dates
}

// QuarterEnd snaps a date to the last day of its calendar quarter
// (Mar 31, Jun 30, Sep 30 or Dec 31), midnight UTC.
func QuarterEnd(t time.Time) time.Time {
	q := (int(t.Month())-1)/3 + 1
	// Day 0 of the following month normalizes to the quarter's last day.
	return time.Date(t.Year(), time.Month(q*3)+1, 0, 0, 0, 0, 0, time.UTC)
}

// nextQuarterEnd returns the quarter end strictly after t's quarter
func nextQuarterEnd(t time.Time) time.Time {
	y := t.Year()
	q := (int(t.Month())-1)/3 + 1
	q++
	if q > 4 {
		q = 1
		y++
	}
	return time.Date(y, time.Month(q*3)+1, 0, 0, 0, 0, 0, time.UTC)
}
