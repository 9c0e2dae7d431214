// Package assessments persists scored risk assessments and orchestrates the
// scoring pipeline for the API.
package assessments

import (
	"time"

	"github.com/aristath/propsight/internal/risk"
)

// Record is one stored assessment: the resolved inputs, the composite score
// with its breakdown, and the prescribed action.
type Record struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	Input        risk.Input        `json:"input"`
	Assessment   risk.Assessment   `json:"assessment"`
	Prescription risk.Prescription `json:"prescription"`
}
