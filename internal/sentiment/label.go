// Package sentiment normalizes sentiment signals into a closed label set
// and provides analyzers that honor the (label, score, details) contract.
package sentiment

import (
	"context"
	"strings"
)

// Label is the closed sentiment enumeration. Raw collaborator output is
// normalized into it once, at the boundary; downstream code never matches
// on raw strings.
type Label string

const (
	LabelPositive Label = "Positive"
	LabelNeutral  Label = "Neutral"
	LabelNegative Label = "Negative"
)

// ParseLabel normalizes a raw label. Exact names match first, then a
// substring check covers provider-specific spellings. Anything else,
// including the empty string, is Neutral.
func ParseLabel(raw string) Label {
	switch s := strings.ToLower(strings.TrimSpace(raw)); {
	case s == "positive" || s == "pos":
		return LabelPositive
	case s == "negative" || s == "neg":
		return LabelNegative
	case s == "neutral" || s == "neu":
		return LabelNeutral
	case strings.Contains(s, "pos"):
		return LabelPositive
	case strings.Contains(s, "neg"):
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// Signal is one sentiment reading: a label, a 0..100 positivity score and
// opaque provider details.
type Signal struct {
	Label   Label          `json:"label"`
	Score   float64        `json:"score"` // 0..100 positivity
	Details map[string]any `json:"details,omitempty"`
}

// NeutralSignal is the documented default when no signal is available
func NeutralSignal() Signal {
	return Signal{
		Label:   LabelNeutral,
		Score:   50.0,
		Details: map[string]any{"reason": "no_data"},
	}
}

// Analyzer derives a sentiment signal for a topic. Implementations must
// return NeutralSignal-equivalent values rather than failing when they have
// nothing better to offer; an error means the caller should fall back to
// NeutralSignal itself.
type Analyzer interface {
	Analyze(ctx context.Context, topic string) (Signal, error)
}
