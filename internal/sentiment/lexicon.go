package sentiment

import (
	"context"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/pkg/formulas"
)

// Term lists tuned for property-market headlines. Matching is on lowercased
// whole words after stripping punctuation.
var (
	positiveTerms = map[string]struct{}{
		"gain": {}, "gains": {}, "growth": {}, "rise": {}, "rises": {}, "rising": {},
		"surge": {}, "surges": {}, "boom": {}, "booming": {}, "rally": {}, "rallies": {},
		"strong": {}, "stronger": {}, "record": {}, "recovery": {}, "recovering": {},
		"up": {}, "upbeat": {}, "optimism": {}, "optimistic": {}, "bullish": {},
		"soar": {}, "soars": {}, "soaring": {}, "improve": {}, "improves": {},
		"improving": {}, "jump": {}, "jumps": {}, "high": {}, "demand": {},
		"expansion": {}, "profit": {}, "profits": {}, "robust": {}, "positive": {},
	}
	negativeTerms = map[string]struct{}{
		"fall": {}, "falls": {}, "falling": {}, "drop": {}, "drops": {}, "dropping": {},
		"decline": {}, "declines": {}, "declining": {}, "slump": {}, "slumps": {},
		"crash": {}, "crashes": {}, "crisis": {}, "weak": {}, "weaker": {}, "weakness": {},
		"down": {}, "downturn": {}, "pessimism": {}, "bearish": {}, "plunge": {},
		"plunges": {}, "plunging": {}, "loss": {}, "losses": {}, "slowdown": {},
		"stall": {}, "stalls": {}, "stalled": {}, "risk": {}, "risky": {}, "bubble": {},
		"default": {}, "defaults": {}, "unsold": {}, "glut": {}, "negative": {},
	}
)

// LexiconAnalyzer scores text by counting positive and negative term hits.
// Deterministic and dependency-free, it realizes the sentiment collaborator
// contract locally and backs the news analyzer's per-headline scoring.
type LexiconAnalyzer struct {
	log zerolog.Logger
}

// NewLexiconAnalyzer creates a lexicon-based analyzer
func NewLexiconAnalyzer(log zerolog.Logger) *LexiconAnalyzer {
	return &LexiconAnalyzer{
		log: log.With().Str("component", "sentiment_lexicon").Logger(),
	}
}

// Analyze scores the topic string itself. Useful as a last-resort fallback;
// the news analyzer feeds real headlines through AnalyzeText instead.
func (a *LexiconAnalyzer) Analyze(_ context.Context, topic string) (Signal, error) {
	return a.AnalyzeText(topic), nil
}

// AnalyzeText scores a single text. Empty or hit-free text is Neutral 50.
func (a *LexiconAnalyzer) AnalyzeText(text string) Signal {
	if strings.TrimSpace(text) == "" {
		return Signal{Label: LabelNeutral, Score: 50.0,
			Details: map[string]any{"reason": "empty_input"}}
	}

	pos, neg := 0, 0
	for _, word := range tokenize(text) {
		if _, ok := positiveTerms[word]; ok {
			pos++
		}
		if _, ok := negativeTerms[word]; ok {
			neg++
		}
	}

	if pos+neg == 0 {
		return Signal{Label: LabelNeutral, Score: 50.0,
			Details: map[string]any{"reason": "no_hits"}}
	}

	// Positivity fraction of matched terms, on the 0..100 scale.
	score := formulas.RoundTo(float64(pos)/float64(pos+neg)*100.0, 2)

	label := LabelNeutral
	switch {
	case score >= 60:
		label = LabelPositive
	case score <= 40:
		label = LabelNegative
	}

	return Signal{
		Label: label,
		Score: score,
		Details: map[string]any{
			"positive_hits": pos,
			"negative_hits": neg,
		},
	}
}

// AggregateHeadlines scores each headline and combines them: the average
// positivity becomes the score, the most frequent label (earliest seen on
// ties) becomes the label. No headlines yields the neutral default.
func (a *LexiconAnalyzer) AggregateHeadlines(headlines []string) Signal {
	if len(headlines) == 0 {
		return Signal{Label: LabelNeutral, Score: 50.0,
			Details: map[string]any{"count": 0}}
	}

	labels := make([]string, 0, len(headlines))
	total := 0.0
	for _, h := range headlines {
		sig := a.AnalyzeText(h)
		labels = append(labels, string(sig.Label))
		total += sig.Score
	}

	avg := formulas.RoundTo(total/float64(len(headlines)), 2)

	return Signal{
		Label: majorityLabel(labels),
		Score: avg,
		Details: map[string]any{
			"count":  len(headlines),
			"labels": labels,
		},
	}
}

// majorityLabel returns the most frequent label, first-seen winning ties
func majorityLabel(labels []string) Label {
	counts := make(map[string]int, 3)
	order := make([]string, 0, 3)
	for _, l := range labels {
		if _, seen := counts[l]; !seen {
			order = append(order, l)
		}
		counts[l]++
	}

	best := ""
	for _, l := range order {
		if best == "" || counts[l] > counts[best] {
			best = l
		}
	}
	return ParseLabel(best)
}

// tokenize lowercases and splits on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
