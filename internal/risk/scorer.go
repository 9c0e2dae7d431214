// Package risk combines market, sentiment and price signals into a bounded
// composite risk score with a transparent breakdown, and prescribes an
// action from the score and expected growth.
package risk

import (
	"github.com/aristath/propsight/internal/sentiment"
	"github.com/aristath/propsight/pkg/formulas"
)

// Level is a risk tier
type Level string

const (
	LevelLow      Level = "Low"
	LevelModerate Level = "Moderate"
	LevelHigh     Level = "High"
)

// Component weights. Market stays the dominant signal, sentiment next,
// price a minor contribution. They sum to exactly 1.0.
const (
	WeightMarket    = 0.70
	WeightSentiment = 0.20
	WeightPrice     = 0.10
)

// Input carries the signals for one assessment. SentimentScore nil means
// no signal, which scores as the neutral 50.
type Input struct {
	PriceLakhs     float64         `json:"price_lakhs"`
	GrowthRate     float64         `json:"growth_rate"` // Fractional, 0.05 = +5%
	Volatility     float64         `json:"volatility"`  // Fractional std of quarterly changes
	Sentiment      sentiment.Label `json:"sentiment_label"`
	SentimentScore *float64        `json:"sentiment_score,omitempty"` // 0..100 positivity
	LocationFactor float64         `json:"location_factor"`           // >1 safer, <1 riskier
}

// Weights records the component weighting used for an assessment
type Weights struct {
	Market    float64 `json:"market" msgpack:"market"`
	Sentiment float64 `json:"sentiment" msgpack:"sentiment"`
	Price     float64 `json:"price" msgpack:"price"`
}

// Breakdown exposes every intermediate of the composite computation.
// Numeric levels are 1 (low) to 3 (high).
type Breakdown struct {
	MarketRiskScore      float64 `json:"market_risk_score" msgpack:"market_risk_score"`
	MarketRiskLevel      int     `json:"market_risk_level" msgpack:"market_risk_level"`
	SentimentLabel       string  `json:"sentiment_label" msgpack:"sentiment_label"`
	SentimentScore       float64 `json:"sentiment_score" msgpack:"sentiment_score"`
	SentimentNumericRisk float64 `json:"sentiment_numeric_risk" msgpack:"sentiment_numeric_risk"`
	SentimentRiskLevel   int     `json:"sentiment_risk_level" msgpack:"sentiment_risk_level"`
	PriceRiskScore       float64 `json:"price_risk_score" msgpack:"price_risk_score"`
	Weights              Weights `json:"weights" msgpack:"weights"`
	FinalRaw             float64 `json:"final_raw" msgpack:"final_raw"`
}

// Assessment is the scored result with its audit trail
type Assessment struct {
	Score     float64   `json:"score"` // 0..100, higher is riskier
	Level     Level     `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Breakdown Breakdown `json:"debug"`
}

// Analyze computes the composite risk score. It is total over its input
// domain: non-finite numbers coerce to safe defaults and the result is
// always a bounded score with a full breakdown.
func Analyze(in Input) Assessment {
	growth := finiteOr(in.GrowthRate, 0)
	volatility := finiteOr(in.Volatility, 0)
	price := finiteOr(in.PriceLakhs, 0)
	location := finiteOr(in.LocationFactor, 1.0)

	// Market component: volatility raises risk, growth lowers it, and the
	// location factor dampens (>1) or amplifies (<1) the result.
	grPct := growth * 100.0
	volPct := volatility * 100.0
	marketComponent := (volPct * 1.5) - (grPct * 0.8)
	marketRisk := formulas.Clip(marketComponent*(1.2-location), 0, 100)

	// Sentiment component: positivity maps inversely to risk.
	label := in.Sentiment
	if label == "" {
		label = sentiment.LabelNeutral
	}
	score := 50.0
	if in.SentimentScore != nil && formulas.IsFinite(*in.SentimentScore) {
		score = *in.SentimentScore
	}
	sentimentRisk := formulas.Clip(100.0-score, 0, 100)

	sentimentLevel := 2
	switch {
	case label == sentiment.LabelPositive && score >= 60:
		sentimentLevel = 1
	case label == sentiment.LabelNegative || score < 40:
		sentimentLevel = 3
	}

	// Price component: slowly growing, never dominant.
	priceRisk := formulas.Clip((price/200.0)*100.0, 0, 100)

	raw := marketRisk*WeightMarket + sentimentRisk*WeightSentiment + priceRisk*WeightPrice
	final := formulas.Clip(formulas.RoundTo(raw, 2), 0, 100)

	level, category, message := tierFor(final)

	return Assessment{
		Score:    final,
		Level:    level,
		Category: category,
		Message:  message,
		Breakdown: Breakdown{
			MarketRiskScore:      marketRisk,
			MarketRiskLevel:      numericLevel(marketRisk),
			SentimentLabel:       string(label),
			SentimentScore:       score,
			SentimentNumericRisk: sentimentRisk,
			SentimentRiskLevel:   sentimentLevel,
			PriceRiskScore:       priceRisk,
			Weights: Weights{
				Market:    WeightMarket,
				Sentiment: WeightSentiment,
				Price:     WeightPrice,
			},
			FinalRaw: raw,
		},
	}
}

// tierFor maps a composite score to its tier, category and message.
// Boundaries and wording are part of the observable contract.
func tierFor(score float64) (Level, string, string) {
	switch {
	case score < 30:
		return LevelLow, "Stable Market",
			"Strong signals with low volatility. Good investment conditions."
	case score < 60:
		return LevelModerate, "Caution Advised",
			"Some mixed signals. Consider cautious investment."
	default:
		return LevelHigh, "High Risk",
			"Negative sentiment or high volatility. Avoid large investments."
	}
}

// numericLevel maps a 0..100 component score to 1 (low), 2 or 3 (high)
func numericLevel(score float64) int {
	switch {
	case score < 30:
		return 1
	case score < 60:
		return 2
	default:
		return 3
	}
}

func finiteOr(v, fallback float64) float64 {
	if !formulas.IsFinite(v) {
		return fallback
	}
	return v
}
