package forecast

import (
	"github.com/aristath/propsight/pkg/formulas"
)

// RiskTier labels the market outlook derived from growth and volatility
type RiskTier string

const (
	TierLow      RiskTier = "Low"
	TierModerate RiskTier = "Moderate"
	TierHigh     RiskTier = "High"
)

// Summary condenses the forecast into the inputs the risk scorer consumes
type Summary struct {
	GrowthRate float64  `json:"growth_rate"` // Fractional expected change over the horizon
	Volatility float64  `json:"volatility"`  // Sample std dev of historical quarterly changes
	RiskTier   RiskTier `json:"risk_tier"`
	Trend      string   `json:"trend"` // rising, falling or flat vs the trailing year
	Forecast   *Result  `json:"forecast,omitempty"`
}

// safeDefault is returned whenever no summary can be derived. Callers can
// always score against it: zero growth, zero volatility, moderate tier.
func safeDefault() Summary {
	return Summary{RiskTier: TierModerate, Trend: formulas.TrendFlat}
}

// Summarize derives the market summary over the given horizon. It is total:
// with nothing loaded, or on any internal failure, it returns the safe
// default and logs the cause. Repeated calls with unchanged session state
// return equal summaries.
func (s *Session) Summarize(steps int) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.series.Len() == 0 {
		return safeDefault()
	}

	res, err := s.forecastLocked(steps)
	if err != nil {
		s.log.Error().Err(err).Msg("summary derivation failed, returning safe default")
		return safeDefault()
	}

	lastHist := s.series.Last().Value
	lastForecast := res.Mean[len(res.Mean)-1]

	growth := 0.0
	if lastHist != 0 {
		growth = (lastForecast - lastHist) / lastHist
	}
	if !formulas.IsFinite(growth) {
		s.log.Error().
			Float64("last_historical", lastHist).
			Float64("last_forecast", lastForecast).
			Msg("growth rate is not finite, returning safe default")
		return safeDefault()
	}

	volatility := formulas.StdDev(s.series.PercentChanges())

	return Summary{
		GrowthRate: growth,
		Volatility: volatility,
		RiskTier:   tierFor(growth, volatility),
		Trend:      formulas.TrendDirection(s.series.Values(), 4),
		Forecast:   &res,
	}
}

// tierFor maps growth and volatility to the market risk tier
func tierFor(growth, volatility float64) RiskTier {
	switch {
	case growth > 0.05 && volatility < 0.02:
		return TierLow
	case growth > -0.02:
		return TierModerate
	default:
		return TierHigh
	}
}
