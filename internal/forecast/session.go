package forecast

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/hpi"
	"github.com/aristath/propsight/pkg/formulas"
)

// Result is a forecast over the quarters following the last observation.
// Lower and Upper are nil when Degraded: carry-forward projections have no
// error model to derive bounds from.
type Result struct {
	Times    []time.Time `json:"times"`
	Mean     []float64   `json:"mean"`
	Lower    []float64   `json:"lower,omitempty"`
	Upper    []float64   `json:"upper,omitempty"`
	Degraded bool        `json:"degraded"`
}

// State describes the session for health reporting
type State struct {
	Loaded       bool       `json:"loaded"`
	Degraded     bool       `json:"degraded"`
	Observations int        `json:"observations"`
	LastQuarter  *time.Time `json:"last_quarter,omitempty"`
	Order        Order      `json:"order"`
}

// Session owns the loaded series and the fitted model. All state lives
// behind one RWMutex so load, forecast and summarize can be called from
// HTTP handlers and scheduled jobs concurrently.
type Session struct {
	mu     sync.RWMutex
	series hpi.Series
	model  *Model

	order  Order
	loader *hpi.Loader
	log    zerolog.Logger
}

// NewSession creates an empty forecast session with the given model order
func NewSession(order Order, log zerolog.Logger) *Session {
	return &Session{
		order:  order,
		loader: hpi.NewLoader(log),
		log:    log.With().Str("component", "forecast_session").Logger(),
	}
}

// Load reads the CSV source and replaces the session series. A fit failure
// is logged and leaves the session in degraded mode; it is not an error.
// Loader errors propagate and leave the previous state untouched.
func (s *Session) Load(path string) error {
	series, err := s.loader.Load(path)
	if err != nil {
		return err
	}
	s.SetSeries(series)
	return nil
}

// SetSeries replaces the session series directly and refits the model
func (s *Session) SetSeries(series hpi.Series) {
	model, err := Fit(series.Values(), s.order)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("order", s.order.String()).
			Int("observations", series.Len()).
			Msg("model fit failed, forecasts degrade to carry-forward")
		model = nil
	} else {
		s.log.Info().
			Str("order", s.order.String()).
			Int("observations", series.Len()).
			Float64("aic", model.AIC()).
			Msg("model fitted")
	}

	s.mu.Lock()
	s.series = series
	s.model = model
	s.mu.Unlock()
}

// Series returns a copy of the loaded series
func (s *Session) Series() hpi.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(hpi.Series(nil), s.series...)
}

// Forecast projects the next steps quarters. Returns NotLoadedError when no
// series has been loaded. steps below 1 is treated as 1.
func (s *Session) Forecast(steps int) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forecastLocked(steps)
}

func (s *Session) forecastLocked(steps int) (Result, error) {
	if s.series.Len() == 0 {
		return Result{}, NotLoadedError{}
	}
	if steps < 1 {
		steps = 1
	}

	times := s.series.NextQuarters(steps)

	if s.model != nil {
		mean, lower, upper := s.model.Forecast(steps)
		if finiteAll(mean) && finiteAll(lower) && finiteAll(upper) {
			return Result{Times: times, Mean: mean, Lower: lower, Upper: upper}, nil
		}
		s.log.Warn().
			Str("order", s.order.String()).
			Msg("model produced non-finite forecasts, degrading to carry-forward")
	}

	// Carry the last observation forward, no confidence bounds.
	last := s.series.Last().Value
	mean := make([]float64, steps)
	for i := range mean {
		mean[i] = last
	}
	return Result{Times: times, Mean: mean, Degraded: true}, nil
}

// Snapshot returns the current session state
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{
		Loaded:       s.series.Len() > 0,
		Degraded:     s.series.Len() > 0 && s.model == nil,
		Observations: s.series.Len(),
		Order:        s.order,
	}
	if state.Loaded {
		last := s.series.Last().Date
		state.LastQuarter = &last
	}
	return state
}

func finiteAll(values []float64) bool {
	for _, v := range values {
		if !formulas.IsFinite(v) {
			return false
		}
	}
	return true
}
