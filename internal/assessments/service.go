package assessments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/forecast"
	"github.com/aristath/propsight/internal/risk"
	"github.com/aristath/propsight/internal/sentiment"
)

// Request carries the caller-supplied assessment inputs. Price is required;
// every other field resolves from live market and sentiment state when
// omitted.
type Request struct {
	PriceLakhs     float64  `json:"price_lakhs"`
	GrowthRate     *float64 `json:"growth_rate,omitempty"`
	Volatility     *float64 `json:"volatility,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
	LocationFactor *float64 `json:"location_factor,omitempty"`
	Topic          string   `json:"topic,omitempty"`
}

// MarketSummarizer supplies growth and volatility from the loaded series
type MarketSummarizer interface {
	Summarize(steps int) forecast.Summary
}

// Service runs the full assessment pipeline: resolve inputs, score,
// prescribe, persist.
type Service struct {
	repo     *Repository
	market   MarketSummarizer
	analyzer sentiment.Analyzer // nil when no live analyzer is configured

	horizon         int
	defaultLocation float64
	defaultTopic    string
	log             zerolog.Logger
}

// NewService creates an assessment service. The analyzer may be nil, in
// which case unresolved sentiment falls back to the neutral signal.
func NewService(
	repo *Repository,
	market MarketSummarizer,
	analyzer sentiment.Analyzer,
	horizon int,
	defaultLocation float64,
	defaultTopic string,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:            repo,
		market:          market,
		analyzer:        analyzer,
		horizon:         horizon,
		defaultLocation: defaultLocation,
		defaultTopic:    defaultTopic,
		log:             log.With().Str("component", "assessment_service").Logger(),
	}
}

// Assess resolves the request into a full input set, scores it, prescribes
// an action and persists the record. Only persistence failures surface as
// errors; input resolution always succeeds via the documented defaults.
func (s *Service) Assess(ctx context.Context, req Request) (Record, error) {
	input := s.resolveInput(ctx, req)

	assessment := risk.Analyze(input)
	prescription := risk.Prescribe(assessment.Score, input.GrowthRate)

	rec := Record{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		Input:        input,
		Assessment:   assessment,
		Prescription: prescription,
	}

	if err := s.repo.Save(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// History returns the most recent records, newest first
func (s *Service) History(limit int) ([]Record, error) {
	return s.repo.List(limit)
}

// Get returns a single record, or nil when the ID is unknown
func (s *Service) Get(id string) (*Record, error) {
	return s.repo.Get(id)
}

// Count returns the number of stored records
func (s *Service) Count() (int, error) {
	return s.repo.Count()
}

func (s *Service) resolveInput(ctx context.Context, req Request) risk.Input {
	input := risk.Input{
		PriceLakhs:     req.PriceLakhs,
		LocationFactor: s.defaultLocation,
	}
	if req.LocationFactor != nil {
		input.LocationFactor = *req.LocationFactor
	}

	if req.GrowthRate != nil && req.Volatility != nil {
		input.GrowthRate = *req.GrowthRate
		input.Volatility = *req.Volatility
	} else {
		summary := s.market.Summarize(s.horizon)
		input.GrowthRate = summary.GrowthRate
		input.Volatility = summary.Volatility
		if req.GrowthRate != nil {
			input.GrowthRate = *req.GrowthRate
		}
		if req.Volatility != nil {
			input.Volatility = *req.Volatility
		}
	}

	input.Sentiment, input.SentimentScore = s.resolveSentiment(ctx, req)
	return input
}

// resolveSentiment prefers caller-supplied sentiment, then the configured
// analyzer, then the neutral default. Analyzer failures are logged and
// absorbed; they never fail an assessment.
func (s *Service) resolveSentiment(ctx context.Context, req Request) (sentiment.Label, *float64) {
	if req.Sentiment != "" || req.SentimentScore != nil {
		return sentiment.ParseLabel(req.Sentiment), req.SentimentScore
	}

	if s.analyzer != nil {
		topic := req.Topic
		if topic == "" {
			topic = s.defaultTopic
		}
		sig, err := s.analyzer.Analyze(ctx, topic)
		if err != nil {
			s.log.Warn().Err(err).Str("topic", topic).
				Msg("sentiment analysis failed, using neutral signal")
			sig = sentiment.NeutralSignal()
		}
		score := sig.Score
		return sig.Label, &score
	}

	sig := sentiment.NeutralSignal()
	score := sig.Score
	return sig.Label, &score
}
