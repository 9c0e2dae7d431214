package news

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/sentiment"
)

// Analyzer derives topic sentiment from live headlines: fetch via the
// client, score each headline with the lexicon, aggregate. It satisfies
// sentiment.Analyzer.
type Analyzer struct {
	client  *Client
	lexicon *sentiment.LexiconAnalyzer
	log     zerolog.Logger
}

// NewAnalyzer creates a headline-backed sentiment analyzer
func NewAnalyzer(client *Client, lexicon *sentiment.LexiconAnalyzer, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		client:  client,
		lexicon: lexicon,
		log:     log.With().Str("component", "news_analyzer").Logger(),
	}
}

// Analyze fetches headlines for the topic and aggregates their sentiment.
// No headlines (missing key, empty result) yields the neutral default;
// fetch failures return an error so the caller can apply its own fallback.
func (a *Analyzer) Analyze(ctx context.Context, topic string) (sentiment.Signal, error) {
	headlines, err := a.client.TopHeadlines(ctx, topic)
	if err != nil {
		return sentiment.Signal{}, err
	}
	if len(headlines) == 0 {
		return sentiment.NeutralSignal(), nil
	}
	return a.lexicon.AggregateHeadlines(headlines), nil
}
