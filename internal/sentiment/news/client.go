// Package news fetches headlines from a NewsAPI-compatible service and
// turns them into sentiment signals.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL  = "https://newsapi.org/v2"
	defaultPageSize = 20

	// Free tier allowance; the counter resets via the daily maintenance job.
	dailyRequestLimit = 100

	headlineCacheTTL = 30 * time.Minute
)

// ErrRateLimitExceeded indicates the daily request budget is exhausted
type ErrRateLimitExceeded struct{}

func (ErrRateLimitExceeded) Error() string {
	return "news api daily request limit exceeded"
}

type cacheEntry struct {
	headlines []string
	expiresAt time.Time
}

// Client is a NewsAPI client with request budgeting and response caching
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu            sync.Mutex
	requestsToday int
	cache         map[string]cacheEntry
}

// NewClient creates a news client. The key is required for live fetches;
// an empty key makes every fetch return zero headlines.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "news_client").Logger(),
		cache:      make(map[string]cacheEntry),
	}
}

// SetBaseURL overrides the API base URL (self-hosted mirrors, tests)
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// GetRemainingRequests returns how many requests are left today
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dailyRequestLimit - c.requestsToday
}

// ResetDailyCounter resets the request budget
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsToday = 0
	c.log.Debug().Msg("daily request counter reset")
}

func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requestsToday >= dailyRequestLimit {
		return ErrRateLimitExceeded{}
	}
	c.requestsToday++
	return nil
}

func (c *Client) getFromCache(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.headlines, true
}

func (c *Client) setCache(key string, headlines []string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{headlines: headlines, expiresAt: time.Now().Add(ttl)}
}

// ClearCache drops all cached responses
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

type everythingResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title string `json:"title"`
	} `json:"articles"`
}

// TopHeadlines fetches recent English headlines for a topic. Responses are
// cached; a missing API key returns no headlines without spending budget.
func (c *Client) TopHeadlines(ctx context.Context, topic string) ([]string, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	cacheKey := "everything:" + topic
	if headlines, ok := c.getFromCache(cacheKey); ok {
		return headlines, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", topic)
	params.Set("language", "en")
	params.Set("pageSize", fmt.Sprintf("%d", defaultPageSize))
	params.Set("sortBy", "publishedAt")
	params.Set("apiKey", c.apiKey)

	reqURL := fmt.Sprintf("%s/everything?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("news api returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed everythingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}

	headlines := make([]string, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		if a.Title != "" {
			headlines = append(headlines, a.Title)
		}
	}

	c.setCache(cacheKey, headlines, headlineCacheTTL)
	c.log.Debug().Str("topic", topic).Int("headlines", len(headlines)).Msg("fetched headlines")

	return headlines, nil
}
