package server

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/propsight/internal/assessments"
	"github.com/aristath/propsight/internal/database"
	"github.com/aristath/propsight/internal/forecast"
	"github.com/aristath/propsight/internal/hpi"
	"github.com/aristath/propsight/internal/risk"
	"github.com/aristath/propsight/internal/scheduler"
)

// quarterlyCSV renders values as a quarterly index starting at Mar-15
func quarterlyCSV(values []float64) string {
	var b strings.Builder
	b.WriteString("Quarter,ALL\n")
	months := []string{"Mar", "Jun", "Sep", "Dec"}
	for i, v := range values {
		b.WriteString(fmt.Sprintf("%s-%d,%.2f\n", months[i%4], 15+i/4, v))
	}
	return b.String()
}

// trendingValues mirrors the rising-with-aperiodic-noise fixture the
// forecast package tests use, so the model fits rather than degrades.
func trendingValues(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		fi := float64(i)
		noise := 0.9*math.Sin(1.7*fi) + 0.6*math.Sin(0.9*fi+1)
		values[i] = 100 + 1.5*fi + noise
	}
	return values
}

func newTestHandlers(t *testing.T, csv string) (*Handlers, http.Handler) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "propsight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	session := forecast.NewSession(forecast.Order{P: 1, D: 1, Q: 1}, zerolog.Nop())
	hpiRepo := hpi.NewRepository(db.Conn(), zerolog.Nop())

	csvPath := filepath.Join(t.TempDir(), "hpi.csv")
	if csv != "" {
		require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0644))
		require.NoError(t, session.Load(csvPath))
	}

	repo := assessments.NewRepository(db.Conn(), zerolog.Nop())
	service := assessments.NewService(repo, session, nil, 4, 1.0, "housing market", zerolog.Nop())

	refreshJob := scheduler.NewRefreshJob(scheduler.RefreshJobConfig{
		Session: session,
		Repo:    hpiRepo,
		CSVPath: csvPath,
		Log:     zerolog.Nop(),
	})

	h := NewHandlers(HandlersConfig{
		Log:         zerolog.Nop(),
		DB:          db,
		Session:     session,
		Assessments: service,
		RefreshJob:  refreshJob,
		Horizon:     4,
	})

	router := chi.NewRouter()
	router.Get("/health", h.HandleHealth)
	router.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})

	return h, router
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Data)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestHandleMarketSummary(t *testing.T) {
	_, router := newTestHandlers(t, quarterlyCSV(trendingValues(28)))

	rec := doRequest(t, router, http.MethodGet, "/api/market/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary forecast.Summary
	decodeData(t, rec, &summary)
	assert.Positive(t, summary.GrowthRate)
	assert.Positive(t, summary.Volatility)
	assert.NotEmpty(t, summary.RiskTier)
	require.NotNil(t, summary.Forecast)
	assert.Len(t, summary.Forecast.Mean, 4)
}

func TestHandleMarketSummaryEmptySession(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodGet, "/api/market/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary forecast.Summary
	decodeData(t, rec, &summary)
	assert.Zero(t, summary.GrowthRate)
	assert.Zero(t, summary.Volatility)
	assert.Equal(t, forecast.TierModerate, summary.RiskTier)
	assert.Nil(t, summary.Forecast)
}

func TestHandleForecast(t *testing.T) {
	_, router := newTestHandlers(t, quarterlyCSV(trendingValues(28)))

	rec := doRequest(t, router, http.MethodGet, "/api/market/forecast?steps=3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result forecast.Result
	decodeData(t, rec, &result)
	assert.Len(t, result.Times, 3)
	assert.Len(t, result.Mean, 3)
}

func TestHandleForecastDefaultsHorizon(t *testing.T) {
	_, router := newTestHandlers(t, quarterlyCSV(trendingValues(28)))

	rec := doRequest(t, router, http.MethodGet, "/api/market/forecast?steps=junk", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result forecast.Result
	decodeData(t, rec, &result)
	assert.Len(t, result.Mean, 4)
}

func TestHandleForecastNotLoaded(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodGet, "/api/market/forecast", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleReload(t *testing.T) {
	_, router := newTestHandlers(t, quarterlyCSV(trendingValues(8)))

	rec := doRequest(t, router, http.MethodPost, "/api/market/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state forecast.State
	decodeData(t, rec, &state)
	assert.True(t, state.Loaded)
	assert.Equal(t, 8, state.Observations)
}

func TestHandleReloadMissingSource(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodPost, "/api/market/reload", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateAssessment(t *testing.T) {
	_, router := newTestHandlers(t, "")

	body := `{"price_lakhs": 90, "growth_rate": 0.06, "volatility": 0.01, "sentiment": "Positive", "sentiment_score": 80}`
	rec := doRequest(t, router, http.MethodPost, "/api/risk/assessments", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var record assessments.Record
	decodeData(t, rec, &record)
	assert.NotEmpty(t, record.ID)
	assert.InDelta(t, 8.5, record.Assessment.Score, 1e-9)
	assert.Equal(t, risk.LevelLow, record.Assessment.Level)
	assert.Equal(t, risk.ActionBuy, record.Prescription.Action)
	assert.InDelta(t, 6.0, record.Prescription.ROIPercent, 1e-9)
}

func TestHandleCreateAssessmentInvalidBody(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodPost, "/api/risk/assessments", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateAssessmentRequiresPrice(t *testing.T) {
	_, router := newTestHandlers(t, "")

	for _, body := range []string{`{}`, `{"price_lakhs": 0}`, `{"price_lakhs": -5}`} {
		rec := doRequest(t, router, http.MethodPost, "/api/risk/assessments", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestHandleListAssessments(t *testing.T) {
	_, router := newTestHandlers(t, "")

	for i := 0; i < 2; i++ {
		body := fmt.Sprintf(`{"price_lakhs": %d, "growth_rate": 0.02, "volatility": 0.01}`, 40+i*10)
		rec := doRequest(t, router, http.MethodPost, "/api/risk/assessments", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/risk/assessments", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Assessments []assessments.Record `json:"assessments"`
		Count       int                  `json:"count"`
	}
	decodeData(t, rec, &listing)
	assert.Equal(t, 2, listing.Count)
	require.Len(t, listing.Assessments, 2)
}

func TestHandleListAssessmentsEmpty(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodGet, "/api/risk/assessments", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Assessments []assessments.Record `json:"assessments"`
		Count       int                  `json:"count"`
	}
	decodeData(t, rec, &listing)
	assert.Zero(t, listing.Count)
	assert.NotNil(t, listing.Assessments)
}

func TestHandleGetAssessment(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodPost, "/api/risk/assessments", `{"price_lakhs": 60}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created assessments.Record
	decodeData(t, rec, &created)

	rec = doRequest(t, router, http.MethodGet, "/api/risk/assessments/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched assessments.Record
	decodeData(t, rec, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.Assessment.Score, fetched.Assessment.Score)
}

func TestHandleGetAssessmentNotFound(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodGet, "/api/risk/assessments/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePrescription(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodPost, "/api/risk/prescription", `{"score": 25, "growth_rate": 0.04}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var prescription risk.Prescription
	decodeData(t, rec, &prescription)
	assert.Equal(t, risk.ActionBuy, prescription.Action)
	assert.InDelta(t, 4.0, prescription.ROIPercent, 1e-9)
}

func TestHandlePrescriptionRejectsOutOfRangeScore(t *testing.T) {
	_, router := newTestHandlers(t, "")

	for _, body := range []string{`{"score": -1}`, `{"score": 101}`} {
		rec := doRequest(t, router, http.MethodPost, "/api/risk/prescription", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestHandlers(t, quarterlyCSV(trendingValues(8)))

	rec := doRequest(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "session")
	assert.Contains(t, body, "database")
}

func TestHandleHealthDegradedWithoutData(t *testing.T) {
	_, router := newTestHandlers(t, "")

	rec := doRequest(t, router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestParseIntQuery(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"?steps=2", 2},
		{"?steps=0", 0},
		{"?steps=junk", 4},
		{"?other=9", 4},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		assert.Equal(t, tt.want, parseIntQuery(req, "steps", 4), "query %q", tt.query)
	}
}
