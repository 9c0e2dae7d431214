package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/assessments"
	"github.com/aristath/propsight/internal/database"
	"github.com/aristath/propsight/internal/forecast"
	"github.com/aristath/propsight/internal/hpi"
	"github.com/aristath/propsight/internal/risk"
	"github.com/aristath/propsight/internal/scheduler"
)

// Handlers holds the API handlers and their collaborators
type Handlers struct {
	log         zerolog.Logger
	db          *database.DB
	session     *forecast.Session
	assessments *assessments.Service
	refreshJob  scheduler.Job
	horizon     int
	startedAt   time.Time
}

// HandlersConfig holds handler configuration
type HandlersConfig struct {
	Log         zerolog.Logger
	DB          *database.DB
	Session     *forecast.Session
	Assessments *assessments.Service
	RefreshJob  scheduler.Job
	Horizon     int
}

// NewHandlers creates the API handlers
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		log:         cfg.Log.With().Str("handler", "api").Logger(),
		db:          cfg.DB,
		session:     cfg.Session,
		assessments: cfg.Assessments,
		refreshJob:  cfg.RefreshJob,
		horizon:     cfg.Horizon,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)

	r.Route("/market", func(r chi.Router) {
		r.Get("/summary", h.HandleMarketSummary)
		r.Get("/forecast", h.HandleForecast)
		r.Post("/reload", h.HandleReload)
	})

	r.Route("/risk", func(r chi.Router) {
		r.Post("/assessments", h.HandleCreateAssessment)
		r.Get("/assessments", h.HandleListAssessments)
		r.Get("/assessments/{id}", h.HandleGetAssessment)
		r.Post("/prescription", h.HandlePrescription)
	})
}

// HandleMarketSummary handles GET /api/market/summary
func (h *Handlers) HandleMarketSummary(w http.ResponseWriter, r *http.Request) {
	steps := parseIntQuery(r, "steps", h.horizon)
	summary := h.session.Summarize(steps)

	response := map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"steps":     steps,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleForecast handles GET /api/market/forecast
func (h *Handlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	steps := parseIntQuery(r, "steps", h.horizon)

	result, err := h.session.Forecast(steps)
	if err != nil {
		var notLoaded forecast.NotLoadedError
		if errors.As(err, &notLoaded) {
			http.Error(w, "No index data loaded", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Msg("Forecast failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"steps":     steps,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleReload handles POST /api/market/reload. The refresh runs
// synchronously so the caller sees the resulting session state.
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.refreshJob.Run(); err != nil {
		var notFound hpi.SourceNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, fmt.Sprintf("Reload failed: %v", err), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Reload failed")
		http.Error(w, fmt.Sprintf("Reload failed: %v", err), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": h.session.Snapshot(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleCreateAssessment handles POST /api/risk/assessments
func (h *Handlers) HandleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessments.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.PriceLakhs <= 0 {
		http.Error(w, "price_lakhs must be positive", http.StatusBadRequest)
		return
	}

	record, err := h.assessments.Assess(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Assessment failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": record,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusCreated, response)
}

// HandleListAssessments handles GET /api/risk/assessments
func (h *Handlers) HandleListAssessments(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)

	records, err := h.assessments.History(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assessments")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []assessments.Record{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"assessments": records,
			"count":       len(records),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetAssessment handles GET /api/risk/assessments/{id}
func (h *Handlers) HandleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.assessments.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to fetch assessment")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Assessment not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": record,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// PrescriptionRequest represents a request to derive an action from a score
type PrescriptionRequest struct {
	Score      float64 `json:"score"`
	GrowthRate float64 `json:"growth_rate"`
}

// HandlePrescription handles POST /api/risk/prescription
func (h *Handlers) HandlePrescription(w http.ResponseWriter, r *http.Request) {
	var req PrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Score < 0 || req.Score > 100 {
		http.Error(w, "Score must be between 0 and 100", http.StatusBadRequest)
		return
	}

	prescription := risk.Prescribe(req.Score, req.GrowthRate)

	response := map[string]interface{}{
		"data": prescription,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// parseIntQuery reads an integer query parameter, falling back on absent
// or unparsable values
func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
