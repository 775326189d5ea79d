// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/breaker"
	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/models"
)

const defaultHistoryLimit = 20

// Recommender is the orchestration surface the handlers call.
// *recommend.Orchestrator satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResult, error)
	Playlist(ctx context.Context, req *models.PlaylistRequest) (*models.PlaylistResult, error)
	Feedback(ctx context.Context, req *models.FeedbackRequest) (*models.FeedbackResult, error)
	InvalidateSubject(subjectID string)
}

// HistoryStore is the persistence surface the handlers read directly.
// *database.DB satisfies it.
type HistoryStore interface {
	History(ctx context.Context, subjectID string, limit int) ([]models.Recommendation, error)
	MarkConsumed(ctx context.Context, id, subjectID string) (*models.Recommendation, error)
	ClearHistory(ctx context.Context, subjectID string) (int64, error)
	FeedbackInsights(ctx context.Context, subjectID string) (*models.FeedbackInsights, error)
	Ping(ctx context.Context) error
}

// CircuitState exposes the catalog breaker for the status endpoint.
type CircuitState interface {
	IsOpen() bool
}

// Handler holds the API handlers and their collaborators.
type Handler struct {
	orch     Recommender
	store    HistoryStore
	breakers *breaker.Group
	catalog  CircuitState
	validate *validator.Validate
	cfg      *config.APIConfig
}

// NewHandler creates the API handler set. catalog may be nil when no
// catalog breaker state is available.
func NewHandler(orch Recommender, store HistoryStore, breakers *breaker.Group, catalog CircuitState, cfg *config.APIConfig) *Handler {
	return &Handler{
		orch:     orch,
		store:    store,
		breakers: breakers,
		catalog:  catalog,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation. It writes the error response itself and reports success.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		validationError(w, r, map[string]interface{}{"body": "malformed JSON"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		details := make(map[string]interface{})
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				details[strings.ToLower(fe.Field())] = "failed " + fe.Tag() + " validation"
			}
		} else {
			details["body"] = err.Error()
		}
		validationError(w, r, details)
		return false
	}
	return true
}

// CreateRecommendation handles POST /api/v1/recommendations.
func (h *Handler) CreateRecommendation(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.RecommendationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.orch.Recommend(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, result, started)
}

// ListRecommendations handles GET /api/v1/recommendations.
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		validationError(w, r, map[string]interface{}{"subject_id": "required query parameter"})
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			validationError(w, r, map[string]interface{}{"limit": "must be a positive integer"})
			return
		}
		limit = parsed
	}
	if h.cfg.HistoryMaxLimit > 0 && limit > h.cfg.HistoryMaxLimit {
		limit = h.cfg.HistoryMaxLimit
	}

	recs, err := h.store.History(r.Context(), subjectID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	}, started)
}

// ClearRecommendations handles DELETE /api/v1/recommendations.
func (h *Handler) ClearRecommendations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		validationError(w, r, map[string]interface{}{"subject_id": "required query parameter"})
		return
	}

	deleted, err := h.store.ClearHistory(r.Context(), subjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.orch.InvalidateSubject(subjectID)
	writeSuccess(w, http.StatusOK, map[string]interface{}{"deleted": deleted}, started)
}

type consumedRequest struct {
	SubjectID string `json:"subject_id" validate:"required,max=128"`
}

// MarkConsumed handles POST /api/v1/recommendations/{id}/consumed.
func (h *Handler) MarkConsumed(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req consumedRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := h.store.MarkConsumed(r.Context(), chi.URLParam(r, "id"), req.SubjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, rec, started)
}

// CreatePlaylist handles POST /api/v1/playlists.
func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.PlaylistRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.orch.Playlist(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, result, started)
}

// SubmitFeedback handles POST /api/v1/feedback.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.FeedbackRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.orch.Feedback(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, result, started)
}

// FeedbackInsights handles GET /api/v1/feedback/insights.
func (h *Handler) FeedbackInsights(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		validationError(w, r, map[string]interface{}{"subject_id": "required query parameter"})
		return
	}

	insights, err := h.store.FeedbackInsights(r.Context(), subjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, insights, started)
}

// CircuitStatus handles GET /api/v1/circuit.
func (h *Handler) CircuitStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	data := map[string]interface{}{
		"operations": h.breakers.Status(),
	}
	if h.catalog != nil {
		data["catalog_open"] = h.catalog.IsOpen()
	}
	writeSuccess(w, http.StatusOK, data, started)
}

// CircuitReset handles POST /api/v1/circuit/{operation}/reset.
func (h *Handler) CircuitReset(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	op := chi.URLParam(r, "operation")
	if err := h.breakers.Reset(op); err != nil {
		writeJSON(w, http.StatusNotFound, models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error: &models.APIError{
				Code:    "NOT_FOUND",
				Message: "unknown circuit operation",
				Details: map[string]interface{}{"operation": op},
			},
		})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"operation": op,
		"state":     h.breakers.Status()[op].State,
	}, started)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    &models.APIError{Code: "DATABASE_ERROR", Message: "database unreachable"},
		})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"status": "ok"}, started)
}
