// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/breaker"
	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/database"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/recommend"
)

type fakeRecommender struct {
	result      *models.RecommendationResult
	playlist    *models.PlaylistResult
	feedback    *models.FeedbackResult
	err         error
	invalidated string
}

func (f *fakeRecommender) Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResult, error) {
	return f.result, f.err
}

func (f *fakeRecommender) Playlist(ctx context.Context, req *models.PlaylistRequest) (*models.PlaylistResult, error) {
	return f.playlist, f.err
}

func (f *fakeRecommender) Feedback(ctx context.Context, req *models.FeedbackRequest) (*models.FeedbackResult, error) {
	return f.feedback, f.err
}

func (f *fakeRecommender) InvalidateSubject(subjectID string) { f.invalidated = subjectID }

type fakeHistory struct {
	recs      []models.Recommendation
	lastLimit int
	deleted   int64
	pingErr   error
}

func (f *fakeHistory) History(ctx context.Context, subjectID string, limit int) ([]models.Recommendation, error) {
	f.lastLimit = limit
	return f.recs, nil
}

func (f *fakeHistory) MarkConsumed(ctx context.Context, id, subjectID string) (*models.Recommendation, error) {
	if id == "missing" {
		return nil, database.ErrNotFound
	}
	return &models.Recommendation{ID: id, SubjectID: subjectID, ConsumptionCount: 1}, nil
}

func (f *fakeHistory) ClearHistory(ctx context.Context, subjectID string) (int64, error) {
	return f.deleted, nil
}

func (f *fakeHistory) FeedbackInsights(ctx context.Context, subjectID string) (*models.FeedbackInsights, error) {
	return &models.FeedbackInsights{TotalFeedback: 3, PositiveRatio: 0.67}, nil
}

func (f *fakeHistory) Ping(ctx context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, rec *fakeRecommender, store *fakeHistory) *httptest.Server {
	t.Helper()

	breakers := breaker.New(breaker.Config{
		Ops: map[string]breaker.OpConfig{
			recommend.OpRecommendation: {FailureThreshold: 3, Timeout: time.Minute, HalfOpenMaxCalls: 1},
		},
	})
	cfg := &config.APIConfig{RateLimitDisabled: true, HistoryMaxLimit: 50}
	handler := NewHandler(rec, store, breakers, nil, cfg)

	srv := httptest.NewServer(NewRouter(handler, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

func TestCreateRecommendationSuccess(t *testing.T) {
	rec := &fakeRecommender{result: &models.RecommendationResult{
		Recommendation: models.Recommendation{ID: "r1", ItemTitle: "Time", ItemArtist: "Pink Floyd"},
		SelectionMode:  "ai",
	}}
	srv := newTestServer(t, rec, &fakeHistory{})

	resp, err := http.Post(srv.URL+"/api/v1/recommendations", "application/json",
		strings.NewReader(`{"subject_id": "s1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Status != "success" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
	if envelope.Metadata.Timestamp.IsZero() {
		t.Error("metadata timestamp missing")
	}
}

func TestCreateRecommendationValidation(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{}, &fakeHistory{})

	tests := []struct {
		name string
		body string
	}{
		{"missing subject", `{}`},
		{"bad mode", `{"subject_id": "s1", "mode": "warp"}`},
		{"malformed json", `{broken`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/recommendations", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			envelope := decodeEnvelope(t, resp)
			if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error = %+v", envelope.Error)
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"too soon", &recommend.TooSoonError{RetryIn: 2 * time.Second}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"vendor unavailable", &recommend.VendorUnavailableError{Operation: "recommendation", RetryIn: time.Minute}, http.StatusServiceUnavailable, "VENDOR_UNAVAILABLE"},
		{"unparsable", &recommend.UnparsableRecommendationError{Raw: "??"}, http.StatusBadGateway, "UNPARSABLE_RECOMMENDATION"},
		{"no match", &recommend.NoCatalogMatchError{Title: "X", Artist: "Y"}, http.StatusUnprocessableEntity, "NO_CATALOG_MATCH"},
		{"duplicates", &recommend.DuplicateExhaustedError{Attempts: 3}, http.StatusConflict, "DUPLICATE_EXHAUSTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeRecommender{err: tt.err}, &fakeHistory{})
			resp, err := http.Post(srv.URL+"/api/v1/recommendations", "application/json",
				strings.NewReader(`{"subject_id": "s1"}`))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			envelope := decodeEnvelope(t, resp)
			if envelope.Error == nil || envelope.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", envelope.Error, tt.wantCode)
			}
		})
	}
}

func TestNoCatalogMatchDetails(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{err: &recommend.NoCatalogMatchError{
		Title:  "Imaginary Song",
		Artist: "Nobody",
		AIText: `"Imaginary Song" by Nobody`,
		Query:  `track:"Imaginary Song" artist:"Nobody"`,
	}}, &fakeHistory{})

	resp, err := http.Post(srv.URL+"/api/v1/recommendations", "application/json",
		strings.NewReader(`{"subject_id": "s1"}`))
	if err != nil {
		t.Fatal(err)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Error == nil {
		t.Fatal("expected error envelope")
	}
	if got := envelope.Error.Details["ai_text"]; got != `"Imaginary Song" by Nobody` {
		t.Errorf("ai_text detail = %v, want the AI response", got)
	}
	if got := envelope.Error.Details["query"]; got != `track:"Imaginary Song" artist:"Nobody"` {
		t.Errorf("query detail = %v, want the search query", got)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{err: &recommend.TooSoonError{RetryIn: 1500 * time.Millisecond}}, &fakeHistory{})

	resp, err := http.Post(srv.URL+"/api/v1/recommendations", "application/json",
		strings.NewReader(`{"subject_id": "s1"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2 (rounded up)", got)
	}
}

func TestListRecommendationsLimitCap(t *testing.T) {
	store := &fakeHistory{}
	srv := newTestServer(t, &fakeRecommender{}, store)

	resp, err := http.Get(srv.URL + "/api/v1/recommendations?subject_id=s1&limit=500")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if store.lastLimit != 50 {
		t.Errorf("limit = %d, want capped at 50", store.lastLimit)
	}

	// Missing subject_id is a validation error.
	resp, err = http.Get(srv.URL + "/api/v1/recommendations")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestClearRecommendationsInvalidatesCache(t *testing.T) {
	rec := &fakeRecommender{}
	srv := newTestServer(t, rec, &fakeHistory{deleted: 7})

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/recommendations?subject_id=s1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	envelope := decodeEnvelope(t, resp)
	if rec.invalidated != "s1" {
		t.Errorf("invalidated = %q, want s1", rec.invalidated)
	}
	data := envelope.Data.(map[string]interface{})
	if data["deleted"].(float64) != 7 {
		t.Errorf("deleted = %v", data["deleted"])
	}
}

func TestMarkConsumedNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{}, &fakeHistory{})

	resp, err := http.Post(srv.URL+"/api/v1/recommendations/missing/consumed", "application/json",
		strings.NewReader(`{"subject_id": "s1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Error == nil || envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", envelope.Error)
	}
}

func TestCircuitStatusAndReset(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{}, &fakeHistory{})

	resp, err := http.Get(srv.URL + "/api/v1/circuit")
	if err != nil {
		t.Fatal(err)
	}
	envelope := decodeEnvelope(t, resp)
	data := envelope.Data.(map[string]interface{})
	ops := data["operations"].(map[string]interface{})
	if _, ok := ops[recommend.OpRecommendation]; !ok {
		t.Errorf("operations = %v", ops)
	}

	resp, err = http.Post(srv.URL+"/api/v1/circuit/recommendation/reset", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("reset status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/v1/circuit/nonsense/reset", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown op reset status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{}, &fakeHistory{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{}, &fakeHistory{pingErr: context.DeadlineExceeded})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t, &fakeRecommender{}, &fakeHistory{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing from response")
	}
}
