// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package api implements the HTTP surface: request decoding and
// validation, the response envelope, and the mapping from pipeline
// errors to status codes.
package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/database"
	"github.com/tomtom215/cadence/internal/llm"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/recommend"
)

func writeJSON(w http.ResponseWriter, status int, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("response encode failed")
	}
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	writeJSON(w, status, models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := mapError(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logging.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("request rejected")
	}

	if retryIn := retryAfter(err); retryIn > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryIn.Seconds()))))
	}

	writeJSON(w, status, models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	})
}

func validationError(w http.ResponseWriter, r *http.Request, details map[string]interface{}) {
	logging.Ctx(r.Context()).Warn().Interface("details", details).Msg("validation failed")
	writeJSON(w, http.StatusBadRequest, models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: "invalid request",
			Details: details,
		},
	})
}

// mapError translates the pipeline error taxonomy to HTTP.
func mapError(err error) (int, *models.APIError) {
	var (
		tooSoon     *recommend.TooSoonError
		rateLimit   *llm.RateLimitError
		vendor      *recommend.VendorUnavailableError
		schema      *llm.SchemaViolationError
		unparsable  *recommend.UnparsableRecommendationError
		noMatch     *recommend.NoCatalogMatchError
		dupes       *recommend.DuplicateExhaustedError
		plUnresolve *recommend.PlaylistUnresolvedError
	)

	switch {
	case errors.As(err, &tooSoon):
		return http.StatusTooManyRequests, &models.APIError{
			Code:    "RATE_LIMITED",
			Message: "request too soon, slow down",
			Details: map[string]interface{}{"retry_in_ms": tooSoon.RetryIn.Milliseconds()},
		}
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests, &models.APIError{
			Code:    "RATE_LIMITED",
			Message: "AI vendor rate limit reached",
		}
	case errors.As(err, &vendor):
		return http.StatusServiceUnavailable, &models.APIError{
			Code:    "VENDOR_UNAVAILABLE",
			Message: "AI vendor temporarily unavailable",
			Details: map[string]interface{}{
				"operation":   vendor.Operation,
				"retry_in_ms": vendor.RetryIn.Milliseconds(),
			},
		}
	case errors.As(err, &schema):
		return http.StatusBadGateway, &models.APIError{
			Code:    "SCHEMA_VIOLATION",
			Message: "AI response failed validation",
			Details: map[string]interface{}{"field": schema.Field, "reason": schema.Reason},
		}
	case errors.As(err, &unparsable):
		return http.StatusBadGateway, &models.APIError{
			Code:    "UNPARSABLE_RECOMMENDATION",
			Message: "AI response had no recognizable track",
		}
	case errors.As(err, &noMatch):
		return http.StatusUnprocessableEntity, &models.APIError{
			Code:    "NO_CATALOG_MATCH",
			Message: "no catalog result matched the suggestion",
			Details: map[string]interface{}{
				"title":   noMatch.Title,
				"artist":  noMatch.Artist,
				"ai_text": noMatch.AIText,
				"query":   noMatch.Query,
			},
		}
	case errors.As(err, &dupes):
		return http.StatusConflict, &models.APIError{
			Code:    "DUPLICATE_EXHAUSTED",
			Message: "every candidate was recently recommended",
			Details: map[string]interface{}{"attempts": dupes.Attempts},
		}
	case errors.As(err, &plUnresolve):
		return http.StatusUnprocessableEntity, &models.APIError{
			Code:    "NO_CATALOG_MATCH",
			Message: "no playlist track resolved in the catalog",
			Details: map[string]interface{}{"unresolved": plUnresolve.Unresolved},
		}
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, &models.APIError{
			Code:    "NOT_FOUND",
			Message: "resource not found",
		}
	default:
		return http.StatusInternalServerError, &models.APIError{
			Code:    "INTERNAL_ERROR",
			Message: "internal error",
		}
	}
}

func retryAfter(err error) time.Duration {
	var tooSoon *recommend.TooSoonError
	if errors.As(err, &tooSoon) {
		return tooSoon.RetryIn
	}
	var rateLimit *llm.RateLimitError
	if errors.As(err, &rateLimit) {
		return rateLimit.RetryAfter
	}
	var vendor *recommend.VendorUnavailableError
	if errors.As(err, &vendor) {
		return vendor.RetryIn
	}
	return 0
}
