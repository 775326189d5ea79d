// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import "time"

// APIResponse is the envelope for all API responses.
//
// Example success:
//
//	{
//	  "status": "success",
//	  "data": {...},
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z"}
//	}
//
// Example error:
//
//	{
//	  "status": "error",
//	  "data": null,
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z"},
//	  "error": {"code": "RATE_LIMITED", "message": "..."}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
//
// QueryTimeMS is the pipeline or query execution time in milliseconds.
// Cached is set when the listening-data aggregate was served from the
// TTL cache rather than the catalog service.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError represents structured error details.
//
// Common error codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - RATE_LIMITED: per-subject interval or vendor quota exceeded
//   - VENDOR_UNAVAILABLE: AI circuit open and no fallback possible
//   - SCHEMA_VIOLATION: AI response failed structured validation
//   - UNPARSABLE_RECOMMENDATION: AI free text had no recognizable track
//   - NO_CATALOG_MATCH: no catalog result for the AI's suggestion
//   - DUPLICATE_EXHAUSTED: every candidate was recently recommended
//   - NOT_FOUND: resource doesn't exist
//   - DATABASE_ERROR: query execution failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
