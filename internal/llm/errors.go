// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package llm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// maxRawBytes caps how much raw vendor output is carried inside error
// payloads. Truncation keeps multi-kilobyte AI responses out of logs
// and API error bodies.
const maxRawBytes = 500

// rateLimitPatterns are the substrings that classify a vendor error as
// a quota/rate problem. Matched case-insensitively against the error
// text and response body.
var rateLimitPatterns = []string{
	"rate limit",
	"quota",
	"429",
	"too many requests",
	"resource_exhausted",
}

// RateLimitError reports the vendor refused the call for quota reasons.
// RetryAfter is zero when the vendor gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm: rate limited, retry after %s", e.RetryAfter)
	}
	return "llm: rate limited"
}

// VendorError is any non-quota vendor failure: HTTP errors, timeouts,
// malformed transport responses. The body is truncated.
type VendorError struct {
	StatusCode int
	Body       string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("llm: vendor error (status %d): %s", e.StatusCode, e.Body)
}

// SchemaViolationError reports that AI output failed structured
// validation. Raw holds a truncated copy of the offending payload; no
// repair is attempted.
type SchemaViolationError struct {
	Field  string
	Reason string
	Raw    string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("llm: schema violation on %q: %s", e.Field, e.Reason)
}

func newSchemaViolation(field, reason, raw string) *SchemaViolationError {
	return &SchemaViolationError{Field: field, Reason: reason, Raw: Truncate(raw)}
}

// IsRateLimit reports whether an error is a rate-limit classification.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// classifyRateLimit inspects the status code and text of a vendor
// failure; quota problems become *RateLimitError so the orchestrator
// can skip the fallback AI selection path entirely.
func classifyRateLimit(statusCode int, text string, retryAfter time.Duration) error {
	if statusCode == 429 {
		return &RateLimitError{RetryAfter: retryAfter, Message: Truncate(text)}
	}
	lower := strings.ToLower(text)
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(lower, pattern) {
			return &RateLimitError{RetryAfter: retryAfter, Message: Truncate(text)}
		}
	}
	return nil
}

// Truncate caps a string at maxRawBytes for error payloads.
func Truncate(s string) string {
	if len(s) <= maxRawBytes {
		return s
	}
	return s[:maxRawBytes]
}
