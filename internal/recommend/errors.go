// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package recommend is the orchestration core: it aggregates listening
// data, builds prompts, calls the AI vendor through per-operation
// circuit breakers, resolves suggestions against the catalog, and
// enforces recency and diversity rules.
package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/cadence/internal/llm"
)

// UnparsableRecommendationError means the AI answered, but not in any
// recognizable track format. Raw carries a truncated copy for logs.
type UnparsableRecommendationError struct {
	Raw string
}

func (e *UnparsableRecommendationError) Error() string {
	return fmt.Sprintf("recommend: unparsable AI suggestion: %q", llm.Truncate(e.Raw))
}

// NoCatalogMatchError means a well-formed AI suggestion matched nothing
// in the catalog after every search escalation. AIText carries a
// truncated copy of the original AI response and Query the strictest
// query attempted, so the caller can see exactly what was searched.
type NoCatalogMatchError struct {
	Title  string
	Artist string
	AIText string
	Query  string
}

func (e *NoCatalogMatchError) Error() string {
	return fmt.Sprintf("recommend: no catalog match for %q by %s (query %s)", e.Title, e.Artist, e.Query)
}

// DuplicateExhaustedError means every retry produced a track already
// recommended within the blacklist window.
type DuplicateExhaustedError struct {
	Attempts int
}

func (e *DuplicateExhaustedError) Error() string {
	return fmt.Sprintf("recommend: all %d attempts hit recently recommended tracks", e.Attempts)
}

// VendorUnavailableError means a circuit breaker rejected the AI call
// without running it. RetryIn is how long until the breaker will admit
// a probe.
type VendorUnavailableError struct {
	Operation string
	RetryIn   time.Duration
}

func (e *VendorUnavailableError) Error() string {
	return fmt.Sprintf("recommend: AI vendor unavailable for %s, retry in %s", e.Operation, e.RetryIn)
}

// PlaylistUnresolvedError means no AI playlist suggestion could be
// resolved against the catalog, so there was nothing to create.
type PlaylistUnresolvedError struct {
	Requested  int
	Unresolved []string
}

func (e *PlaylistUnresolvedError) Error() string {
	return fmt.Sprintf("recommend: none of the %d requested playlist tracks resolved in the catalog", e.Requested)
}

// TooSoonError means the per-subject minimum interval between
// recommendation requests has not elapsed.
type TooSoonError struct {
	RetryIn time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("recommend: request too soon, retry in %s", e.RetryIn)
}
