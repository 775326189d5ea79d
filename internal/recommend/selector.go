// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package recommend

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/tomtom215/cadence/internal/breaker"
	"github.com/tomtom215/cadence/internal/llm"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// Selection modes reported in results.
const (
	SelectionModeAI       = "ai"
	SelectionModeFallback = "fallback"
)

// lowConfidenceFloor is the AI confidence below which the deterministic
// fallback picks instead. Outcomes under the floor are flagged in the
// result either way.
const lowConfidenceFloor = 0.5

// SelectionOutcome is the resolved catalog track for one suggestion.
type SelectionOutcome struct {
	Track         models.Track
	Index         int
	MatchScore    float64
	Confidence    float64
	Reasoning     string
	Mode          string
	LowConfidence bool
}

// Selector picks the catalog search result that best matches an AI
// suggestion. The primary path asks the AI itself through the
// selection breaker; when that path is open, errors, answers garbage,
// or answers with low confidence, a deterministic string-similarity
// fallback picks instead.
type Selector struct {
	generator llm.Generator
	breakers  *breaker.Group
	validator *llm.Validator
}

// NewSelector creates a Selector.
func NewSelector(generator llm.Generator, breakers *breaker.Group, validator *llm.Validator) *Selector {
	return &Selector{generator: generator, breakers: breakers, validator: validator}
}

// Select resolves the best candidate. candidates must be non-empty.
func (s *Selector) Select(ctx context.Context, aiTitle, aiArtist string, candidates []models.Track) *SelectionOutcome {
	prompt := llm.SelectionPrompt(aiTitle, aiArtist, candidates)

	result := s.breakers.Execute(ctx, OpSelection, func(ctx context.Context) (interface{}, error) {
		return s.generator.Generate(ctx, OpSelection, llm.TierStandard, prompt)
	})
	if !result.Success {
		reason := "vendor_error"
		if result.Fallback {
			reason = "breaker_open"
		}
		return s.fallback(aiTitle, aiArtist, candidates, reason, result.Err)
	}

	raw, _ := result.Data.(string)
	sel, err := s.validator.Selection(raw, len(candidates))
	if err != nil {
		return s.fallback(aiTitle, aiArtist, candidates, "schema_violation", err)
	}

	metrics.SelectionConfidence.Observe(sel.Confidence)
	if sel.Confidence < lowConfidenceFloor {
		// A hesitant AI pick is worth less than the similarity score:
		// fall back, but keep the hesitation visible to the caller.
		outcome := s.fallback(aiTitle, aiArtist, candidates, "low_confidence", nil)
		outcome.LowConfidence = true
		return outcome
	}
	return &SelectionOutcome{
		Track:         candidates[sel.SelectedIndex],
		Index:         sel.SelectedIndex,
		MatchScore:    sel.MatchScore,
		Confidence:    sel.Confidence,
		Reasoning:     sel.Reasoning,
		Mode:          SelectionModeAI,
		LowConfidence: sel.Confidence < lowConfidenceFloor,
	}
}

func (s *Selector) fallback(aiTitle, aiArtist string, candidates []models.Track, reason string, cause error) *SelectionOutcome {
	metrics.SelectionFallbacks.WithLabelValues(reason).Inc()
	logging.Warn().Err(cause).Str("reason", reason).Msg("AI selection unavailable, using similarity fallback")

	index, score := FallbackSelect(aiTitle, aiArtist, candidates)
	metrics.SelectionConfidence.Observe(score)
	return &SelectionOutcome{
		Track:         candidates[index],
		Index:         index,
		MatchScore:    score,
		Confidence:    score,
		Reasoning:     "string similarity fallback",
		Mode:          SelectionModeFallback,
		LowConfidence: score < lowConfidenceFloor,
	}
}

// FallbackSelect deterministically scores every candidate against the
// suggestion and returns the best index with its score. Artist match
// is weighted heavier than title match: catalogs are full of covers
// and same-named tracks by the wrong artist.
func FallbackSelect(aiTitle, aiArtist string, candidates []models.Track) (int, float64) {
	bestIdx, bestScore := 0, -1.0
	normTitle := normalizeForMatch(aiTitle)
	normArtist := normalizeForMatch(aiArtist)

	for i, c := range candidates {
		score := 0.4*similarity(normTitle, normalizeForMatch(c.Title)) +
			0.6*similarity(normArtist, normalizeForMatch(c.Artist))
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx, bestScore
}

// normalizeForMatch folds the spelling variants that otherwise tank
// similarity scores between AI output and catalog metadata.
func normalizeForMatch(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, "feat.", "featuring")
	s = strings.ReplaceAll(s, "ft.", "featuring")
	return strings.Join(strings.Fields(s), " ")
}

// similarity is a Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
