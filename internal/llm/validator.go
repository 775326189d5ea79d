// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/models"
)

// Validator checks structured AI output against the expected response
// shapes. Code fences around JSON are stripped before parsing; beyond
// that nothing is repaired. Anything malformed or incomplete becomes a
// *SchemaViolationError carrying a truncated copy of the raw payload.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Selection is the validated catalog-selection response.
type Selection struct {
	SelectedIndex int     `json:"selected_index"`
	MatchScore    float64 `json:"match_score"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// FeedbackAnalysis is the validated feedback sentiment response.
type FeedbackAnalysis struct {
	Sentiment     string `json:"sentiment"`
	ProcessedText string `json:"processed_text"`
}

type profilePayload struct {
	Summary        string   `json:"summary"`
	CoreGenres     []string `json:"core_genres"`
	KeyArtists     []string `json:"key_artists"`
	EraPreferences []string `json:"era_preferences"`
	Adventurous    string   `json:"adventurousness"`
}

// Profile validates a taste-profile analysis response.
func (v *Validator) Profile(raw string) (*models.TasteProfile, error) {
	cleaned := StripCodeFences(raw)

	var payload profilePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, newSchemaViolation("profile", fmt.Sprintf("malformed JSON: %v", err), raw)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, newSchemaViolation("profile.summary", "required field missing or empty", raw)
	}
	if len(payload.CoreGenres) == 0 {
		return nil, newSchemaViolation("profile.core_genres", "required field missing or empty", raw)
	}

	return &models.TasteProfile{
		Summary:        payload.Summary,
		CoreGenres:     payload.CoreGenres,
		KeyArtists:     payload.KeyArtists,
		EraPreferences: payload.EraPreferences,
		Adventurous:    payload.Adventurous,
		Source:         "ai",
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// Selection validates a catalog-selection response against the number
// of candidates that were offered.
func (v *Validator) Selection(raw string, candidateCount int) (*Selection, error) {
	cleaned := StripCodeFences(raw)

	var sel Selection
	if err := json.Unmarshal([]byte(cleaned), &sel); err != nil {
		return nil, newSchemaViolation("selection", fmt.Sprintf("malformed JSON: %v", err), raw)
	}
	if sel.SelectedIndex < 0 || sel.SelectedIndex >= candidateCount {
		return nil, newSchemaViolation("selection.selected_index",
			fmt.Sprintf("index %d out of range [0,%d)", sel.SelectedIndex, candidateCount), raw)
	}
	if sel.MatchScore < 0 || sel.MatchScore > 1 {
		return nil, newSchemaViolation("selection.match_score",
			fmt.Sprintf("score %v outside [0,1]", sel.MatchScore), raw)
	}
	if sel.Confidence < 0 || sel.Confidence > 1 {
		return nil, newSchemaViolation("selection.confidence",
			fmt.Sprintf("score %v outside [0,1]", sel.Confidence), raw)
	}
	return &sel, nil
}

// FeedbackInsight validates a feedback sentiment analysis response.
func (v *Validator) FeedbackInsight(raw string) (*FeedbackAnalysis, error) {
	cleaned := StripCodeFences(raw)

	var fa FeedbackAnalysis
	if err := json.Unmarshal([]byte(cleaned), &fa); err != nil {
		return nil, newSchemaViolation("feedback", fmt.Sprintf("malformed JSON: %v", err), raw)
	}
	switch fa.Sentiment {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		return nil, newSchemaViolation("feedback.sentiment",
			fmt.Sprintf("unexpected value %q", fa.Sentiment), raw)
	}
	return &fa, nil
}

// Recommendation validates a parsed single-track suggestion: both
// fields must be non-empty after trimming.
func (v *Validator) Recommendation(title, artist, raw string) error {
	if strings.TrimSpace(title) == "" {
		return newSchemaViolation("recommendation.title", "empty title", raw)
	}
	if strings.TrimSpace(artist) == "" {
		return newSchemaViolation("recommendation.artist", "empty artist", raw)
	}
	return nil
}

// PlaylistBatch validates a parsed playlist suggestion batch. The AI is
// asked to overshoot, so a short batch is fine; an empty one is not.
func (v *Validator) PlaylistBatch(got, requested int, raw string) error {
	if got == 0 {
		return newSchemaViolation("playlist.tracks",
			fmt.Sprintf("no parseable tracks for a %d-track request", requested), raw)
	}
	return nil
}

// StripCodeFences removes a wrapping markdown code fence (``` or
// ```json) from AI output. Inner content is untouched.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the optional language tag on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
