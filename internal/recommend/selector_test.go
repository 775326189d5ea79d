// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package recommend

import (
	"context"
	"testing"

	"github.com/tomtom215/cadence/internal/llm"
	"github.com/tomtom215/cadence/internal/models"
)

func TestSelectLowConfidenceUsesFallback(t *testing.T) {
	gen := newFakeGenerator()
	gen.responses[OpSelection] = []string{
		`{"selected_index": 1, "match_score": 0.9, "confidence": 0.2, "reasoning": "not sure"}`,
	}
	sel := NewSelector(gen, newTestBreakers(), llm.NewValidator())

	candidates := []models.Track{
		{Title: "Paranoid Android", Artist: "Radiohead", URI: "uri:exact"},
		{Title: "Unrelated Song", Artist: "Somebody Else", URI: "uri:wrong"},
	}

	outcome := sel.Select(context.Background(), "Paranoid Android", "Radiohead", candidates)
	if outcome.Mode != SelectionModeFallback {
		t.Errorf("mode = %q, want fallback for a hesitant AI answer", outcome.Mode)
	}
	if outcome.Index != 0 {
		t.Errorf("picked index %d (%s), want the exact match", outcome.Index, outcome.Track.Title)
	}
	if !outcome.LowConfidence {
		t.Error("low AI confidence should stay visible in the outcome")
	}
}

func TestSelectConfidentAIAnswerKept(t *testing.T) {
	gen := newFakeGenerator()
	gen.responses[OpSelection] = []string{
		`{"selected_index": 1, "match_score": 0.8, "confidence": 0.9, "reasoning": "remaster"}`,
	}
	sel := NewSelector(gen, newTestBreakers(), llm.NewValidator())

	candidates := []models.Track{
		{Title: "Paranoid Android", Artist: "Radiohead", URI: "uri:a"},
		{Title: "Paranoid Android - Remastered", Artist: "Radiohead", URI: "uri:b"},
	}

	outcome := sel.Select(context.Background(), "Paranoid Android", "Radiohead", candidates)
	if outcome.Mode != SelectionModeAI || outcome.Index != 1 {
		t.Errorf("mode = %q index = %d, want the AI pick kept", outcome.Mode, outcome.Index)
	}
	if outcome.LowConfidence {
		t.Error("0.9 confidence is not low")
	}
}

func TestFallbackSelectPrefersArtistMatch(t *testing.T) {
	candidates := []models.Track{
		{Title: "Bohemian Rhapsody", Artist: "Panic! At The Disco", URI: "uri:cover"},
		{Title: "Bohemian Rhapsody", Artist: "Queen", URI: "uri:original"},
		{Title: "Bohemian Like You", Artist: "The Dandy Warhols", URI: "uri:other"},
	}

	idx, score := FallbackSelect("Bohemian Rhapsody", "Queen", candidates)
	if idx != 1 {
		t.Errorf("picked index %d (%s), want the Queen original", idx, candidates[idx].Artist)
	}
	if score < 0.99 {
		t.Errorf("exact match score = %v, want ~1.0", score)
	}
}

func TestFallbackSelectNormalization(t *testing.T) {
	candidates := []models.Track{
		{Title: "Under Pressure", Artist: "Queen & David Bowie"},
		{Title: "Under Pressure", Artist: "My Chemical Romance"},
	}

	// "and" vs "&" should not tank the similarity.
	idx, _ := FallbackSelect("Under Pressure", "Queen and David Bowie", candidates)
	if idx != 0 {
		t.Errorf("picked index %d, want 0", idx)
	}

	featA := normalizeForMatch("Travis Scott feat. Drake")
	featB := normalizeForMatch("Travis Scott featuring Drake")
	if featA != featB {
		t.Errorf("feat. normalization mismatch: %q vs %q", featA, featB)
	}
	if normalizeForMatch("Travis Scott ft. Drake") != featB {
		t.Error("ft. should normalize to featuring")
	}
}

func TestFallbackSelectSingleCandidate(t *testing.T) {
	candidates := []models.Track{{Title: "Completely Different", Artist: "Someone Else"}}
	idx, score := FallbackSelect("Paranoid Android", "Radiohead", candidates)
	if idx != 0 {
		t.Errorf("idx = %d, want 0", idx)
	}
	if score >= lowConfidenceFloor {
		t.Errorf("mismatched candidate score = %v, should be low", score)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"radiohead", "radiohead", 1},
		{"", "", 1},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	if got := similarity("kitten", "sitting"); got <= 0.5 || got >= 0.7 {
		// 3 edits over 7 runes.
		t.Errorf("similarity(kitten, sitting) = %v, want ~0.571", got)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
