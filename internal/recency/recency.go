// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package recency tracks what a subject was recently recommended so the
// pipeline can avoid repeats and steer the AI toward variety.
//
// Two windows apply: the blacklist window (default 24h) drives hard
// dedup of exact tracks, while the longer frequency window (default
// 72h) drives artist saturation advisories. Artist saturation is
// advisory only: it shapes the prompt but never rejects a selection.
package recency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/models"
)

// Store is the persistence surface the tracker reads from.
type Store interface {
	RecentWithin(ctx context.Context, subjectID string, window time.Duration) ([]models.Recommendation, error)
}

// Tracker answers recency questions for the orchestrator.
type Tracker struct {
	store Store
	cfg   config.RecencyConfig
}

// New creates a Tracker over the given store.
func New(store Store, cfg config.RecencyConfig) *Tracker {
	return &Tracker{store: store, cfg: cfg}
}

// Recent returns the subject's recommendations inside the blacklist
// window, newest first. This is the list hard dedup runs against; the
// longer frequency window only feeds advisories.
func (t *Tracker) Recent(ctx context.Context, subjectID string) ([]models.Recommendation, error) {
	return t.store.RecentWithin(ctx, subjectID, t.cfg.BlacklistWindow)
}

// Blacklist returns normalized `"title" by artist` strings for every
// recommendation inside the blacklist window. The strings go verbatim
// into the prompt's do-not-repeat section.
func (t *Tracker) Blacklist(ctx context.Context, subjectID string) ([]string, error) {
	recent, err := t.store.RecentWithin(ctx, subjectID, t.cfg.BlacklistWindow)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(recent))
	out := make([]string, 0, len(recent))
	for _, rec := range recent {
		entry := fmt.Sprintf("%q by %s", normalize(rec.ItemTitle), normalize(rec.ItemArtist))
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out, nil
}

// Frequency returns normalized artist name to recommendation count
// inside the frequency window.
func (t *Tracker) Frequency(ctx context.Context, subjectID string) (map[string]int, error) {
	recent, err := t.store.RecentWithin(ctx, subjectID, t.cfg.FrequencyWindow)
	if err != nil {
		return nil, err
	}

	freq := make(map[string]int, len(recent))
	for _, rec := range recent {
		freq[normalize(rec.ItemArtist)]++
	}
	return freq, nil
}

// SaturatedArtists returns artists at or above the saturation floor in
// the frequency window. The list feeds an advisory prompt section; it
// never blocks a selection.
func (t *Tracker) SaturatedArtists(freq map[string]int) []string {
	var out []string
	for artist, count := range freq {
		if count >= t.cfg.SaturationFloor {
			out = append(out, artist)
		}
	}
	return out
}

// DiversityWarning maps the recent recommendation count to prompt text.
// Ten or more recent tracks produce a strong warning, five or more a
// mild one, fewer none.
func (t *Tracker) DiversityWarning(totalCount int) string {
	switch {
	case totalCount >= t.cfg.DiversityStrong:
		return "IMPORTANT: Many recent recommendations have been made. Strongly prioritize variety: pick an artist and style clearly different from everything listed above."
	case totalCount >= t.cfg.DiversityMild:
		return "Several recommendations were made recently. Lean toward variety in artist and style."
	default:
		return ""
	}
}

// IsDuplicate reports whether a candidate track matches any recent
// recommendation, comparing case-insensitively after trimming.
func (t *Tracker) IsDuplicate(candidateTitle, candidateArtist string, recent []models.Recommendation) bool {
	title := normalize(candidateTitle)
	artist := normalize(candidateArtist)
	for _, rec := range recent {
		if normalize(rec.ItemTitle) == title && normalize(rec.ItemArtist) == artist {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
