// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

const searchLimit = 5

// searchQueries builds the escalation ladder for one suggested track,
// strictest first. Later rungs trade precision for recall: AI-suggested
// titles often carry punctuation or edition suffixes the catalog index
// does not know, so the last rung drops the title entirely and trusts
// the artist name alone.
func searchQueries(title, artist string) []string {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	return []string{
		fmt.Sprintf("track:%q artist:%q", title, artist),
		fmt.Sprintf("track:%s artist:%q", title, artist),
		fmt.Sprintf("%s %s", title, artist),
		artist,
	}
}

// SearchQuery returns the canonical (strictest) catalog query for a
// suggested track, for surfacing in no-match errors.
func SearchQuery(title, artist string) string {
	return searchQueries(title, artist)[0]
}

// FindCandidates searches the catalog for an AI-suggested track,
// escalating through progressively looser queries until one returns
// results. Returns the candidates and the 1-based strategy that
// produced them; an empty slice means every rung came back empty.
// Transport errors abort the ladder, they would fail every rung too.
func FindCandidates(ctx context.Context, searcher Searcher, title, artist string) ([]models.Track, int, error) {
	queries := searchQueries(title, artist)
	for i, query := range queries {
		strategy := i + 1

		tracks, err := searcher.SearchTracks(ctx, query, searchLimit)
		if err != nil {
			return nil, strategy, err
		}
		if len(tracks) > 0 {
			metrics.CatalogSearchEscalations.Observe(float64(strategy))
			if strategy > 1 {
				logging.Debug().
					Int("strategy", strategy).
					Str("title", title).
					Str("artist", artist).
					Msg("catalog search escalated")
			}
			return tracks, strategy, nil
		}
	}

	metrics.CatalogSearchEscalations.Observe(float64(len(queries)))
	return nil, len(queries), nil
}
