// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/cadence/internal/catalog"
	"github.com/tomtom215/cadence/internal/llm"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

// Playlist generates a full playlist: one batch AI call with an
// overshoot margin, per-line catalog resolution with deterministic
// selection, then playlist creation and persistence. Tracks the
// catalog cannot resolve are reported, not retried.
func (o *Orchestrator) Playlist(ctx context.Context, req *models.PlaylistRequest) (*models.PlaylistResult, error) {
	data := o.listeningData(ctx, req.SubjectID)
	profile := o.profile(ctx, req.SubjectID, data)
	blacklist, err := o.tracker.Blacklist(ctx, req.SubjectID)
	if err != nil {
		logging.Warn().Err(err).Str("subject", req.SubjectID).Msg("recency lookup degraded")
	}

	askCount := req.Count + o.cfg.PlaylistOvershoot
	prompt := llm.PlaylistPrompt(profile, data, blacklist, req.Description, askCount)

	result := o.breakers.Execute(ctx, OpPlaylist, func(ctx context.Context) (interface{}, error) {
		return o.generator.Generate(ctx, OpPlaylist, llm.TierStandard, prompt)
	})
	if !result.Success {
		_, err := o.vendorFailure(OpPlaylist, result)
		return nil, err
	}

	raw, _ := result.Data.(string)
	suggestions := ParsePlaylistLines(raw)
	if err := o.validator.PlaylistBatch(len(suggestions), req.Count, raw); err != nil {
		return nil, err
	}

	resolved, unresolved, err := o.resolveBatch(ctx, suggestions, req.Count)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return nil, &PlaylistUnresolvedError{Requested: req.Count, Unresolved: unresolved}
	}

	playlistID, playlistURI, err := o.playlists.CreatePlaylist(ctx, req.Name, req.Description)
	if err != nil {
		return nil, fmt.Errorf("recommend: failed to create playlist: %w", err)
	}

	uris := make([]string, 0, len(resolved))
	for _, rt := range resolved {
		uris = append(uris, rt.track.URI)
	}
	if err := o.playlists.AddItems(ctx, playlistID, uris); err != nil {
		return nil, fmt.Errorf("recommend: failed to fill playlist: %w", err)
	}

	recs := o.persistBatch(ctx, req.SubjectID, profile, resolved)

	logging.Info().
		Str("subject", req.SubjectID).
		Str("playlist_id", playlistID).
		Int("requested", req.Count).
		Int("resolved", len(resolved)).
		Msg("playlist created")

	return &models.PlaylistResult{
		PlaylistID:  playlistID,
		PlaylistURI: playlistURI,
		Name:        req.Name,
		Tracks:      recs,
		Requested:   req.Count,
		Resolved:    len(resolved),
		Unresolved:  unresolved,
	}, nil
}

type resolvedTrack struct {
	track models.Track
	score float64
}

// resolveBatch resolves suggestions against the catalog until the
// requested count is met or the batch runs out. Duplicate URIs within
// the batch are dropped.
func (o *Orchestrator) resolveBatch(ctx context.Context, suggestions []Suggestion, want int) ([]resolvedTrack, []string, error) {
	var resolved []resolvedTrack
	var unresolved []string
	seen := make(map[string]struct{})

	for _, s := range suggestions {
		if len(resolved) >= want {
			break
		}

		candidates, _, err := catalog.FindCandidates(ctx, o.searcher, s.Title, s.Artist)
		if err != nil {
			return nil, nil, fmt.Errorf("recommend: catalog search failed: %w", err)
		}
		if len(candidates) == 0 {
			unresolved = append(unresolved, fmt.Sprintf("%q by %s", s.Title, s.Artist))
			continue
		}

		idx, score := FallbackSelect(s.Title, s.Artist, candidates)
		track := candidates[idx]
		if _, dup := seen[strings.ToLower(track.URI)]; dup {
			continue
		}
		seen[strings.ToLower(track.URI)] = struct{}{}
		resolved = append(resolved, resolvedTrack{track: track, score: score})
	}

	return resolved, unresolved, nil
}

// persistBatch records every playlist track as a playlist-method
// recommendation so recency tracking covers playlists too. A failed
// insert logs and skips; the playlist itself already exists.
func (o *Orchestrator) persistBatch(ctx context.Context, subjectID string, profile *models.TasteProfile, tracks []resolvedTrack) []models.Recommendation {
	recs := make([]models.Recommendation, 0, len(tracks))
	for _, rt := range tracks {
		rec, err := o.persist(ctx, subjectID, models.MethodPlaylist, profile, &SelectionOutcome{
			Track:      rt.track,
			MatchScore: rt.score,
			Confidence: rt.score,
			Mode:       SelectionModeFallback,
			Reasoning:  "playlist batch resolution",
		})
		if err != nil {
			logging.Warn().Err(err).Str("uri", rt.track.URI).Msg("playlist track persist failed")
			continue
		}
		recs = append(recs, *rec)
	}
	return recs
}
