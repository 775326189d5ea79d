// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package catalog

import (
	"context"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

// Read sizes for the listening snapshot. Recent plays carry the most
// signal, so they get the biggest sample.
const (
	recentLimit   = 50
	topLimit      = 20
	savedLimit    = 30
	playlistLimit = 20
)

// Aggregate collects a subject's listening snapshot from every read
// endpoint. Each read degrades independently: a failed call logs,
// leaves its section empty, and marks the snapshot degraded instead of
// failing the whole aggregation. A fully empty snapshot is still
// usable downstream, the prompts fall back to broad appeal.
func Aggregate(ctx context.Context, src DataSource) *models.ListeningData {
	data := &models.ListeningData{}

	var err error
	if data.RecentTracks, err = src.GetRecentlyPlayed(ctx, recentLimit); err != nil {
		degradeRead(data, "recently_played", err)
	}
	if data.TopArtists, err = src.GetTopArtists(ctx, topLimit); err != nil {
		degradeRead(data, "top_artists", err)
	}
	if data.TopTracks, err = src.GetTopTracks(ctx, topLimit); err != nil {
		degradeRead(data, "top_tracks", err)
	}
	if data.SavedTracks, err = src.GetSavedTracks(ctx, savedLimit); err != nil {
		degradeRead(data, "saved_tracks", err)
	}
	if data.PlaylistNames, err = src.GetPlaylists(ctx, playlistLimit); err != nil {
		degradeRead(data, "playlists", err)
	}

	return data
}

func degradeRead(data *models.ListeningData, read string, err error) {
	data.Degraded = true
	logging.Warn().Err(err).Str("read", read).Msg("listening data read degraded")
}
