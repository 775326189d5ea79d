// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package catalog

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// BreakerClient wraps the catalog client in a shared circuit breaker.
// Listening-data reads and playlist writes all count against the same
// circuit: the catalog is one upstream, and when it is down every call
// shape fails the same way.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
}

var (
	_ DataSource     = (*BreakerClient)(nil)
	_ Searcher       = (*BreakerClient)(nil)
	_ PlaylistWriter = (*BreakerClient)(nil)
)

// NewBreakerClient creates the production catalog client.
func NewBreakerClient(cfg *config.CatalogConfig) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}

	return &BreakerClient{
		client: NewClient(cfg),
		cb:     gobreaker.NewCircuitBreaker[any](settings),
	}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// execute runs fn through the breaker and reports the outcome metric.
func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		metrics.RecordBreakerRequest("catalog", "failure")
		return nil, err
	}
	metrics.RecordBreakerRequest("catalog", "success")
	return result, nil
}

// castResult converts a breaker result back to its concrete type. A
// mismatch is a programming error, not an upstream failure.
func castResult[T any](result any) (T, error) {
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("catalog: unexpected result type %T", result)
	}
	return typed, nil
}

// GetRecentlyPlayed returns the subject's recent playback history.
func (b *BreakerClient) GetRecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetRecentlyPlayed(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return castResult[[]models.Track](result)
}

// GetTopArtists returns the subject's most played artist names.
func (b *BreakerClient) GetTopArtists(ctx context.Context, limit int) ([]string, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetTopArtists(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return castResult[[]string](result)
}

// GetTopTracks returns the subject's most played tracks.
func (b *BreakerClient) GetTopTracks(ctx context.Context, limit int) ([]models.Track, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetTopTracks(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return castResult[[]models.Track](result)
}

// GetSavedTracks returns a sample of the subject's library.
func (b *BreakerClient) GetSavedTracks(ctx context.Context, limit int) ([]models.Track, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetSavedTracks(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return castResult[[]models.Track](result)
}

// GetPlaylists returns the subject's playlist names.
func (b *BreakerClient) GetPlaylists(ctx context.Context, limit int) ([]string, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetPlaylists(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return castResult[[]string](result)
}

// GetPlaybackContext returns the current playback state, nil when
// nothing is playing.
func (b *BreakerClient) GetPlaybackContext(ctx context.Context) (*models.PlaybackContext, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetPlaybackContext(ctx)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return castResult[*models.PlaybackContext](result)
}

// SearchTracks runs one track search query.
func (b *BreakerClient) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.SearchTracks(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return castResult[[]models.Track](result)
}

// CreatePlaylist creates an empty playlist for the current subject.
func (b *BreakerClient) CreatePlaylist(ctx context.Context, name, description string) (string, string, error) {
	type created struct{ id, uri string }
	result, err := b.execute(func() (any, error) {
		id, uri, err := b.client.CreatePlaylist(ctx, name, description)
		if err != nil {
			return nil, err
		}
		return created{id: id, uri: uri}, nil
	})
	if err != nil {
		return "", "", err
	}
	c, err := castResult[created](result)
	if err != nil {
		return "", "", err
	}
	return c.id, c.uri, nil
}

// AddItems appends tracks to a playlist.
func (b *BreakerClient) AddItems(ctx context.Context, playlistID string, trackURIs []string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.client.AddItems(ctx, playlistID, trackURIs)
	})
	return err
}

// IsOpen reports whether the catalog circuit currently rejects calls.
func (b *BreakerClient) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}
