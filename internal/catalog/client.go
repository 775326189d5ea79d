// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package catalog talks to the music catalog service (Spotify-shaped
// REST API): listening history reads, track search, and playlist
// writes.
//
// Read failures degrade to empty data so the recommendation pipeline
// keeps working on whatever signal is available; search and writes
// surface their errors. The exported client is wrapped in a
// sony/gobreaker circuit so a dead catalog stops burning request time.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// DataSource aggregates a subject's listening signal.
type DataSource interface {
	GetRecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error)
	GetTopArtists(ctx context.Context, limit int) ([]string, error)
	GetTopTracks(ctx context.Context, limit int) ([]models.Track, error)
	GetSavedTracks(ctx context.Context, limit int) ([]models.Track, error)
	GetPlaylists(ctx context.Context, limit int) ([]string, error)
	GetPlaybackContext(ctx context.Context) (*models.PlaybackContext, error)
}

// Searcher finds catalog tracks.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)
}

// PlaylistWriter creates playlists and fills them.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, name, description string) (id, uri string, err error)
	AddItems(ctx context.Context, playlistID string, trackURIs []string) error
}

// Client is the raw HTTP catalog client. Use NewBreakerClient for the
// production wrapper.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a catalog client from config. Token refresh is
// handled outside this service.
func NewClient(cfg *config.CatalogConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type trackItem struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Popularity int `json:"popularity"`
}

func (t *trackItem) toTrack() models.Track {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return models.Track{
		Title:      t.Name,
		Artist:     artist,
		Album:      t.Album.Name,
		URI:        t.URI,
		Popularity: t.Popularity,
	}
}

// GetRecentlyPlayed returns the subject's recent playback history.
func (c *Client) GetRecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error) {
	var payload struct {
		Items []struct {
			Track trackItem `json:"track"`
		} `json:"items"`
	}
	if err := c.get(ctx, "recently_played", "/me/player/recently-played", url.Values{"limit": {strconv.Itoa(limit)}}, &payload); err != nil {
		return nil, err
	}
	out := make([]models.Track, 0, len(payload.Items))
	for i := range payload.Items {
		out = append(out, payload.Items[i].Track.toTrack())
	}
	return out, nil
}

// GetTopArtists returns the subject's most played artist names.
func (c *Client) GetTopArtists(ctx context.Context, limit int) ([]string, error) {
	var payload struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := c.get(ctx, "top_artists", "/me/top/artists", url.Values{"limit": {strconv.Itoa(limit)}}, &payload); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		out = append(out, item.Name)
	}
	return out, nil
}

// GetTopTracks returns the subject's most played tracks.
func (c *Client) GetTopTracks(ctx context.Context, limit int) ([]models.Track, error) {
	var payload struct {
		Items []trackItem `json:"items"`
	}
	if err := c.get(ctx, "top_tracks", "/me/top/tracks", url.Values{"limit": {strconv.Itoa(limit)}}, &payload); err != nil {
		return nil, err
	}
	out := make([]models.Track, 0, len(payload.Items))
	for i := range payload.Items {
		out = append(out, payload.Items[i].toTrack())
	}
	return out, nil
}

// GetSavedTracks returns a sample of the subject's library.
func (c *Client) GetSavedTracks(ctx context.Context, limit int) ([]models.Track, error) {
	var payload struct {
		Items []struct {
			Track trackItem `json:"track"`
		} `json:"items"`
	}
	if err := c.get(ctx, "saved_tracks", "/me/tracks", url.Values{"limit": {strconv.Itoa(limit)}}, &payload); err != nil {
		return nil, err
	}
	out := make([]models.Track, 0, len(payload.Items))
	for i := range payload.Items {
		out = append(out, payload.Items[i].Track.toTrack())
	}
	return out, nil
}

// GetPlaylists returns the subject's playlist names.
func (c *Client) GetPlaylists(ctx context.Context, limit int) ([]string, error) {
	var payload struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := c.get(ctx, "playlists", "/me/playlists", url.Values{"limit": {strconv.Itoa(limit)}}, &payload); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		out = append(out, item.Name)
	}
	return out, nil
}

// GetPlaybackContext returns what is playing right now, normalized to
// an explicit shape. A nil result with nil error means nothing is
// playing (the catalog answers 204 in that case).
func (c *Client) GetPlaybackContext(ctx context.Context) (*models.PlaybackContext, error) {
	var payload struct {
		IsPlaying  bool      `json:"is_playing"`
		ProgressMS int       `json:"progress_ms"`
		Item       trackItem `json:"item"`
	}
	found, err := c.getOptional(ctx, "playback", "/me/player/currently-playing", nil, &payload)
	if err != nil {
		return nil, err
	}
	if !found || payload.Item.Name == "" {
		return nil, nil
	}
	return &models.PlaybackContext{
		Track:      payload.Item.toTrack(),
		IsPlaying:  payload.IsPlaying,
		ProgressMS: payload.ProgressMS,
	}, nil
}

// SearchTracks runs one track search query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	var payload struct {
		Tracks struct {
			Items []trackItem `json:"items"`
		} `json:"tracks"`
	}
	params := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, "search", "/search", params, &payload); err != nil {
		return nil, err
	}
	out := make([]models.Track, 0, len(payload.Tracks.Items))
	for i := range payload.Tracks.Items {
		out = append(out, payload.Tracks.Items[i].toTrack())
	}
	return out, nil
}

// CreatePlaylist creates an empty playlist for the current subject.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (string, string, error) {
	body := map[string]interface{}{
		"name":        name,
		"description": description,
		"public":      false,
	}
	var payload struct {
		ID  string `json:"id"`
		URI string `json:"uri"`
	}
	if err := c.post(ctx, "create_playlist", "/me/playlists", body, &payload); err != nil {
		return "", "", err
	}
	return payload.ID, payload.URI, nil
}

// AddItems appends tracks to a playlist.
func (c *Client) AddItems(ctx context.Context, playlistID string, trackURIs []string) error {
	body := map[string]interface{}{"uris": trackURIs}
	path := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return c.post(ctx, "add_items", path, body, nil)
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, dst interface{}) error {
	found, err := c.getOptional(ctx, op, path, params, dst)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("catalog: empty response for %s", path)
	}
	return nil
}

// getOptional performs a GET; a 204 returns (false, nil).
func (c *Client) getOptional(ctx context.Context, op, path string, params url.Values, dst interface{}) (bool, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("catalog: failed to build request: %w", err)
	}
	return c.do(op, req, dst)
}

func (c *Client) post(ctx context.Context, op, path string, body, dst interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("catalog: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("catalog: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(op, req, dst)
	return err
}

func (c *Client) do(op string, req *http.Request, dst interface{}) (bool, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.CatalogCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logging.Debug().Int("status", resp.StatusCode).Str("op", op).Msg("catalog error response")
		return false, fmt.Errorf("catalog: %s returned status %d: %s", op, resp.StatusCode, string(body))
	}

	if dst == nil {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, fmt.Errorf("catalog: failed to decode %s response: %w", op, err)
	}
	return true, nil
}
