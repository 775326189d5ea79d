// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.CatalogConfig{
		BaseURL: srv.URL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
	})
}

func TestGetRecentlyPlayed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/player/recently-played" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [
			{"track": {"name": "Karma Police", "uri": "spotify:track:1", "album": {"name": "OK Computer"}, "artists": [{"name": "Radiohead"}], "popularity": 80}},
			{"track": {"name": "Decks Dark", "uri": "spotify:track:2", "album": {"name": "A Moon Shaped Pool"}, "artists": [{"name": "Radiohead"}, {"name": "Other"}]}}
		]}`))
	}))

	tracks, err := client.GetRecentlyPlayed(context.Background(), 50)
	if err != nil {
		t.Fatalf("GetRecentlyPlayed() error: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if tracks[0].Title != "Karma Police" || tracks[0].Artist != "Radiohead" {
		t.Errorf("track[0] = %+v", tracks[0])
	}
	if tracks[0].Album != "OK Computer" || tracks[0].Popularity != 80 {
		t.Errorf("track[0] album/popularity = %q/%d", tracks[0].Album, tracks[0].Popularity)
	}
	// Only the primary artist is kept.
	if tracks[1].Artist != "Radiohead" {
		t.Errorf("track[1] artist = %q", tracks[1].Artist)
	}
}

func TestGetPlaybackContextNotPlaying(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	pc, err := client.GetPlaybackContext(context.Background())
	if err != nil {
		t.Fatalf("GetPlaybackContext() error: %v", err)
	}
	if pc != nil {
		t.Errorf("expected nil context, got %+v", pc)
	}
}

func TestGetPlaybackContextPlaying(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"is_playing": true, "progress_ms": 63000, "item": {"name": "Weird Fishes", "artists": [{"name": "Radiohead"}]}}`))
	}))

	pc, err := client.GetPlaybackContext(context.Background())
	if err != nil {
		t.Fatalf("GetPlaybackContext() error: %v", err)
	}
	if pc == nil {
		t.Fatal("expected playback context")
	}
	if !pc.IsPlaying || pc.ProgressMS != 63000 || pc.Track.Title != "Weird Fishes" {
		t.Errorf("context = %+v", pc)
	}
}

func TestSearchTracks(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "track" {
			t.Errorf("type param = %q", got)
		}
		if got := r.URL.Query().Get("q"); got == "" {
			t.Error("missing q param")
		}
		_, _ = w.Write([]byte(`{"tracks": {"items": [{"name": "Reckoner", "uri": "spotify:track:3", "artists": [{"name": "Radiohead"}]}]}}`))
	}))

	tracks, err := client.SearchTracks(context.Background(), `track:"Reckoner" artist:"Radiohead"`, 5)
	if err != nil {
		t.Fatalf("SearchTracks() error: %v", err)
	}
	if len(tracks) != 1 || tracks[0].URI != "spotify:track:3" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))

	if _, err := client.SearchTracks(context.Background(), "anything", 5); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestCreatePlaylistAndAddItems(t *testing.T) {
	var addedTo string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/playlists":
			if r.Method != http.MethodPost {
				t.Errorf("method = %s", r.Method)
			}
			_, _ = w.Write([]byte(`{"id": "pl123", "uri": "spotify:playlist:pl123"}`))
		case "/playlists/pl123/tracks":
			addedTo = r.URL.Path
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	id, uri, err := client.CreatePlaylist(context.Background(), "Morning Mix", "easy start")
	if err != nil {
		t.Fatalf("CreatePlaylist() error: %v", err)
	}
	if id != "pl123" || uri != "spotify:playlist:pl123" {
		t.Errorf("id/uri = %q/%q", id, uri)
	}
	if err := client.AddItems(context.Background(), "pl123", []string{"spotify:track:1"}); err != nil {
		t.Fatalf("AddItems() error: %v", err)
	}
	if addedTo != "/playlists/pl123/tracks" {
		t.Errorf("add path = %q", addedTo)
	}
}

type scriptedSearcher struct {
	results map[int][]models.Track
	err     error
	calls   int
	queries []string
}

func (s *scriptedSearcher) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	s.calls++
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[s.calls], nil
}

func TestFindCandidatesFirstStrategy(t *testing.T) {
	searcher := &scriptedSearcher{results: map[int][]models.Track{
		1: {{Title: "Reckoner", Artist: "Radiohead"}},
	}}

	tracks, strategy, err := FindCandidates(context.Background(), searcher, "Reckoner", "Radiohead")
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}
	if strategy != 1 || len(tracks) != 1 {
		t.Errorf("strategy = %d, tracks = %d", strategy, len(tracks))
	}
	if searcher.queries[0] != `track:"Reckoner" artist:"Radiohead"` {
		t.Errorf("first query = %q", searcher.queries[0])
	}
}

func TestFindCandidatesEscalates(t *testing.T) {
	searcher := &scriptedSearcher{results: map[int][]models.Track{
		3: {{Title: "Reckoner", Artist: "Radiohead"}},
	}}

	tracks, strategy, err := FindCandidates(context.Background(), searcher, "Reckoner", "Radiohead")
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}
	if strategy != 3 {
		t.Errorf("strategy = %d, want 3", strategy)
	}
	if len(tracks) != 1 {
		t.Errorf("got %d tracks", len(tracks))
	}
	if searcher.calls != 3 {
		t.Errorf("search calls = %d, want 3", searcher.calls)
	}
}

func TestFindCandidatesExhausted(t *testing.T) {
	searcher := &scriptedSearcher{}

	tracks, strategy, err := FindCandidates(context.Background(), searcher, "Imaginary Song", "Nobody")
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}
	if tracks != nil {
		t.Errorf("expected no candidates, got %+v", tracks)
	}
	if strategy != 4 || searcher.calls != 4 {
		t.Errorf("strategy = %d, calls = %d, want 4/4", strategy, searcher.calls)
	}
}

func TestSearchQueryLadder(t *testing.T) {
	searcher := &scriptedSearcher{}

	_, _, err := FindCandidates(context.Background(), searcher, " Reckoner ", "Radiohead")
	if err != nil {
		t.Fatalf("FindCandidates() error: %v", err)
	}

	want := []string{
		`track:"Reckoner" artist:"Radiohead"`,
		`track:Reckoner artist:"Radiohead"`,
		`Reckoner Radiohead`,
		`Radiohead`,
	}
	if len(searcher.queries) != len(want) {
		t.Fatalf("ran %d queries, want %d", len(searcher.queries), len(want))
	}
	for i, q := range want {
		if searcher.queries[i] != q {
			t.Errorf("rung %d query = %q, want %q", i+1, searcher.queries[i], q)
		}
	}
}

func TestFindCandidatesAbortsOnError(t *testing.T) {
	searcher := &scriptedSearcher{err: errors.New("catalog down")}

	_, _, err := FindCandidates(context.Background(), searcher, "Reckoner", "Radiohead")
	if err == nil {
		t.Fatal("expected error")
	}
	if searcher.calls != 1 {
		t.Errorf("search calls = %d, want 1 (no retry on transport errors)", searcher.calls)
	}
}

type flakySource struct {
	failTopArtists bool
}

func (f *flakySource) GetRecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error) {
	return []models.Track{{Title: "Karma Police", Artist: "Radiohead"}}, nil
}

func (f *flakySource) GetTopArtists(ctx context.Context, limit int) ([]string, error) {
	if f.failTopArtists {
		return nil, errors.New("boom")
	}
	return []string{"Radiohead"}, nil
}

func (f *flakySource) GetTopTracks(ctx context.Context, limit int) ([]models.Track, error) {
	return nil, nil
}

func (f *flakySource) GetSavedTracks(ctx context.Context, limit int) ([]models.Track, error) {
	return nil, nil
}

func (f *flakySource) GetPlaylists(ctx context.Context, limit int) ([]string, error) {
	return []string{"Liked from Radio"}, nil
}

func (f *flakySource) GetPlaybackContext(ctx context.Context) (*models.PlaybackContext, error) {
	return nil, nil
}

func TestAggregateHealthy(t *testing.T) {
	data := Aggregate(context.Background(), &flakySource{})
	if data.Degraded {
		t.Error("healthy aggregation should not be degraded")
	}
	if len(data.RecentTracks) != 1 || len(data.TopArtists) != 1 {
		t.Errorf("counts = %v", data.Counts())
	}
}

func TestAggregateDegradesPerRead(t *testing.T) {
	data := Aggregate(context.Background(), &flakySource{failTopArtists: true})
	if !data.Degraded {
		t.Error("expected degraded snapshot")
	}
	if len(data.TopArtists) != 0 {
		t.Errorf("failed read should leave section empty, got %v", data.TopArtists)
	}
	// Other reads still land.
	if len(data.RecentTracks) != 1 || len(data.PlaylistNames) != 1 {
		t.Errorf("counts = %v", data.Counts())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	bc := NewBreakerClient(&config.CatalogConfig{
		BaseURL:            srv.URL,
		Token:              "t",
		Timeout:            time.Second,
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Minute,
	})

	for i := 0; i < 3; i++ {
		if _, err := bc.SearchTracks(context.Background(), "q", 5); err == nil {
			t.Fatal("expected failure")
		}
	}
	if !bc.IsOpen() {
		t.Error("breaker should be open after 3 consecutive failures")
	}

	// Open circuit rejects without hitting the wire.
	if _, err := bc.SearchTracks(context.Background(), "q", 5); err == nil {
		t.Error("open breaker should reject")
	}
}
