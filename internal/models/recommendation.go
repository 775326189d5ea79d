// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package models defines the shared domain types: recommendations,
// feedback, catalog tracks, taste profiles, and the API envelope.
package models

import "time"

// Recommendation method values.
const (
	MethodStandard  = "standard"
	MethodLightning = "lightning"
	MethodPlaylist  = "playlist"
)

// Feedback sentiment values.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Recommendation is a persisted recommendation record. CreatedAt is
// immutable after insert; ConsumptionCount only ever increments via
// MarkConsumed. Records are deleted only through an explicit subject
// history clear.
type Recommendation struct {
	ID               string     `json:"id"`
	SubjectID        string     `json:"subject_id"`
	ItemTitle        string     `json:"item_title"`
	ItemArtist       string     `json:"item_artist"`
	ItemURI          string     `json:"item_uri"`
	AlbumName        string     `json:"album_name,omitempty"`
	AIReasoning      string     `json:"ai_reasoning,omitempty"`
	ProfileSnapshot  string     `json:"profile_snapshot,omitempty"`
	Method           string     `json:"method"`
	ConfidenceScore  *float64   `json:"confidence_score,omitempty"`
	MatchScore       *float64   `json:"match_score,omitempty"`
	WasConsumed      bool       `json:"was_consumed"`
	ConsumedAt       *time.Time `json:"consumed_at,omitempty"`
	ConsumptionCount int        `json:"consumption_count"`
	CreatedAt        time.Time  `json:"created_at"`
}

// FeedbackEntry is a persisted feedback record. RecommendationID must
// reference a Recommendation owned by the same subject.
type FeedbackEntry struct {
	ID               string    `json:"id"`
	SubjectID        string    `json:"subject_id"`
	RecommendationID string    `json:"recommendation_id"`
	Text             string    `json:"text"`
	Sentiment        string    `json:"sentiment"`
	AIProcessedText  string    `json:"ai_processed_text,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Track is a catalog search result candidate.
type Track struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	URI        string `json:"uri"`
	Popularity int    `json:"popularity,omitempty"`
}

// PlaybackContext describes what a subject is playing right now.
// A nil *PlaybackContext means nothing is playing; callers never need
// to sniff response shapes.
type PlaybackContext struct {
	Track      Track `json:"track"`
	IsPlaying  bool  `json:"is_playing"`
	ProgressMS int   `json:"progress_ms"`
}

// ListeningData is the aggregated listening snapshot a recommendation
// prompt is built from. Counters double as data-quality indicators in
// the response payload.
type ListeningData struct {
	RecentTracks  []Track  `json:"recent_tracks"`
	TopArtists    []string `json:"top_artists"`
	TopTracks     []Track  `json:"top_tracks"`
	SavedTracks   []Track  `json:"saved_tracks"`
	PlaylistNames []string `json:"playlist_names"`
	Degraded      bool     `json:"degraded"`
}

// Counts reports how much signal each source contributed.
func (d *ListeningData) Counts() map[string]int {
	return map[string]int{
		"recent_tracks": len(d.RecentTracks),
		"top_artists":   len(d.TopArtists),
		"top_tracks":    len(d.TopTracks),
		"saved_tracks":  len(d.SavedTracks),
		"playlists":     len(d.PlaylistNames),
	}
}

// Empty reports whether no source contributed any signal.
func (d *ListeningData) Empty() bool {
	return len(d.RecentTracks) == 0 && len(d.TopArtists) == 0 &&
		len(d.TopTracks) == 0 && len(d.SavedTracks) == 0
}

// TasteProfile is the AI (or template) analysis of a subject's taste.
type TasteProfile struct {
	Summary        string    `json:"summary"`
	CoreGenres     []string  `json:"core_genres"`
	KeyArtists     []string  `json:"key_artists"`
	EraPreferences []string  `json:"era_preferences,omitempty"`
	Adventurous    string    `json:"adventurousness,omitempty"`
	Source         string    `json:"source"` // "ai", "cached", "template"
	GeneratedAt    time.Time `json:"generated_at"`
}

// RecommendationResult is the payload returned for a successful
// recommendation request.
type RecommendationResult struct {
	Recommendation Recommendation `json:"recommendation"`
	MatchScore     *float64       `json:"match_score,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	LowConfidence  bool           `json:"low_confidence,omitempty"`
	SelectionMode  string         `json:"selection_mode"` // "ai", "fallback"
	Degraded       bool           `json:"degraded,omitempty"`
	DataQuality    map[string]int `json:"data_quality,omitempty"`
}

// PlaylistResult is the payload returned for a playlist generation
// request.
type PlaylistResult struct {
	PlaylistID  string           `json:"playlist_id"`
	PlaylistURI string           `json:"playlist_uri,omitempty"`
	Name        string           `json:"name"`
	Tracks      []Recommendation `json:"tracks"`
	Requested   int              `json:"requested"`
	Resolved    int              `json:"resolved"`
	Unresolved  []string         `json:"unresolved,omitempty"`
}

// FeedbackResult is the payload returned after feedback submission.
type FeedbackResult struct {
	Feedback    FeedbackEntry `json:"feedback"`
	AIProcessed bool          `json:"ai_processed"`
}

// FeedbackInsights is a statistical summary of a subject's feedback,
// always computable without the AI vendor.
type FeedbackInsights struct {
	TotalFeedback   int            `json:"total_feedback"`
	PositiveRatio   float64        `json:"positive_ratio"`
	SentimentCounts map[string]int `json:"sentiment_counts"`
	ConsumptionRate float64        `json:"consumption_rate"`
	TopLikedArtists []string       `json:"top_liked_artists,omitempty"`
}

// RecommendationRequest is the body for POST /api/v1/recommendations.
type RecommendationRequest struct {
	SubjectID         string `json:"subject_id" validate:"required,max=128"`
	SessionAdjustment string `json:"session_adjustment,omitempty" validate:"max=500"`
	Mode              string `json:"mode,omitempty" validate:"omitempty,oneof=standard lightning"`
}

// PlaylistRequest is the body for POST /api/v1/playlists.
type PlaylistRequest struct {
	SubjectID   string `json:"subject_id" validate:"required,max=128"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=500"`
	Count       int    `json:"count" validate:"required,min=1,max=50"`
}

// FeedbackRequest is the body for POST /api/v1/feedback.
type FeedbackRequest struct {
	SubjectID        string `json:"subject_id" validate:"required,max=128"`
	RecommendationID string `json:"recommendation_id" validate:"required,uuid4"`
	Text             string `json:"text" validate:"required,max=2000"`
}
