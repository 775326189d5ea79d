// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package llm

import (
	"fmt"
	"strings"

	"github.com/tomtom215/cadence/internal/models"
)

// Prompt assembly for every AI operation. Each builder keeps listening
// samples bounded so prompts stay well under vendor token limits.

const (
	maxPromptTracks  = 15
	maxPromptArtists = 10
)

// ProfilePrompt asks for a structured taste analysis of the listening
// snapshot.
func ProfilePrompt(data *models.ListeningData) string {
	var b strings.Builder
	b.WriteString("Analyze this listener's music taste based on their listening data.\n\n")
	writeListeningSection(&b, data)
	b.WriteString("\nRespond with JSON only, no prose:\n")
	b.WriteString(`{"summary": "<2-3 sentence taste summary>", "core_genres": ["..."], "key_artists": ["..."], "era_preferences": ["..."], "adventurousness": "<low|medium|high>"}`)
	return b.String()
}

// RecommendationPrompt asks for exactly one track suggestion.
// Sections: profile, listening sample, do-not-repeat blacklist,
// diversity warning, artist saturation advisory, session adjustment.
func RecommendationPrompt(profile *models.TasteProfile, data *models.ListeningData,
	blacklist []string, diversityWarning string, saturatedArtists []string, sessionAdjustment string) string {

	var b strings.Builder
	b.WriteString("You are a music expert recommending exactly ONE track to this listener.\n\n")

	if profile != nil {
		b.WriteString("LISTENER PROFILE:\n")
		b.WriteString(profile.Summary)
		if len(profile.CoreGenres) > 0 {
			fmt.Fprintf(&b, "\nCore genres: %s", strings.Join(profile.CoreGenres, ", "))
		}
		if len(profile.KeyArtists) > 0 {
			fmt.Fprintf(&b, "\nKey artists: %s", strings.Join(profile.KeyArtists, ", "))
		}
		b.WriteString("\n\n")
	}

	writeListeningSection(&b, data)

	if len(blacklist) > 0 {
		b.WriteString("\nDO NOT recommend any of these recently recommended tracks:\n")
		for _, entry := range blacklist {
			b.WriteString("- ")
			b.WriteString(entry)
			b.WriteString("\n")
		}
	}

	if diversityWarning != "" {
		b.WriteString("\n")
		b.WriteString(diversityWarning)
		b.WriteString("\n")
	}

	if len(saturatedArtists) > 0 {
		fmt.Fprintf(&b, "\nThese artists came up a lot lately, prefer someone else: %s\n",
			strings.Join(saturatedArtists, ", "))
	}

	if sessionAdjustment != "" {
		fmt.Fprintf(&b, "\nSESSION REQUEST: %s\n", sessionAdjustment)
	}

	b.WriteString("\nAnswer with exactly one line in this format and nothing else:\n")
	b.WriteString(`"Track Title" by Artist Name`)
	return b.String()
}

// PlaylistPrompt asks for a batch of track suggestions, one per line.
// count already includes the overshoot margin.
func PlaylistPrompt(profile *models.TasteProfile, data *models.ListeningData,
	blacklist []string, description string, count int) string {

	var b strings.Builder
	fmt.Fprintf(&b, "You are a music expert building a playlist. Suggest %d tracks for this listener.\n\n", count)

	if profile != nil {
		b.WriteString("LISTENER PROFILE:\n")
		b.WriteString(profile.Summary)
		b.WriteString("\n\n")
	}
	if description != "" {
		fmt.Fprintf(&b, "PLAYLIST THEME: %s\n\n", description)
	}

	writeListeningSection(&b, data)

	if len(blacklist) > 0 {
		b.WriteString("\nAvoid these recently recommended tracks:\n")
		for _, entry := range blacklist {
			b.WriteString("- ")
			b.WriteString(entry)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nAnswer with one track per line, no numbering, each line exactly:\n")
	b.WriteString(`"Track Title" by Artist Name`)
	return b.String()
}

// SelectionPrompt asks the AI to pick the catalog result that best
// matches its own suggestion.
func SelectionPrompt(aiTitle, aiArtist string, candidates []models.Track) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You suggested the track %q by %s. These catalog search results were found:\n\n", aiTitle, aiArtist)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %q by %s", i, c.Title, c.Artist)
		if c.Album != "" {
			fmt.Fprintf(&b, " (album: %s)", c.Album)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nPick the result that best matches your suggestion. Respond with JSON only:\n")
	b.WriteString(`{"selected_index": <number>, "match_score": <0.0-1.0>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`)
	return b.String()
}

// FeedbackPrompt asks for sentiment analysis of listener feedback.
func FeedbackPrompt(feedbackText, trackTitle, trackArtist string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A listener gave this feedback about the track %q by %s:\n\n%s\n\n",
		trackTitle, trackArtist, feedbackText)
	b.WriteString("Classify the sentiment and restate the feedback as a short preference note. Respond with JSON only:\n")
	b.WriteString(`{"sentiment": "<positive|negative|neutral>", "processed_text": "<one sentence preference note>"}`)
	return b.String()
}

func writeListeningSection(b *strings.Builder, data *models.ListeningData) {
	if data == nil || data.Empty() {
		b.WriteString("LISTENING DATA: none available, rely on broad appeal.\n")
		return
	}

	if len(data.RecentTracks) > 0 {
		b.WriteString("RECENTLY PLAYED:\n")
		for _, t := range capTracks(data.RecentTracks) {
			fmt.Fprintf(b, "- %q by %s\n", t.Title, t.Artist)
		}
	}
	if len(data.TopArtists) > 0 {
		artists := data.TopArtists
		if len(artists) > maxPromptArtists {
			artists = artists[:maxPromptArtists]
		}
		fmt.Fprintf(b, "TOP ARTISTS: %s\n", strings.Join(artists, ", "))
	}
	if len(data.TopTracks) > 0 {
		b.WriteString("TOP TRACKS:\n")
		for _, t := range capTracks(data.TopTracks) {
			fmt.Fprintf(b, "- %q by %s\n", t.Title, t.Artist)
		}
	}
	if len(data.SavedTracks) > 0 {
		b.WriteString("SAVED TRACKS (sample):\n")
		for _, t := range capTracks(data.SavedTracks) {
			fmt.Fprintf(b, "- %q by %s\n", t.Title, t.Artist)
		}
	}
	if len(data.PlaylistNames) > 0 {
		fmt.Fprintf(b, "PLAYLISTS: %s\n", strings.Join(data.PlaylistNames, ", "))
	}
}

func capTracks(tracks []models.Track) []models.Track {
	if len(tracks) > maxPromptTracks {
		return tracks[:maxPromptTracks]
	}
	return tracks
}
