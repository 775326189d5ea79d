// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package recommend

import (
	"regexp"
	"strings"
)

// Suggestion is one parsed AI track suggestion.
type Suggestion struct {
	Title  string
	Artist string
}

var (
	// Primary format: "Track Title" by Artist Name.
	quotedRe = regexp.MustCompile(`"([^"]+)"\s+(?i:by)\s+(.+)`)

	// Fallback format: SONG: / ARTIST: on separate lines.
	songLineRe   = regexp.MustCompile(`(?im)^\s*SONG:\s*(.+)$`)
	artistLineRe = regexp.MustCompile(`(?im)^\s*ARTIST:\s*(.+)$`)

	// Leading list markers on playlist lines: "1.", "2)", "-", "*".
	listMarkerRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*]\s+)`)
)

// normalizeQuotes maps typographic quotes onto straight ones so the
// parse regex sees a single quoting convention.
func normalizeQuotes(s string) string {
	return strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'").Replace(s)
}

// ParseSuggestion extracts a single track suggestion from AI output.
// It tries the quoted form first, then the SONG:/ARTIST: line form. A
// nil result means neither format matched.
func ParseSuggestion(raw string) *Suggestion {
	text := normalizeQuotes(raw)

	if m := quotedRe.FindStringSubmatch(text); m != nil {
		s := &Suggestion{
			Title:  strings.TrimSpace(m[1]),
			Artist: cleanArtist(m[2]),
		}
		if s.Title != "" && s.Artist != "" {
			return s
		}
	}

	song := songLineRe.FindStringSubmatch(text)
	artist := artistLineRe.FindStringSubmatch(text)
	if song != nil && artist != nil {
		s := &Suggestion{
			Title:  strings.Trim(strings.TrimSpace(song[1]), `"`),
			Artist: cleanArtist(artist[1]),
		}
		if s.Title != "" && s.Artist != "" {
			return s
		}
	}

	return nil
}

// ParsePlaylistLines extracts one suggestion per line from a playlist
// batch response. Unparsable lines are skipped, and duplicates within
// the batch are dropped case-insensitively.
func ParsePlaylistLines(raw string) []Suggestion {
	var out []Suggestion
	seen := make(map[string]struct{})

	for _, line := range strings.Split(raw, "\n") {
		line = listMarkerRe.ReplaceAllString(strings.TrimSpace(line), "")
		if line == "" {
			continue
		}
		s := ParseSuggestion(line)
		if s == nil {
			continue
		}
		key := strings.ToLower(s.Title) + "\x00" + strings.ToLower(s.Artist)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, *s)
	}
	return out
}

// cleanArtist trims trailing punctuation, parenthetical asides, and
// follow-on prose the AI sometimes appends after the artist name.
func cleanArtist(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, "(["); idx > 0 {
		s = s[:idx]
	}
	// Anything after a sentence break is commentary, not artist name.
	if idx := strings.Index(s, ". "); idx > 0 {
		s = s[:idx]
	}
	return strings.TrimRight(strings.TrimSpace(s), ".,;:! ")
}
