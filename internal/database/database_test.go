// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
	}
	db, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func testRecommendation(subjectID string, createdAt time.Time) *models.Recommendation {
	conf := 0.85
	match := 0.92
	return &models.Recommendation{
		ID:              uuid.New().String(),
		SubjectID:       subjectID,
		ItemTitle:       "Paranoid Android",
		ItemArtist:      "Radiohead",
		ItemURI:         "spotify:track:6LgJvl0Xdtc73RJ1mmpotq",
		AlbumName:       "OK Computer",
		AIReasoning:     "matches the subject's art-rock leanings",
		Method:          models.MethodStandard,
		ConfidenceScore: &conf,
		MatchScore:      &match,
		CreatedAt:       createdAt,
	}
}

func TestInsertAndGetRecommendation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecommendation("subject-1", time.Now().UTC().Truncate(time.Millisecond))
	if err := db.InsertRecommendation(ctx, rec); err != nil {
		t.Fatalf("InsertRecommendation() error: %v", err)
	}

	got, err := db.GetRecommendation(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecommendation() error: %v", err)
	}
	if got.ItemTitle != rec.ItemTitle || got.ItemArtist != rec.ItemArtist {
		t.Errorf("got %q by %q, want %q by %q", got.ItemTitle, got.ItemArtist, rec.ItemTitle, rec.ItemArtist)
	}
	if got.ConfidenceScore == nil || *got.ConfidenceScore != 0.85 {
		t.Errorf("confidence = %v, want 0.85", got.ConfidenceScore)
	}
	if got.WasConsumed {
		t.Error("new recommendation must not be consumed")
	}
	if got.ConsumptionCount != 0 {
		t.Errorf("consumption count = %d, want 0", got.ConsumptionCount)
	}
}

func TestGetRecommendationNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetRecommendation(context.Background(), uuid.New().String())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		rec := testRecommendation("subject-1", base.Add(time.Duration(i)*time.Minute))
		rec.ItemTitle = string(rune('A' + i))
		if err := db.InsertRecommendation(ctx, rec); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	history, err := db.History(ctx, "subject-1", 3)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len = %d, want 3", len(history))
	}
	if history[0].ItemTitle != "E" || history[2].ItemTitle != "C" {
		t.Errorf("order = %s..%s, want E..C", history[0].ItemTitle, history[2].ItemTitle)
	}
}

func TestRecentWithinWindow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := testRecommendation("subject-1", now.Add(-48*time.Hour))
	fresh := testRecommendation("subject-1", now.Add(-time.Hour))
	fresh.ItemTitle = "Fresh Track"
	other := testRecommendation("subject-2", now.Add(-time.Hour))

	for _, rec := range []*models.Recommendation{old, fresh, other} {
		if err := db.InsertRecommendation(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	recent, err := db.RecentWithin(ctx, "subject-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("RecentWithin() error: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("len = %d, want 1", len(recent))
	}
	if recent[0].ItemTitle != "Fresh Track" {
		t.Errorf("got %q, want Fresh Track", recent[0].ItemTitle)
	}
}

func TestMarkConsumed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecommendation("subject-1", time.Now().UTC())
	if err := db.InsertRecommendation(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.MarkConsumed(ctx, rec.ID, "subject-1")
	if err != nil {
		t.Fatalf("MarkConsumed() error: %v", err)
	}
	if !got.WasConsumed || got.ConsumptionCount != 1 {
		t.Errorf("after first consume: consumed=%v count=%d, want true/1", got.WasConsumed, got.ConsumptionCount)
	}
	if got.ConsumedAt == nil {
		t.Fatal("consumed_at not set")
	}
	firstConsumedAt := *got.ConsumedAt

	// Second consume increments the count but keeps the original timestamp.
	got, err = db.MarkConsumed(ctx, rec.ID, "subject-1")
	if err != nil {
		t.Fatalf("second MarkConsumed() error: %v", err)
	}
	if got.ConsumptionCount != 2 {
		t.Errorf("count after repeat = %d, want 2", got.ConsumptionCount)
	}
	if !got.ConsumedAt.Equal(firstConsumedAt) {
		t.Errorf("consumed_at changed: %s -> %s", firstConsumedAt, got.ConsumedAt)
	}
}

func TestMarkConsumedOwnershipMismatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecommendation("subject-1", time.Now().UTC())
	if err := db.InsertRecommendation(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := db.MarkConsumed(ctx, rec.ID, "intruder"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClearHistory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecommendation("subject-1", time.Now().UTC())
	keep := testRecommendation("subject-2", time.Now().UTC())
	if err := db.InsertRecommendation(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.InsertRecommendation(ctx, keep); err != nil {
		t.Fatalf("insert: %v", err)
	}
	fb := &models.FeedbackEntry{
		ID:               uuid.New().String(),
		SubjectID:        "subject-1",
		RecommendationID: rec.ID,
		Text:             "loved it",
		Sentiment:        models.SentimentPositive,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.InsertFeedback(ctx, fb); err != nil {
		t.Fatalf("insert feedback: %v", err)
	}

	deleted, err := db.ClearHistory(ctx, "subject-1")
	if err != nil {
		t.Fatalf("ClearHistory() error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := db.GetRecommendation(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Error("subject-1 recommendation should be gone")
	}
	if _, err := db.GetRecommendation(ctx, keep.ID); err != nil {
		t.Errorf("subject-2 recommendation should survive: %v", err)
	}
	entries, err := db.FeedbackForSubject(ctx, "subject-1", 10)
	if err != nil {
		t.Fatalf("FeedbackForSubject() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("feedback entries = %d, want 0", len(entries))
	}
}

func TestInsertFeedbackOwnership(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecommendation("subject-1", time.Now().UTC())
	if err := db.InsertRecommendation(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	fb := &models.FeedbackEntry{
		ID:               uuid.New().String(),
		SubjectID:        "intruder",
		RecommendationID: rec.ID,
		Text:             "someone else's track",
		Sentiment:        models.SentimentNeutral,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.InsertFeedback(ctx, fb); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for cross-subject feedback", err)
	}
}

func TestFeedbackInsights(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recs := make([]*models.Recommendation, 4)
	for i := range recs {
		recs[i] = testRecommendation("subject-1", now.Add(time.Duration(i)*time.Minute))
		if err := db.InsertRecommendation(ctx, recs[i]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := db.MarkConsumed(ctx, recs[0].ID, "subject-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	sentiments := []string{
		models.SentimentPositive, models.SentimentPositive,
		models.SentimentNegative, models.SentimentNeutral,
	}
	for i, s := range sentiments {
		fb := &models.FeedbackEntry{
			ID:               uuid.New().String(),
			SubjectID:        "subject-1",
			RecommendationID: recs[i].ID,
			Text:             "feedback",
			Sentiment:        s,
			CreatedAt:        now,
		}
		if err := db.InsertFeedback(ctx, fb); err != nil {
			t.Fatalf("insert feedback: %v", err)
		}
	}

	insights, err := db.FeedbackInsights(ctx, "subject-1")
	if err != nil {
		t.Fatalf("FeedbackInsights() error: %v", err)
	}
	if insights.TotalFeedback != 4 {
		t.Errorf("total = %d, want 4", insights.TotalFeedback)
	}
	if insights.PositiveRatio != 0.5 {
		t.Errorf("positive ratio = %f, want 0.5", insights.PositiveRatio)
	}
	if insights.ConsumptionRate != 0.25 {
		t.Errorf("consumption rate = %f, want 0.25", insights.ConsumptionRate)
	}
	if insights.SentimentCounts[models.SentimentNegative] != 1 {
		t.Errorf("negative count = %d, want 1", insights.SentimentCounts[models.SentimentNegative])
	}
	if len(insights.TopLikedArtists) == 0 || insights.TopLikedArtists[0] != "Radiohead" {
		t.Errorf("top liked artists = %v, want [Radiohead ...]", insights.TopLikedArtists)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	profile := &models.TasteProfile{
		Summary:     "art rock with electronic detours",
		CoreGenres:  []string{"art rock", "idm"},
		KeyArtists:  []string{"Radiohead", "Aphex Twin"},
		Source:      "ai",
		GeneratedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := db.SaveProfile(ctx, "subject-1", profile); err != nil {
		t.Fatalf("SaveProfile() error: %v", err)
	}

	got, err := db.GetProfile(ctx, "subject-1")
	if err != nil {
		t.Fatalf("GetProfile() error: %v", err)
	}
	if got.Summary != profile.Summary {
		t.Errorf("summary = %q, want %q", got.Summary, profile.Summary)
	}
	if len(got.CoreGenres) != 2 || got.CoreGenres[1] != "idm" {
		t.Errorf("genres = %v", got.CoreGenres)
	}

	// Upsert replaces
	profile.Summary = "updated"
	if err := db.SaveProfile(ctx, "subject-1", profile); err != nil {
		t.Fatalf("SaveProfile() update error: %v", err)
	}
	got, err = db.GetProfile(ctx, "subject-1")
	if err != nil {
		t.Fatalf("GetProfile() after update error: %v", err)
	}
	if got.Summary != "updated" {
		t.Errorf("summary after upsert = %q, want updated", got.Summary)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetProfile(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}
