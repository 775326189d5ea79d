// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// InsertFeedback persists a feedback entry after verifying that the
// referenced recommendation belongs to the same subject. Returns
// ErrNotFound on an ownership mismatch.
func (db *DB) InsertFeedback(ctx context.Context, fb *models.FeedbackEntry) error {
	rec, err := db.GetRecommendation(ctx, fb.RecommendationID)
	if err != nil {
		return err
	}
	if rec.SubjectID != fb.SubjectID {
		return ErrNotFound
	}

	start := time.Now()
	stmt, err := db.getStmt(ctx, `INSERT INTO feedback
		(id, subject_id, recommendation_id, text, sentiment, ai_processed_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, fb.ID, fb.SubjectID, fb.RecommendationID,
		fb.Text, fb.Sentiment, nullString(fb.AIProcessedText), fb.CreatedAt)
	metrics.RecordDBQuery("insert", "feedback", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// FeedbackForSubject returns a subject's feedback entries, newest first.
func (db *DB) FeedbackForSubject(ctx context.Context, subjectID string, limit int) ([]models.FeedbackEntry, error) {
	start := time.Now()
	stmt, err := db.getStmt(ctx, `SELECT
		CAST(id AS VARCHAR), subject_id, CAST(recommendation_id AS VARCHAR),
		text, sentiment, ai_processed_text, created_at
		FROM feedback WHERE subject_id = ? ORDER BY created_at DESC LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, subjectID, limit)
	metrics.RecordDBQuery("select", "feedback", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []models.FeedbackEntry
	for rows.Next() {
		var fb models.FeedbackEntry
		var processed sql.NullString
		if err := rows.Scan(&fb.ID, &fb.SubjectID, &fb.RecommendationID,
			&fb.Text, &fb.Sentiment, &processed, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.AIProcessedText = processed.String
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, nil
}

// FeedbackInsights computes a statistical summary of a subject's
// feedback and consumption. Pure SQL aggregation, never needs the AI
// vendor.
func (db *DB) FeedbackInsights(ctx context.Context, subjectID string) (*models.FeedbackInsights, error) {
	insights := &models.FeedbackInsights{
		SentimentCounts: map[string]int{},
	}

	start := time.Now()
	stmt, err := db.getStmt(ctx, `SELECT sentiment, COUNT(*)
		FROM feedback WHERE subject_id = ? GROUP BY sentiment`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, subjectID)
	metrics.RecordDBQuery("select", "feedback", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sentiment string
		var count int
		if err := rows.Scan(&sentiment, &count); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment count: %w", err)
		}
		insights.SentimentCounts[sentiment] = count
		insights.TotalFeedback += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	if insights.TotalFeedback > 0 {
		insights.PositiveRatio = float64(insights.SentimentCounts[models.SentimentPositive]) /
			float64(insights.TotalFeedback)
	}

	if err := db.fillConsumptionRate(ctx, subjectID, insights); err != nil {
		return nil, err
	}
	if err := db.fillTopLikedArtists(ctx, subjectID, insights); err != nil {
		return nil, err
	}
	return insights, nil
}

func (db *DB) fillConsumptionRate(ctx context.Context, subjectID string, insights *models.FeedbackInsights) error {
	stmt, err := db.getStmt(ctx, `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE was_consumed)
		FROM recommendations WHERE subject_id = ?`)
	if err != nil {
		return err
	}

	var total, consumed int
	err = stmt.QueryRowContext(ctx, subjectID).Scan(&total, &consumed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to query consumption rate: %w", err)
	}
	if total > 0 {
		insights.ConsumptionRate = float64(consumed) / float64(total)
	}
	return nil
}

func (db *DB) fillTopLikedArtists(ctx context.Context, subjectID string, insights *models.FeedbackInsights) error {
	stmt, err := db.getStmt(ctx, `SELECT r.item_artist, COUNT(*)
		FROM feedback f JOIN recommendations r ON f.recommendation_id = r.id
		WHERE f.subject_id = ? AND f.sentiment = 'positive'
		GROUP BY r.item_artist ORDER BY COUNT(*) DESC, r.item_artist LIMIT 5`)
	if err != nil {
		return err
	}

	rows, err := stmt.QueryContext(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to query liked artists: %w", err)
	}
	defer rows.Close()

	type artistCount struct {
		artist string
		count  int
	}
	var counts []artistCount
	for rows.Next() {
		var ac artistCount
		if err := rows.Scan(&ac.artist, &ac.count); err != nil {
			return fmt.Errorf("failed to scan liked artist: %w", err)
		}
		counts = append(counts, ac)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration failed: %w", err)
	}

	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return strings.ToLower(counts[i].artist) < strings.ToLower(counts[j].artist)
	})
	for _, ac := range counts {
		insights.TopLikedArtists = append(insights.TopLikedArtists, ac.artist)
	}
	return nil
}
