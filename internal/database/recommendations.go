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
	"time"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// ErrNotFound is returned when a record does not exist or is not owned
// by the requesting subject.
var ErrNotFound = errors.New("database: record not found")

// InsertRecommendation persists a new recommendation. The caller sets
// ID and CreatedAt; both are immutable afterward.
func (db *DB) InsertRecommendation(ctx context.Context, rec *models.Recommendation) error {
	start := time.Now()
	stmt, err := db.getStmt(ctx, `INSERT INTO recommendations
		(id, subject_id, item_title, item_artist, item_uri, album_name,
		 ai_reasoning, profile_snapshot, method, confidence_score, match_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		rec.ID, rec.SubjectID, rec.ItemTitle, rec.ItemArtist, rec.ItemURI,
		nullString(rec.AlbumName), nullString(rec.AIReasoning), nullString(rec.ProfileSnapshot),
		rec.Method, rec.ConfidenceScore, rec.MatchScore, rec.CreatedAt)
	metrics.RecordDBQuery("insert", "recommendations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return nil
}

// GetRecommendation fetches one recommendation by ID.
func (db *DB) GetRecommendation(ctx context.Context, id string) (*models.Recommendation, error) {
	start := time.Now()
	stmt, err := db.getStmt(ctx, selectRecommendation+` WHERE id = ?`)
	if err != nil {
		return nil, err
	}

	rec, err := scanRecommendation(stmt.QueryRowContext(ctx, id))
	metrics.RecordDBQuery("select", "recommendations", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return rec, nil
}

// History returns a subject's recommendations, newest first.
func (db *DB) History(ctx context.Context, subjectID string, limit int) ([]models.Recommendation, error) {
	start := time.Now()
	stmt, err := db.getStmt(ctx, selectRecommendation+`
		WHERE subject_id = ? ORDER BY created_at DESC LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, subjectID, limit)
	metrics.RecordDBQuery("select", "recommendations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return collectRecommendations(rows)
}

// RecentWithin returns a subject's recommendations created inside the
// window, newest first. This feeds the dedup blacklist and diversity
// counters.
func (db *DB) RecentWithin(ctx context.Context, subjectID string, window time.Duration) ([]models.Recommendation, error) {
	start := time.Now()
	stmt, err := db.getStmt(ctx, selectRecommendation+`
		WHERE subject_id = ? AND created_at >= ? ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-window)
	rows, err := stmt.QueryContext(ctx, subjectID, cutoff)
	metrics.RecordDBQuery("select", "recommendations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent recommendations: %w", err)
	}
	defer rows.Close()

	return collectRecommendations(rows)
}

// MarkConsumed flags a recommendation as consumed and increments its
// consumption count. Idempotent on the flag; the count tracks repeat
// plays. Returns ErrNotFound when the record does not belong to the
// subject.
func (db *DB) MarkConsumed(ctx context.Context, id, subjectID string) (*models.Recommendation, error) {
	start := time.Now()
	stmt, err := db.getStmt(ctx, `UPDATE recommendations
		SET was_consumed = TRUE,
		    consumed_at = COALESCE(consumed_at, CURRENT_TIMESTAMP),
		    consumption_count = consumption_count + 1
		WHERE id = ? AND subject_id = ?`)
	if err != nil {
		return nil, err
	}

	res, err := stmt.ExecContext(ctx, id, subjectID)
	metrics.RecordDBQuery("update", "recommendations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to mark consumed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return db.GetRecommendation(ctx, id)
}

// ClearHistory deletes all of a subject's recommendations and feedback.
// The only deletion path for recommendation records.
func (db *DB) ClearHistory(ctx context.Context, subjectID string) (int64, error) {
	start := time.Now()

	fbStmt, err := db.getStmt(ctx, `DELETE FROM feedback WHERE subject_id = ?`)
	if err != nil {
		return 0, err
	}
	if _, err := fbStmt.ExecContext(ctx, subjectID); err != nil {
		metrics.RecordDBQuery("delete", "feedback", time.Since(start), err)
		return 0, fmt.Errorf("failed to clear feedback: %w", err)
	}

	stmt, err := db.getStmt(ctx, `DELETE FROM recommendations WHERE subject_id = ?`)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, subjectID)
	metrics.RecordDBQuery("delete", "recommendations", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// id is cast to VARCHAR: the driver returns UUID columns as raw bytes.
const selectRecommendation = `SELECT
	CAST(id AS VARCHAR), subject_id, item_title, item_artist, item_uri, album_name,
	ai_reasoning, profile_snapshot, method, confidence_score, match_score,
	was_consumed, consumed_at, consumption_count, created_at
	FROM recommendations`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	var rec models.Recommendation
	var album, reasoning, snapshot sql.NullString
	var confidence, match sql.NullFloat64
	var consumedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.ItemTitle, &rec.ItemArtist,
		&rec.ItemURI, &album, &reasoning, &snapshot, &rec.Method,
		&confidence, &match, &rec.WasConsumed, &consumedAt,
		&rec.ConsumptionCount, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.AlbumName = album.String
	rec.AIReasoning = reasoning.String
	rec.ProfileSnapshot = snapshot.String
	if confidence.Valid {
		rec.ConfidenceScore = &confidence.Float64
	}
	if match.Valid {
		rec.MatchScore = &match.Float64
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		rec.ConsumedAt = &t
	}
	return &rec, nil
}

func collectRecommendations(rows *sql.Rows) ([]models.Recommendation, error) {
	var out []models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
