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

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

// SaveProfile upserts a subject's taste profile artifact.
func (db *DB) SaveProfile(ctx context.Context, subjectID string, profile *models.TasteProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	start := time.Now()
	stmt, err := db.getStmt(ctx, `INSERT OR REPLACE INTO taste_profiles
		(subject_id, profile, generated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, subjectID, string(payload), profile.GeneratedAt)
	metrics.RecordDBQuery("upsert", "taste_profiles", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile fetches a subject's persisted taste profile. Returns
// ErrNotFound when none exists.
func (db *DB) GetProfile(ctx context.Context, subjectID string) (*models.TasteProfile, error) {
	start := time.Now()
	stmt, err := db.getStmt(ctx, `SELECT profile, generated_at
		FROM taste_profiles WHERE subject_id = ?`)
	if err != nil {
		return nil, err
	}

	var payload string
	var generatedAt time.Time
	err = stmt.QueryRowContext(ctx, subjectID).Scan(&payload, &generatedAt)
	metrics.RecordDBQuery("select", "taste_profiles", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile models.TasteProfile
	if err := json.Unmarshal([]byte(payload), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	profile.GeneratedAt = generatedAt
	return &profile, nil
}
