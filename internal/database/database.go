// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package database is the DuckDB system of record for recommendations,
// feedback, and persisted taste profiles.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Prepared statement caching
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// New creates a database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	// 0750 permissions per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		stmtCache: make(map[string]*sql.Stmt),
	}

	// DuckDB works best with a single writer connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("database initialized")
	return db, nil
}

// Conn exposes the underlying connection for advanced queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases prepared statements and closes the connection.
func (db *DB) Close() error {
	db.stmtCacheMu.Lock()
	for _, stmt := range db.stmtCache {
		closeStmtQuietly(stmt)
	}
	db.stmtCache = make(map[string]*sql.Stmt)
	db.stmtCacheMu.Unlock()

	return db.conn.Close()
}

// initialize creates tables and indexes if they do not exist.
func (db *DB) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS recommendations (
			id UUID PRIMARY KEY,
			subject_id TEXT NOT NULL,
			item_title TEXT NOT NULL,
			item_artist TEXT NOT NULL,
			item_uri TEXT NOT NULL,
			album_name TEXT,
			ai_reasoning TEXT,
			profile_snapshot TEXT,
			method TEXT NOT NULL,
			confidence_score DOUBLE,
			match_score DOUBLE,
			was_consumed BOOLEAN NOT NULL DEFAULT FALSE,
			consumed_at TIMESTAMP,
			consumption_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_subject_created
			ON recommendations (subject_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id UUID PRIMARY KEY,
			subject_id TEXT NOT NULL,
			recommendation_id UUID NOT NULL,
			text TEXT NOT NULL,
			sentiment TEXT NOT NULL,
			ai_processed_text TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_subject
			ON feedback (subject_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS taste_profiles (
			subject_id TEXT PRIMARY KEY,
			profile TEXT NOT NULL,
			generated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getStmt returns a cached prepared statement, preparing it on first
// use. Statements live for the lifetime of the DB.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if stmt, ok = db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close database connection")
	}
}

func closeStmtQuietly(stmt *sql.Stmt) {
	if err := stmt.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close prepared statement")
	}
}
