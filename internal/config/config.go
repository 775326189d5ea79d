// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variables.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config file: optional YAML file (config.yaml) for persistent settings
//  3. Environment variables: override any setting
//
// Config is immutable after Load() and safe for concurrent read access
// from multiple goroutines.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Catalog      CatalogConfig      `koanf:"catalog"`
	LLM          LLMConfig          `koanf:"llm"`
	Breaker      BreakerConfig      `koanf:"breaker"`
	Cache        CacheConfig        `koanf:"cache"`
	Recency      RecencyConfig      `koanf:"recency"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	API          APIConfig          `koanf:"api"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment variables:
//   - HTTP_PORT: listen port (default: 3864)
//   - HTTP_HOST: listen host (default: 0.0.0.0)
//   - HTTP_TIMEOUT: read/write timeout (default: 30s)
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings. The database is the system of
// record for recommendations and feedback.
//
// Environment variables:
//   - DUCKDB_PATH: database file path (default: /data/cadence.duckdb)
//   - DUCKDB_MAX_MEMORY: memory limit (default: 1GB)
//   - DUCKDB_THREADS: thread count, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// CatalogConfig holds settings for the music catalog service
// (Spotify-compatible REST API).
//
// Environment variables:
//   - CATALOG_BASE_URL: API base URL
//   - CATALOG_TOKEN: bearer token (token refresh is handled externally)
//   - CATALOG_TIMEOUT: per-request timeout (default: 15s)
type CatalogConfig struct {
	BaseURL string        `koanf:"base_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`

	// Breaker settings for the outbound catalog client.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// LLMConfig holds settings for the generative AI vendor.
//
// Environment variables:
//   - LLM_BASE_URL: vendor API base URL
//   - LLM_API_KEY: API key
//   - LLM_MODEL: model for standard recommendations
//   - LLM_MODEL_LIGHTNING: cheaper/faster model for lightning mode
//   - LLM_TIMEOUT: hard per-request timeout (default: 25s)
type LLMConfig struct {
	BaseURL        string        `koanf:"base_url"`
	APIKey         string        `koanf:"api_key"`
	Model          string        `koanf:"model"`
	ModelLightning string        `koanf:"model_lightning"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxTokens      int           `koanf:"max_tokens"`
}

// BreakerOpConfig configures one named circuit breaker operation.
type BreakerOpConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	Timeout          time.Duration `koanf:"timeout"`
	HalfOpenMaxCalls int           `koanf:"half_open_max_calls"`
}

// BreakerConfig holds per-operation circuit breaker settings for AI
// vendor calls. Each operation trips independently so a failing
// recommendation prompt does not block feedback analysis.
type BreakerConfig struct {
	Recommendation BreakerOpConfig `koanf:"recommendation"`
	Profile        BreakerOpConfig `koanf:"profile"`
	Feedback       BreakerOpConfig `koanf:"feedback"`
	Playlist       BreakerOpConfig `koanf:"playlist"`
	Selection      BreakerOpConfig `koanf:"selection"`
}

// CacheConfig holds TTL cache settings for aggregated listening data.
type CacheConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RecencyConfig holds dedup and diversity window settings.
// FrequencyWindow must be at least BlacklistWindow: artist saturation
// looks further back than exact-track dedup.
type RecencyConfig struct {
	BlacklistWindow time.Duration `koanf:"blacklist_window"`
	FrequencyWindow time.Duration `koanf:"frequency_window"`
	SaturationFloor int           `koanf:"saturation_floor"`
	DiversityStrong int           `koanf:"diversity_strong"`
	DiversityMild   int           `koanf:"diversity_mild"`
}

// OrchestratorConfig holds recommendation pipeline settings.
type OrchestratorConfig struct {
	// Minimum interval between recommendation requests per subject.
	MinInterval          time.Duration `koanf:"min_interval"`
	MinIntervalLightning time.Duration `koanf:"min_interval_lightning"`

	// ProfileMaxAge bounds how old a persisted taste profile may be
	// before a fresh AI analysis is attempted.
	ProfileMaxAge time.Duration `koanf:"profile_max_age"`

	// MaxSelectionRetries bounds dedup-driven reselection attempts.
	MaxSelectionRetries int `koanf:"max_selection_retries"`

	// PlaylistOvershoot is how many extra tracks the AI is asked for
	// beyond the requested playlist size, to absorb catalog misses.
	PlaylistOvershoot int `koanf:"playlist_overshoot"`
}

// APIConfig holds HTTP API settings.
type APIConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	HistoryMaxLimit   int           `koanf:"history_max_limit"`
}

// LoggingConfig holds logging settings.
//
// Environment variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Recency.FrequencyWindow < c.Recency.BlacklistWindow {
		return fmt.Errorf("recency.frequency_window (%s) must be >= recency.blacklist_window (%s)",
			c.Recency.FrequencyWindow, c.Recency.BlacklistWindow)
	}
	for _, op := range []struct {
		name string
		cfg  BreakerOpConfig
	}{
		{"recommendation", c.Breaker.Recommendation},
		{"profile", c.Breaker.Profile},
		{"feedback", c.Breaker.Feedback},
		{"playlist", c.Breaker.Playlist},
		{"selection", c.Breaker.Selection},
	} {
		if op.cfg.FailureThreshold < 1 {
			return fmt.Errorf("breaker.%s.failure_threshold must be >= 1, got %d", op.name, op.cfg.FailureThreshold)
		}
		if op.cfg.Timeout <= 0 {
			return fmt.Errorf("breaker.%s.timeout must be positive, got %s", op.name, op.cfg.Timeout)
		}
		if op.cfg.HalfOpenMaxCalls < 1 {
			return fmt.Errorf("breaker.%s.half_open_max_calls must be >= 1, got %d", op.name, op.cfg.HalfOpenMaxCalls)
		}
	}
	if c.Orchestrator.MinInterval < 0 || c.Orchestrator.MinIntervalLightning < 0 {
		return fmt.Errorf("orchestrator min intervals must not be negative")
	}
	if c.Orchestrator.MaxSelectionRetries < 0 {
		return fmt.Errorf("orchestrator.max_selection_retries must be >= 0, got %d", c.Orchestrator.MaxSelectionRetries)
	}
	return nil
}
