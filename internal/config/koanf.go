// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cadence/config.yaml",
	"/etc/cadence/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the
// config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3864,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/cadence.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Catalog: CatalogConfig{
			BaseURL:            "https://api.spotify.com/v1",
			Token:              "",
			Timeout:            15 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     60 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:        "",
			APIKey:         "",
			Model:          "gemini-2.5-flash",
			ModelLightning: "gemini-2.5-flash-lite",
			Timeout:        25 * time.Second,
			MaxTokens:      2048,
		},
		Breaker: BreakerConfig{
			Recommendation: BreakerOpConfig{FailureThreshold: 3, Timeout: 300 * time.Second, HalfOpenMaxCalls: 2},
			Profile:        BreakerOpConfig{FailureThreshold: 2, Timeout: 180 * time.Second, HalfOpenMaxCalls: 2},
			Feedback:       BreakerOpConfig{FailureThreshold: 2, Timeout: 120 * time.Second, HalfOpenMaxCalls: 2},
			Playlist:       BreakerOpConfig{FailureThreshold: 2, Timeout: 240 * time.Second, HalfOpenMaxCalls: 2},
			Selection:      BreakerOpConfig{FailureThreshold: 3, Timeout: 300 * time.Second, HalfOpenMaxCalls: 2},
		},
		Cache: CacheConfig{
			TTL:           10 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Recency: RecencyConfig{
			BlacklistWindow: 24 * time.Hour,
			FrequencyWindow: 72 * time.Hour,
			SaturationFloor: 3,
			DiversityStrong: 10,
			DiversityMild:   5,
		},
		Orchestrator: OrchestratorConfig{
			MinInterval:          2 * time.Second,
			MinIntervalLightning: 1 * time.Second,
			ProfileMaxAge:        24 * time.Hour,
			MaxSelectionRetries:  3,
			PlaylistOvershoot:    3,
		},
		API: APIConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			HistoryMaxLimit:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if it exists)
//  3. Environment variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped keys return "" and are skipped, which keeps random
// environment variables from polluting the config.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - LLM_API_KEY -> llm.api_key
//   - BREAKER_RECOMMENDATION_THRESHOLD -> breaker.recommendation.failure_threshold
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":             "server.port",
		"http_host":             "server.host",
		"http_timeout":          "server.timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Catalog mappings
		"catalog_base_url":             "catalog.base_url",
		"catalog_token":                "catalog.token",
		"catalog_timeout":              "catalog.timeout",
		"catalog_breaker_max_failures": "catalog.breaker_max_failures",
		"catalog_breaker_timeout":      "catalog.breaker_timeout",

		// LLM mappings
		"llm_base_url":        "llm.base_url",
		"llm_api_key":         "llm.api_key",
		"llm_model":           "llm.model",
		"llm_model_lightning": "llm.model_lightning",
		"llm_timeout":         "llm.timeout",
		"llm_max_tokens":      "llm.max_tokens",

		// Breaker mappings
		"breaker_recommendation_threshold":       "breaker.recommendation.failure_threshold",
		"breaker_recommendation_timeout":         "breaker.recommendation.timeout",
		"breaker_recommendation_half_open_calls": "breaker.recommendation.half_open_max_calls",
		"breaker_profile_threshold":              "breaker.profile.failure_threshold",
		"breaker_profile_timeout":                "breaker.profile.timeout",
		"breaker_profile_half_open_calls":        "breaker.profile.half_open_max_calls",
		"breaker_feedback_threshold":             "breaker.feedback.failure_threshold",
		"breaker_feedback_timeout":               "breaker.feedback.timeout",
		"breaker_feedback_half_open_calls":       "breaker.feedback.half_open_max_calls",
		"breaker_playlist_threshold":             "breaker.playlist.failure_threshold",
		"breaker_playlist_timeout":               "breaker.playlist.timeout",
		"breaker_playlist_half_open_calls":       "breaker.playlist.half_open_max_calls",
		"breaker_selection_threshold":            "breaker.selection.failure_threshold",
		"breaker_selection_timeout":              "breaker.selection.timeout",
		"breaker_selection_half_open_calls":      "breaker.selection.half_open_max_calls",

		// Cache mappings
		"cache_ttl":            "cache.ttl",
		"cache_sweep_interval": "cache.sweep_interval",

		// Recency mappings
		"recency_blacklist_window": "recency.blacklist_window",
		"recency_frequency_window": "recency.frequency_window",
		"recency_saturation_floor": "recency.saturation_floor",
		"recency_diversity_strong": "recency.diversity_strong",
		"recency_diversity_mild":   "recency.diversity_mild",

		// Orchestrator mappings
		"orchestrator_min_interval":           "orchestrator.min_interval",
		"orchestrator_min_interval_lightning": "orchestrator.min_interval_lightning",
		"orchestrator_profile_max_age":        "orchestrator.profile_max_age",
		"orchestrator_max_selection_retries":  "orchestrator.max_selection_retries",
		"orchestrator_playlist_overshoot":     "orchestrator.playlist_overshoot",

		// API mappings
		"rate_limit_requests":   "api.rate_limit_reqs",
		"rate_limit_window":     "api.rate_limit_window",
		"disable_rate_limit":    "api.rate_limit_disabled",
		"cors_origins":          "api.cors_origins",
		"api_history_max_limit": "api.history_max_limit",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
