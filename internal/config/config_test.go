// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}

	if cfg.Server.Port != 3864 {
		t.Errorf("default port = %d, want 3864", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("default cache TTL = %s, want 10m", cfg.Cache.TTL)
	}
	if cfg.Breaker.Recommendation.FailureThreshold != 3 {
		t.Errorf("default recommendation threshold = %d, want 3", cfg.Breaker.Recommendation.FailureThreshold)
	}
	if cfg.Breaker.Profile.Timeout != 180*time.Second {
		t.Errorf("default profile breaker timeout = %s, want 180s", cfg.Breaker.Profile.Timeout)
	}
	if cfg.Recency.BlacklistWindow != 24*time.Hour {
		t.Errorf("default blacklist window = %s, want 24h", cfg.Recency.BlacklistWindow)
	}
	if cfg.Recency.FrequencyWindow != 72*time.Hour {
		t.Errorf("default frequency window = %s, want 72h", cfg.Recency.FrequencyWindow)
	}
	if cfg.Orchestrator.MinInterval != 2*time.Second {
		t.Errorf("default min interval = %s, want 2s", cfg.Orchestrator.MinInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DUCKDB_PATH", "/tmp/test.duckdb")
	t.Setenv("BREAKER_RECOMMENDATION_THRESHOLD", "5")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("database path = %q, want /tmp/test.duckdb", cfg.Database.Path)
	}
	if cfg.Breaker.Recommendation.FailureThreshold != 5 {
		t.Errorf("recommendation threshold = %d, want 5", cfg.Breaker.Recommendation.FailureThreshold)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("cache TTL = %s, want 30s", cfg.Cache.TTL)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[0] != "https://a.example" {
		t.Errorf("cors origins = %v, want 2 trimmed entries", cfg.API.CORSOrigins)
	}
}

func TestUnmappedEnvVarsIgnored(t *testing.T) {
	t.Setenv("PATH_MAX_MEMORY", "nonsense")
	t.Setenv("RANDOM_UNRELATED_VAR", "whatever")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Database.MaxMemory != "1GB" {
		t.Errorf("max memory = %q, want default 1GB", cfg.Database.MaxMemory)
	}
}

func TestConfigFileLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 4444\ncache:\n  ttl: 5m\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Server.Port != 4444 {
		t.Errorf("port = %d, want 4444 from file", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache TTL = %s, want 5m from file", cfg.Cache.TTL)
	}

	// Env still beats file
	t.Setenv("HTTP_PORT", "5555")
	cfg, err = LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Server.Port != 5555 {
		t.Errorf("port = %d, want 5555 from env", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero llm timeout", func(c *Config) { c.LLM.Timeout = 0 }},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"frequency below blacklist", func(c *Config) { c.Recency.FrequencyWindow = time.Hour }},
		{"zero half open calls", func(c *Config) { c.Breaker.Feedback.HalfOpenMaxCalls = 0 }},
		{"zero breaker threshold", func(c *Config) { c.Breaker.Feedback.FailureThreshold = 0 }},
		{"negative retries", func(c *Config) { c.Orchestrator.MaxSelectionRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}
