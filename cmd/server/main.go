// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Command server runs the Cadence recommendation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/cadence/internal/api"
	"github.com/tomtom215/cadence/internal/breaker"
	"github.com/tomtom215/cadence/internal/cache"
	"github.com/tomtom215/cadence/internal/catalog"
	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/database"
	"github.com/tomtom215/cadence/internal/llm"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/recency"
	"github.com/tomtom215/cadence/internal/recommend"
	"github.com/tomtom215/cadence/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cadence: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Path).
		Str("model", cfg.LLM.Model).
		Msg("starting cadence")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("database close failed")
		}
	}()

	catalogClient := catalog.NewBreakerClient(&cfg.Catalog)
	generator := llm.NewClient(&cfg.LLM)
	breakers := breaker.New(breakerConfig(&cfg.Breaker))
	listeningCache := cache.New(cfg.Cache.TTL)
	tracker := recency.New(db, cfg.Recency)

	orch := recommend.New(recommend.Deps{
		Store:     db,
		Cache:     listeningCache,
		Tracker:   tracker,
		Breakers:  breakers,
		Generator: generator,
		Source:    catalogClient,
		Searcher:  catalogClient,
		Playlists: catalogClient,
	}, cfg.Orchestrator)

	handler := api.NewHandler(orch, db, breakers, catalogClient, &cfg.API)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, &cfg.API),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), supervisor.DefaultTreeConfig())
	tree.AddMaintenanceService(cache.NewSweeper(listeningCache, cfg.Cache.SweepInterval))
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = <-tree.ServeBackground(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop cleanly")
		}
	}

	logging.Info().Msg("cadence stopped")
	return nil
}

// breakerConfig maps the config schema onto the breaker group's
// per-operation settings.
func breakerConfig(cfg *config.BreakerConfig) breaker.Config {
	op := func(c config.BreakerOpConfig) breaker.OpConfig {
		return breaker.OpConfig{
			FailureThreshold: c.FailureThreshold,
			Timeout:          c.Timeout,
			HalfOpenMaxCalls: c.HalfOpenMaxCalls,
		}
	}
	return breaker.Config{
		Ops: map[string]breaker.OpConfig{
			recommend.OpRecommendation: op(cfg.Recommendation),
			recommend.OpProfile:        op(cfg.Profile),
			recommend.OpFeedback:       op(cfg.Feedback),
			recommend.OpPlaylist:       op(cfg.Playlist),
			recommend.OpSelection:      op(cfg.Selection),
		},
	}
}
