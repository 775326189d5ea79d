// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/middleware"
)

// NewRouter assembles the full HTTP surface.
func NewRouter(h *Handler, cfg *config.APIConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Prometheus)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	if !cfg.RateLimitDisabled && cfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", h.CreateRecommendation)
		r.Get("/recommendations", h.ListRecommendations)
		r.Delete("/recommendations", h.ClearRecommendations)
		r.Post("/recommendations/{id}/consumed", h.MarkConsumed)

		r.Post("/playlists", h.CreatePlaylist)

		r.Post("/feedback", h.SubmitFeedback)
		r.Get("/feedback/insights", h.FeedbackInsights)

		r.Get("/circuit", h.CircuitStatus)
		r.Post("/circuit/{operation}/reset", h.CircuitReset)
	})

	return r
}
