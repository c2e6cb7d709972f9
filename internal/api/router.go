// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvidigal/ludex/internal/config"
)

// NewRouter assembles the chi route tree.
func NewRouter(h *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(MetricsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.Games)
			r.Get("/search", h.SearchGames)
			r.Get("/categories", h.GamesByCategories)
			r.Get("/random", h.RandomGame)
			r.Get("/{id}", h.Game)
			r.Get("/{id}/recommendations", h.Recommendations)
			r.Get("/{id}/score", h.GameScore)
		})

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/popular", h.RankPopular)
			r.Get("/top", h.RankTop)
		})

		// Ingestion is the only write path; it gets its own bucket so a
		// feedback flood cannot starve catalog reads.
		r.With(RateLimitMiddleware(cfg.RateLimitPerSecond, cfg.RateLimitBurst)).
			Post("/evaluations", h.SubmitEvaluation)

		r.Get("/health", h.Health)
		r.Get("/health/live", h.HealthLive)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
