// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toolhaus/companion/internal/config"
)

// Health endpoints get a permissive limit so monitors can poll freely.
var healthRateLimit = struct {
	requests int
	window   time.Duration
}{requests: 1000, window: time.Minute}

// Router assembles the HTTP handler tree.
type Router struct {
	handler *Handler
	cfg     *config.APIConfig
}

// NewRouter creates a router around the handler set.
func NewRouter(handler *Handler, cfg *config.APIConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the chi handler tree with the full middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))
	r.Use(RequestLogging())

	// Catalog-facing endpoints
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(
			router.cfg.RateLimitReqs,
			router.cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
		r.Use(PrometheusMetrics())

		r.Get("/recommendations/{product_id}", router.handler.Recommendations)
		r.Post("/feedback", router.handler.SubmitFeedback)
		r.Get("/main-products", router.handler.MainProducts)
		r.Get("/arm-stats/{product_id}/{recommended_product_id}", router.handler.ArmStats)
	})

	// Admin endpoints
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Use(PrometheusMetrics())

		r.Post("/admin/reload", router.handler.Reload)
	})

	// Health and observability
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(healthRateLimit.requests, healthRateLimit.window))

		r.Get("/healthz", router.handler.Health)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
