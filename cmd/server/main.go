// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

// Package main is the entry point for the Companion ranking server.
//
// Companion serves ranked accessory recommendations for main catalog products
// and learns from click feedback online via per-pair Thompson Sampling.
//
// The server initializes components in the following order:
//
//  1. Configuration: struct defaults, config.yaml, environment (Koanf v2)
//  2. Database: DuckDB with the product, feedback, and arm tables
//  3. Catalog: in-memory product snapshot loaded from the database
//  4. Engine: retrieval channels, rank fusion, bandit, scorer, MMR reranker
//  5. HTTP server: chi router under Suture supervision
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests, then checkpoints and
// closes the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/toolhaus/companion/internal/api"
	"github.com/toolhaus/companion/internal/catalog"
	"github.com/toolhaus/companion/internal/config"
	"github.com/toolhaus/companion/internal/database"
	"github.com/toolhaus/companion/internal/logging"
	"github.com/toolhaus/companion/internal/metrics"
	"github.com/toolhaus/companion/internal/recommend"
	"github.com/toolhaus/companion/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("demo_mode", cfg.Recommend.DemoMode).
		Bool("llm_enabled", cfg.Recommend.LLMEnabled).
		Bool("mmr_enabled", cfg.Recommend.MMREnabled).
		Msg("Starting companion server")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Database close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.SeedDemo {
		if err := db.SeedDemo(ctx, cfg.Recommend.EmbeddingDim); err != nil {
			return fmt.Errorf("seed demo catalog: %w", err)
		}
	}

	cat, err := catalog.New(ctx, db, cfg.Recommend.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	engine := recommend.NewEngine(&cfg.Recommend, cat, db, db, db, db)
	if err := engine.Bandit().ReloadFromStore(ctx); err != nil {
		return fmt.Errorf("load bandit arms: %w", err)
	}
	metrics.ArmsLoaded.Set(float64(engine.Bandit().Len()))

	handler := api.NewHandler(engine, cat, db)
	router := api.NewRouter(handler, &cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
