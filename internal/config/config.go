// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

// Package config defines the application configuration and its layered
// loading: struct defaults, then an optional YAML file, then environment
// variables.
package config

import "time"

// Config is the root configuration for the service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
	Recommend RecommendConfig `koanf:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"` // Per-request read/write timeout
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`       // DuckDB file path (":memory:" for ephemeral)
	MaxMemory string `koanf:"max_memory"` // DuckDB memory limit, e.g. "2GB"
	Threads   int    `koanf:"threads"`    // 0 = use runtime.NumCPU()
	SeedDemo  bool   `koanf:"seed_demo"`  // Populate a deterministic demo catalog at boot
}

// APIConfig holds API surface settings.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// RecommendConfig holds every tunable of the ranking and learning engine.
//
// Demo mode fixes the base/bandit blend at BaseWeightDemo/(1-BaseWeightDemo)
// and amplifies feedback updates so a single click visibly moves rankings.
// Normal mode shifts trust from retrieval to the bandit as feedback on an arm
// accumulates, with gamma = n/(n+WeightHalflife).
type RecommendConfig struct {
	DemoMode bool `koanf:"demo_mode"`

	// Thompson Sampling
	InitStrength         float64 `koanf:"init_strength"`          // I in alpha=1+s*I, beta=1+(1-s)*I
	UpdateStrengthDemo   float64 `koanf:"update_strength_demo"`   // U applied per feedback in demo mode
	UpdateStrengthNormal float64 `koanf:"update_strength_normal"` // U applied per feedback in normal mode
	MaxTotal             float64 `koanf:"max_total"`              // Cap on alpha+beta; exceeding totals are rescaled
	BaseWeightDemo       float64 `koanf:"base_weight_demo"`       // Fixed base-score weight in demo mode
	WeightHalflife       float64 `koanf:"weight_halflife"`        // k in gamma = n/(n+k)

	// Retrieval and fusion
	RecallSize     int           `koanf:"recall_size"`     // Candidates pulled per retrieval channel
	ReturnSize     int           `koanf:"return_size"`     // Items returned after reranking
	RRFK           float64       `koanf:"rrf_k"`           // RRF constant k
	LLMEnabled     bool          `koanf:"llm_enabled"`     // Toggle the offline LLM candidate channel
	ChannelTimeout time.Duration `koanf:"channel_timeout"` // Per-channel retrieval timeout

	// MMR reranking
	MMREnabled bool    `koanf:"mmr_enabled"`
	PureTopK   int     `koanf:"pure_top_k"`  // Leading positions exempt from diversification
	WindowSize int     `koanf:"window_size"` // Sliding window of recent selections
	Lambda     float64 `koanf:"lambda"`      // Relevance weight in the MMR objective
	MinScore   float64 `koanf:"min_score"`   // Relevance floor for MMR candidates

	// Seed for the Beta sampler. 0 means seed from entropy.
	Seed uint64 `koanf:"seed"`

	// EmbeddingDim is the expected product embedding dimension.
	EmbeddingDim int `koanf:"embedding_dim"`
}

// UpdateStrength returns the feedback update magnitude for the active mode.
func (c *RecommendConfig) UpdateStrength() float64 {
	if c.DemoMode {
		return c.UpdateStrengthDemo
	}
	return c.UpdateStrengthNormal
}
