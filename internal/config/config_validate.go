// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package config

import "fmt"

// Validate checks the configuration for out-of-range values. It runs once at
// boot; a failure here refuses to serve.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateRecommend()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a recognized level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := &c.Recommend
	if r.InitStrength < 0 {
		return fmt.Errorf("recommend.init_strength must be >= 0, got %g", r.InitStrength)
	}
	if r.UpdateStrengthDemo <= 0 || r.UpdateStrengthNormal <= 0 {
		return fmt.Errorf("recommend update strengths must be positive, got demo=%g normal=%g",
			r.UpdateStrengthDemo, r.UpdateStrengthNormal)
	}
	// The cap must leave room for a fresh informed prior plus one update.
	if r.MaxTotal < 2+r.InitStrength {
		return fmt.Errorf("recommend.max_total must be >= %g, got %g", 2+r.InitStrength, r.MaxTotal)
	}
	if r.BaseWeightDemo < 0 || r.BaseWeightDemo > 1 {
		return fmt.Errorf("recommend.base_weight_demo must be in [0, 1], got %g", r.BaseWeightDemo)
	}
	if r.WeightHalflife <= 0 {
		return fmt.Errorf("recommend.weight_halflife must be positive, got %g", r.WeightHalflife)
	}
	if r.RecallSize <= 0 {
		return fmt.Errorf("recommend.recall_size must be positive, got %d", r.RecallSize)
	}
	if r.ReturnSize <= 0 || r.ReturnSize > r.RecallSize {
		return fmt.Errorf("recommend.return_size must be in [1, recall_size], got %d", r.ReturnSize)
	}
	if r.RRFK <= 0 {
		return fmt.Errorf("recommend.rrf_k must be positive, got %g", r.RRFK)
	}
	if r.ChannelTimeout <= 0 {
		return fmt.Errorf("recommend.channel_timeout must be positive, got %s", r.ChannelTimeout)
	}
	if r.PureTopK < 0 || r.PureTopK > r.ReturnSize {
		return fmt.Errorf("recommend.pure_top_k must be in [0, return_size], got %d", r.PureTopK)
	}
	if r.WindowSize <= 0 {
		return fmt.Errorf("recommend.window_size must be positive, got %d", r.WindowSize)
	}
	if r.Lambda < 0 || r.Lambda > 1 {
		return fmt.Errorf("recommend.lambda must be in [0, 1], got %g", r.Lambda)
	}
	if r.MinScore < 0 || r.MinScore > 1 {
		return fmt.Errorf("recommend.min_score must be in [0, 1], got %g", r.MinScore)
	}
	if r.EmbeddingDim <= 0 {
		return fmt.Errorf("recommend.embedding_dim must be positive, got %d", r.EmbeddingDim)
	}
	return nil
}
