// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/toolhaus/companion/internal/logging"
	"github.com/toolhaus/companion/internal/metrics"
)

// Channel names used in logs and metrics.
const (
	channelVector = "vector"
	channelLLM    = "llm"
)

// retrievalChannel is one candidate source behind a uniform interface so a
// third channel can be added without pipeline surgery. fetch must respect the
// context deadline; channel failures degrade the pipeline, never abort it.
type retrievalChannel struct {
	name    string
	breaker *gobreaker.CircuitBreaker[[]ChannelHit]
	fetch   func(ctx context.Context, mainID int) ([]ChannelHit, error)
}

// retrieve runs the channel under its timeout and circuit breaker. On any
// failure it reports empty hits and degraded=true; an open breaker degrades
// without touching the underlying store.
func (c *retrievalChannel) retrieve(ctx context.Context, mainID int, timeout time.Duration) (hits []ChannelHit, degraded bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hits, err := c.breaker.Execute(func() ([]ChannelHit, error) {
		return c.fetch(ctx, mainID)
	})
	if err != nil {
		metrics.RecordChannelDegraded(c.name)
		logging.Ctx(ctx).Warn().
			Err(err).
			Int("product_id", mainID).
			Str("channel", c.name).
			Msg("Retrieval channel degraded")
		return nil, true
	}
	return hits, false
}

// newChannelBreaker builds the circuit breaker for a retrieval channel:
// trip after five consecutive failures, probe again after 30 seconds.
func newChannelBreaker(name string) *gobreaker.CircuitBreaker[[]ChannelHit] {
	return gobreaker.NewCircuitBreaker[[]ChannelHit](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("channel", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Retrieval breaker state changed")
		},
	})
}

// newVectorChannel adapts a VectorSearcher into a retrieval channel.
func newVectorChannel(searcher VectorSearcher, recallSize int) *retrievalChannel {
	return &retrievalChannel{
		name:    channelVector,
		breaker: newChannelBreaker(channelVector),
		fetch: func(ctx context.Context, mainID int) ([]ChannelHit, error) {
			vhits, err := searcher.SimilarAccessories(ctx, mainID, recallSize)
			if err != nil {
				return nil, err
			}
			hits := make([]ChannelHit, 0, len(vhits))
			for _, h := range vhits {
				hits = append(hits, ChannelHit{
					ProductID:     h.ProductID,
					Similarity:    h.Similarity,
					HasSimilarity: true,
				})
			}
			return hits, nil
		},
	}
}

// newLLMChannel adapts an LLMSource into a retrieval channel. LLM hits carry
// ranks but no vector similarity.
func newLLMChannel(source LLMSource) *retrievalChannel {
	return &retrievalChannel{
		name:    channelLLM,
		breaker: newChannelBreaker(channelLLM),
		fetch: func(ctx context.Context, mainID int) ([]ChannelHit, error) {
			lhits, err := source.LLMCandidates(ctx, mainID)
			if err != nil {
				return nil, err
			}
			hits := make([]ChannelHit, 0, len(lhits))
			for _, h := range lhits {
				hits = append(hits, ChannelHit{ProductID: h.ProductID})
			}
			return hits, nil
		},
	}
}
