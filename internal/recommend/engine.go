// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/toolhaus/companion/internal/config"
	"github.com/toolhaus/companion/internal/logging"
	"github.com/toolhaus/companion/internal/metrics"
	"github.com/toolhaus/companion/internal/models"
)

// fallbackRRFScore is assigned to every accessory when all retrieval
// channels come back empty and the pipeline falls back to the full catalog.
const fallbackRRFScore = 0.5

// rankIDOffset fabricates response item ids from list positions. Kept for
// response-shape compatibility with downstream consumers.
const rankIDOffset = 1000

// Engine orchestrates the ranking pipeline (retrieve, fuse, pad, score,
// rerank) and the feedback pipeline (durable append, bandit update, arm
// writeback). One Engine is created at boot and shared by all requests.
type Engine struct {
	cfg      *config.RecommendConfig
	catalog  Catalog
	bandit   *Bandit
	scorer   *scorer
	reranker *mmrReranker
	channels []*retrievalChannel
	feedback FeedbackStore
	arms     ArmStore
	logger   zerolog.Logger

	// armLocks serializes update+writeback per pair so the durable arm row
	// always holds the latest (alpha, beta).
	armLocks sync.Map
}

// NewEngine wires the pipeline. The vector and LLM channels are registered
// in that order; fusion depends on channel positions for per-channel ranks.
func NewEngine(
	cfg *config.RecommendConfig,
	cat Catalog,
	searcher VectorSearcher,
	llm LLMSource,
	feedback FeedbackStore,
	arms ArmStore,
) *Engine {
	bandit := NewBandit(cfg, arms)

	channels := []*retrievalChannel{newVectorChannel(searcher, cfg.RecallSize)}
	if cfg.LLMEnabled {
		channels = append(channels, newLLMChannel(llm))
	}

	return &Engine{
		cfg:      cfg,
		catalog:  cat,
		bandit:   bandit,
		scorer:   &scorer{cfg: cfg, bandit: bandit},
		reranker: &mmrReranker{cfg: cfg},
		channels: channels,
		feedback: feedback,
		arms:     arms,
		logger:   logging.WithComponent("engine"),
	}
}

// Bandit exposes the engine's bandit state for startup loading and stats.
func (e *Engine) Bandit() *Bandit {
	return e.bandit
}

// Rank returns the ordered companion-product list for a main product.
// Returns ErrNotFound when the id does not name a main product.
func (e *Engine) Rank(ctx context.Context, mainID int) ([]ResponseItem, error) {
	start := time.Now()

	main := e.catalog.Get(mainID)
	if main == nil || main.Role != models.RoleMain {
		metrics.RecordRanking("not_found", time.Since(start))
		return nil, fmt.Errorf("product %d: %w", mainID, ErrNotFound)
	}

	channelHits := e.retrieveAll(ctx, mainID)

	fused := fuseRRF(e.cfg.RRFK, channelHits)
	metrics.RecordCandidates("fused", len(fused))

	if len(fused) == 0 {
		fused = e.fallbackCandidates(mainID)
	}
	padded := 0
	if len(fused) < e.cfg.ReturnSize {
		before := len(fused)
		fused = e.padCandidates(mainID, fused)
		padded = len(fused) - before
	}

	scored := e.scoreAndSort(mainID, main.PriceValue(), fused)

	var result []ScoredCandidate
	if e.cfg.MMREnabled && len(scored) > e.cfg.ReturnSize {
		result = e.reranker.rerank(scored)
	} else if len(scored) > e.cfg.ReturnSize {
		result = scored[:e.cfg.ReturnSize]
	} else {
		result = scored
	}

	items := buildResponse(result)
	metrics.RecordCandidates("returned", len(items))
	metrics.RecordRanking("ok", time.Since(start))

	logging.Ctx(ctx).Info().
		Int("product_id", mainID).
		Int("vector_hits", lenAt(channelHits, 0)).
		Int("llm_hits", lenAt(channelHits, 1)).
		Int("fused", len(fused)-padded).
		Int("padded", padded).
		Int("returned", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Ranking served")

	return items, nil
}

// retrieveAll fans out to every retrieval channel in parallel, each under its
// own timeout, and filters hits against the catalog snapshot. A degraded
// channel contributes an empty list; the pipeline continues regardless.
func (e *Engine) retrieveAll(ctx context.Context, mainID int) [][]ChannelHit {
	results := make([][]ChannelHit, len(e.channels))

	var wg sync.WaitGroup
	for i, ch := range e.channels {
		wg.Add(1)
		go func(i int, ch *retrievalChannel) {
			defer wg.Done()
			hits, _ := ch.retrieve(ctx, mainID, e.cfg.ChannelTimeout)
			results[i] = e.filterHits(mainID, hits)
			metrics.RecordCandidates(ch.name, len(results[i]))
		}(i, ch)
	}
	wg.Wait()

	return results
}

// filterHits drops candidates the catalog no longer knows, non-accessories,
// and the main product itself. Offline LLM candidate lists can go stale
// between ingestion runs; the snapshot is authoritative.
func (e *Engine) filterHits(mainID int, hits []ChannelHit) []ChannelHit {
	filtered := hits[:0]
	for _, h := range hits {
		if h.ProductID == mainID {
			continue
		}
		if p := e.catalog.Get(h.ProductID); p == nil || !p.IsAccessory() {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered
}

// fallbackCandidates covers the fully degraded case: every accessory except
// the main product, all with the default fused score.
func (e *Engine) fallbackCandidates(mainID int) []FusedCandidate {
	accessories := e.catalog.Accessories()
	fused := make([]FusedCandidate, 0, len(accessories))
	for _, p := range accessories {
		if p.ID == mainID {
			continue
		}
		fused = append(fused, FusedCandidate{
			ProductID: p.ID,
			RRFScore:  fallbackRRFScore,
			HasRRF:    true,
		})
	}
	return fused
}

// padCandidates fills the fused list up to the return size from the
// remaining accessories, in an order deterministic across runs and processes
// (ascending stable hash of the pair).
func (e *Engine) padCandidates(mainID int, fused []FusedCandidate) []FusedCandidate {
	present := make(map[int]struct{}, len(fused))
	for _, c := range fused {
		present[c.ProductID] = struct{}{}
	}

	var pool []int
	for _, p := range e.catalog.Accessories() {
		if p.ID == mainID {
			continue
		}
		if _, ok := present[p.ID]; ok {
			continue
		}
		pool = append(pool, p.ID)
	}
	sort.Slice(pool, func(i, j int) bool {
		hi, hj := pairHash(mainID, pool[i]), pairHash(mainID, pool[j])
		if hi == hj {
			return pool[i] < pool[j]
		}
		return hi < hj
	})

	for _, id := range pool {
		if len(fused) >= e.cfg.ReturnSize {
			break
		}
		fused = append(fused, FusedCandidate{ProductID: id, Padded: true})
	}
	return fused
}

// scoreAndSort scores every candidate and sorts descending by final score.
// The sort is stable so equal scores keep fusion order.
func (e *Engine) scoreAndSort(mainID int, mainPrice float64, fused []FusedCandidate) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(fused))
	for _, cand := range fused {
		product := e.catalog.Get(cand.ProductID)
		if product == nil {
			continue
		}
		scored = append(scored, e.scorer.score(mainID, mainPrice, cand, product))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// buildResponse shapes the final list. Item ids are fabricated from list
// positions; similarity_score carries the final blended score.
func buildResponse(scored []ScoredCandidate) []ResponseItem {
	now := time.Now().UTC()
	items := make([]ResponseItem, 0, len(scored))
	for i, c := range scored {
		items = append(items, ResponseItem{
			ID:                 i + rankIDOffset,
			SimilarityScore:    c.Score,
			CreatedAt:          now,
			RecommendedProduct: c.Product,
		})
	}
	return items
}

// Feedback applies one feedback event: append the durable feedback row,
// update the in-memory arm, then write the arm through to the store. The
// event is acknowledged once the feedback row persists; a failed arm
// writeback is logged and reconciled on the next reload, since arms can
// always be rebuilt from feedback history.
func (e *Engine) Feedback(ctx context.Context, mainID, recID int, isRelevant bool) (*models.Feedback, error) {
	main := e.catalog.Get(mainID)
	if main == nil || main.Role != models.RoleMain {
		return nil, fmt.Errorf("product %d: %w", mainID, ErrNotFound)
	}
	if rec := e.catalog.Get(recID); rec == nil || !rec.IsAccessory() {
		return nil, fmt.Errorf("recommended product %d: %w", recID, ErrNotFound)
	}

	fb := &models.Feedback{
		ProductID:            mainID,
		RecommendedProductID: recID,
		IsRelevant:           isRelevant,
	}
	if err := e.feedback.InsertFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("feedback persist failed: %w", err)
	}

	lock := e.armLock(armKey{mainID, recID})
	lock.Lock()
	armStats := e.bandit.Update(mainID, recID, isRelevant)
	err := e.arms.UpsertArm(ctx, armStats)
	lock.Unlock()
	if err != nil {
		metrics.ArmUpsertFailures.Inc()
		logging.Ctx(ctx).Error().
			Err(err).
			Int("product_id", mainID).
			Int("recommended_product_id", recID).
			Msg("Arm writeback failed, will reconcile on next reload")
	}

	metrics.RecordFeedback(isRelevant)
	metrics.ArmsLoaded.Set(float64(e.bandit.Len()))

	logging.Ctx(ctx).Info().
		Int("product_id", mainID).
		Int("recommended_product_id", recID).
		Bool("is_relevant", isRelevant).
		Float64("alpha", armStats.Alpha).
		Float64("beta", armStats.Beta).
		Msg("Feedback applied")

	return fb, nil
}

// armLock returns the mutex serializing feedback on one pair.
func (e *Engine) armLock(key armKey) *sync.Mutex {
	lock, _ := e.armLocks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// ArmStats reports the bandit state for one pair. ok is false when the arm
// has never been touched.
func (e *Engine) ArmStats(mainID, recID int) (ArmInfo, bool) {
	return e.bandit.Stats(mainID, recID)
}

// Reload refreshes the catalog snapshot and replaces the in-memory bandit
// state from the durable arm table.
func (e *Engine) Reload(ctx context.Context) error {
	if err := e.catalog.Reload(ctx); err != nil {
		return err
	}
	if err := e.bandit.ReloadFromStore(ctx); err != nil {
		return err
	}
	metrics.ArmsLoaded.Set(float64(e.bandit.Len()))
	return nil
}

func lenAt(channels [][]ChannelHit, i int) int {
	if i >= len(channels) {
		return 0
	}
	return len(channels[i])
}
