// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"math"

	"github.com/toolhaus/companion/internal/config"
)

// mmrReranker diversifies a relevance-sorted candidate list with Maximal
// Marginal Relevance. The first PureTopK positions pass through unchanged;
// the rest are picked greedily by lambda*relevance - (1-lambda)*max
// similarity against a sliding window of the most recent selections.
type mmrReranker struct {
	cfg *config.RecommendConfig
}

// rerank selects up to cfg.ReturnSize items from scored, which must already
// be sorted descending by score. Candidates below cfg.MinScore after the
// pure-top-K phase are ineligible, so the output may come up short. Pairwise
// similarities are memoized per call.
func (m *mmrReranker) rerank(scored []ScoredCandidate) []ScoredCandidate {
	returnSize := m.cfg.ReturnSize
	if len(scored) <= returnSize {
		return scored
	}

	selected := make([]ScoredCandidate, 0, returnSize)
	used := make([]bool, len(scored))

	// Phase 1: pure top-K, most relevant items kept verbatim.
	pure := m.cfg.PureTopK
	if pure > returnSize {
		pure = returnSize
	}
	for i := 0; i < pure && i < len(scored); i++ {
		selected = append(selected, scored[i])
		used[i] = true
	}

	sims := newSimMemo(len(scored))

	// Phase 2: greedy sliding-window selection. Ties on the MMR objective go
	// to the candidate earlier in the relevance-sorted input.
	for len(selected) < returnSize {
		bestIdx := -1
		bestScore := math.Inf(-1)

		windowStart := len(selected) - m.cfg.WindowSize
		if windowStart < 0 {
			windowStart = 0
		}
		window := selected[windowStart:]

		for i, cand := range scored {
			if used[i] || cand.Score < m.cfg.MinScore {
				continue
			}
			maxSim := 0.0
			for _, sel := range window {
				sim := sims.get(cand.Product.ID, sel.Product.ID, func() float64 {
					return cosineSimilarity(cand.Product.Embedding, sel.Product.Embedding)
				})
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := m.cfg.Lambda*cand.Score - (1-m.cfg.Lambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break // every remaining candidate is below the relevance floor
		}
		selected = append(selected, scored[bestIdx])
		used[bestIdx] = true
	}

	return selected
}

// simMemo caches pairwise similarities for one rerank pass, keyed by the
// ordered product-id pair.
type simMemo struct {
	cache map[[2]int]float64
}

func newSimMemo(hint int) *simMemo {
	return &simMemo{cache: make(map[[2]int]float64, hint)}
}

func (s *simMemo) get(a, b int, compute func() float64) float64 {
	key := [2]int{a, b}
	if a > b {
		key = [2]int{b, a}
	}
	if v, ok := s.cache[key]; ok {
		return v
	}
	v := compute()
	s.cache[key] = v
	return v
}

// cosineSimilarity computes the cosine of two embedding vectors, returning 0
// when either is missing, mismatched, or zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
