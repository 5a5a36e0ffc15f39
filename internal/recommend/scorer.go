// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/toolhaus/companion/internal/config"
	"github.com/toolhaus/companion/internal/models"
)

// Price penalty constants: no penalty up to priceRatioThreshold times the
// main product's price, then a linear penalty capped at priceMaxPenalty.
const (
	priceRatioThreshold = 1.5
	priceMaxPenalty     = 0.3
)

// pairHashFactor spreads (main, rec) pairs before hashing for deterministic
// fallback scores and padding order.
const pairHashFactor = 10000

// scorer combines the fused base score, a Thompson sample, and the price
// penalty into the final candidate score.
type scorer struct {
	cfg    *config.RecommendConfig
	bandit *Bandit
}

// score produces the ScoredCandidate for one fused candidate.
func (s *scorer) score(mainID int, mainPrice float64, cand FusedCandidate, product *models.Product) ScoredCandidate {
	baseScore := s.baseScore(mainID, cand)

	prior, hasPrior := s.similarityPrior(cand)
	thompson := s.bandit.Sample(mainID, cand.ProductID, prior, hasPrior)

	priceFactor := priceFactor(mainPrice, product.PriceValue())

	var combined float64
	if s.cfg.DemoMode {
		w := s.cfg.BaseWeightDemo
		combined = w*baseScore + (1-w)*thompson
	} else {
		n := float64(s.bandit.FeedbackCount(mainID, cand.ProductID))
		gamma := n / (n + s.cfg.WeightHalflife)
		combined = (1-gamma)*baseScore + gamma*thompson
	}

	final := clamp01(combined * priceFactor)
	final = math.Round(final*1000) / 1000

	return ScoredCandidate{
		Product:        product,
		Score:          final,
		BaseScore:      baseScore,
		ThompsonWeight: thompson,
		PriceFactor:    priceFactor,
	}
}

// baseScore follows the priority fused score > vector similarity > stable
// hash fallback. The fallback lands in [0.1, 0.5); padded candidates use the
// narrower low-confidence band [0.3, 0.5).
func (s *scorer) baseScore(mainID int, cand FusedCandidate) float64 {
	switch {
	case cand.HasRRF:
		return cand.RRFScore
	case cand.HasSimilarity:
		return cand.Similarity
	case cand.Padded:
		return 0.3 + float64(pairHash(mainID, cand.ProductID)%1000)/5000.0
	default:
		return 0.1 + float64(pairHash(mainID, cand.ProductID)%1000)/2500.0
	}
}

// similarityPrior picks the prior used to initialize a fresh arm: vector
// similarity when known, else the fused score. Padded candidates get 0.3,
// matching the low-confidence band their base score comes from; hash fallback
// candidates get a weak 0.1.
func (s *scorer) similarityPrior(cand FusedCandidate) (float64, bool) {
	switch {
	case cand.HasSimilarity:
		return cand.Similarity, true
	case cand.HasRRF:
		return cand.RRFScore, true
	case cand.Padded:
		return 0.3, true
	default:
		return 0.1, true
	}
}

// priceFactor penalizes accessories priced far above the main product.
// Unknown or zero prices are never penalized. Above the threshold ratio the
// penalty grows linearly and saturates at priceMaxPenalty.
func priceFactor(mainPrice, candidatePrice float64) float64 {
	if mainPrice <= 0 || candidatePrice <= 0 {
		return 1.0
	}
	r := candidatePrice / mainPrice
	if r <= priceRatioThreshold {
		return 1.0
	}
	penalty := priceMaxPenalty * (r - priceRatioThreshold) / priceRatioThreshold
	if penalty > priceMaxPenalty {
		penalty = priceMaxPenalty
	}
	return 1 - penalty
}

// pairHash is a stable cross-process hash of a (main, rec) pair, used for
// fallback scores and deterministic padding order. FNV-1a over the combined
// id keeps the value identical across runs and machines.
func pairHash(mainID, recID int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(int64(mainID)*pairHashFactor+int64(recID)))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
