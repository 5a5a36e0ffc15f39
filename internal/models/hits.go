// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package models

// VectorHit is one result of a vector-similarity query: an accessory and its
// cosine similarity to the query product, normalized into [0,1].
type VectorHit struct {
	ProductID  int     `json:"product_id"`
	Similarity float64 `json:"similarity"`
}

// LLMHit is one resolved offline LLM candidate for a main product. Hits are
// ordered by (RecRank, ResolvedRank).
type LLMHit struct {
	ProductID    int     `json:"product_id"`
	RecRank      int     `json:"rec_rank"`
	MatchScore   float64 `json:"match_score"`
	ResolvedRank int     `json:"resolved_rank"`
}
