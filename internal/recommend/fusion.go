// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

// fuseRRF merges ranked channel lists into a single deduplicated candidate
// list using Reciprocal Rank Fusion. Channel 0 is the vector channel and
// channel 1 the LLM channel; additional channels contribute to the fused
// score but carry no dedicated rank field.
//
// For a candidate at rank r in channel c the raw contribution is 1/(k+r).
// The sum is normalized by the maximum possible score (rank 1 in every
// channel), C/(k+1) for C channels, so fused scores land in [0,1]. Ties keep
// the order in which candidates first appeared in any channel.
func fuseRRF(k float64, channels [][]ChannelHit) []FusedCandidate {
	if len(channels) == 0 {
		return nil
	}
	maxPossible := float64(len(channels)) / (k + 1)

	byID := make(map[int]*FusedCandidate)
	var order []int

	for c, hits := range channels {
		for i, hit := range hits {
			rank := i + 1
			cand, seen := byID[hit.ProductID]
			if !seen {
				cand = &FusedCandidate{ProductID: hit.ProductID, HasRRF: true}
				byID[hit.ProductID] = cand
				order = append(order, hit.ProductID)
			}
			cand.RRFScore += 1 / (k + float64(rank))
			switch c {
			case 0:
				if cand.VectorRank == 0 {
					cand.VectorRank = rank
				}
			case 1:
				if cand.LLMRank == 0 {
					cand.LLMRank = rank
				}
			}
			if hit.HasSimilarity && (!cand.HasSimilarity || hit.Similarity > cand.Similarity) {
				cand.Similarity = hit.Similarity
				cand.HasSimilarity = true
			}
		}
	}

	fused := make([]FusedCandidate, 0, len(order))
	for _, id := range order {
		cand := byID[id]
		cand.RRFScore /= maxPossible
		if cand.RRFScore > 1 {
			cand.RRFScore = 1
		}
		fused = append(fused, *cand)
	}

	// Stable sort by fused score descending; first-seen order breaks ties.
	stableSortByRRF(fused)
	return fused
}

// stableSortByRRF sorts candidates by RRFScore descending, preserving the
// first-seen order of equal scores. Insertion sort keeps the stability
// property explicit for the small lists fusion produces.
func stableSortByRRF(cands []FusedCandidate) {
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].RRFScore > cands[j-1].RRFScore; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}
