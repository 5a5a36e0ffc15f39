// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"math"
	"testing"
)

const rrfEpsilon = 1e-9

func TestFuseRRFTwoChannels(t *testing.T) {
	// Vector: 11 at rank 1, 12 at rank 2. LLM: 12 at rank 1, 13 at rank 2.
	k := 60.0
	channels := [][]ChannelHit{
		{
			{ProductID: 11, Similarity: 0.9, HasSimilarity: true},
			{ProductID: 12, Similarity: 0.8, HasSimilarity: true},
		},
		{
			{ProductID: 12},
			{ProductID: 13},
		},
	}

	fused := fuseRRF(k, channels)
	if len(fused) != 3 {
		t.Fatalf("fused candidates = %d, want 3", len(fused))
	}

	maxPossible := 2.0 / (k + 1)
	want := map[int]float64{
		11: (1 / (k + 1)) / maxPossible,
		12: (1/(k+2) + 1/(k+1)) / maxPossible,
		13: (1 / (k + 2)) / maxPossible,
	}

	// Candidate in both channels wins, then rank-1 vector, then rank-2 LLM.
	wantOrder := []int{12, 11, 13}
	for i, cand := range fused {
		if cand.ProductID != wantOrder[i] {
			t.Errorf("position %d = product %d, want %d", i, cand.ProductID, wantOrder[i])
		}
		if math.Abs(cand.RRFScore-want[cand.ProductID]) > rrfEpsilon {
			t.Errorf("product %d RRFScore = %v, want %v", cand.ProductID, cand.RRFScore, want[cand.ProductID])
		}
		if !cand.HasRRF {
			t.Errorf("product %d missing HasRRF", cand.ProductID)
		}
	}
}

func TestFuseRRFRanksAndSimilarity(t *testing.T) {
	channels := [][]ChannelHit{
		{
			{ProductID: 5, Similarity: 0.7, HasSimilarity: true},
		},
		{
			{ProductID: 6},
			{ProductID: 5},
		},
	}

	fused := fuseRRF(60.0, channels)

	byID := make(map[int]FusedCandidate, len(fused))
	for _, c := range fused {
		byID[c.ProductID] = c
	}

	five := byID[5]
	if five.VectorRank != 1 || five.LLMRank != 2 {
		t.Errorf("product 5 ranks = (%d, %d), want (1, 2)", five.VectorRank, five.LLMRank)
	}
	if !five.HasSimilarity || five.Similarity != 0.7 {
		t.Errorf("product 5 similarity = (%v, %v), want (0.7, true)", five.Similarity, five.HasSimilarity)
	}

	six := byID[6]
	if six.VectorRank != 0 || six.LLMRank != 1 {
		t.Errorf("product 6 ranks = (%d, %d), want (0, 1)", six.VectorRank, six.LLMRank)
	}
	if six.HasSimilarity {
		t.Error("product 6 should carry no similarity")
	}
}

func TestFuseRRFSingleChannelNormalization(t *testing.T) {
	// With one channel, the rank-1 candidate normalizes to exactly 1.
	fused := fuseRRF(60.0, [][]ChannelHit{
		{{ProductID: 1}, {ProductID: 2}},
	})

	if math.Abs(fused[0].RRFScore-1.0) > rrfEpsilon {
		t.Errorf("rank-1 score = %v, want 1.0", fused[0].RRFScore)
	}
	if fused[1].RRFScore >= fused[0].RRFScore {
		t.Error("rank-2 score should be below rank-1")
	}
}

func TestFuseRRFTieKeepsFirstSeenOrder(t *testing.T) {
	// Same rank in disjoint channels produces equal scores; the candidate
	// seen first (channel 0) must come first.
	fused := fuseRRF(60.0, [][]ChannelHit{
		{{ProductID: 7}},
		{{ProductID: 8}},
	})

	if math.Abs(fused[0].RRFScore-fused[1].RRFScore) > rrfEpsilon {
		t.Fatalf("expected tied scores, got %v and %v", fused[0].RRFScore, fused[1].RRFScore)
	}
	if fused[0].ProductID != 7 || fused[1].ProductID != 8 {
		t.Errorf("tie order = (%d, %d), want (7, 8)", fused[0].ProductID, fused[1].ProductID)
	}
}

func TestFuseRRFEmpty(t *testing.T) {
	if got := fuseRRF(60.0, nil); got != nil {
		t.Errorf("fuseRRF(nil) = %v, want nil", got)
	}
	if got := fuseRRF(60.0, [][]ChannelHit{{}, {}}); len(got) != 0 {
		t.Errorf("fuseRRF(empty channels) = %v, want empty", got)
	}
}

func TestFuseRRFDuplicateWithinChannel(t *testing.T) {
	// A duplicate in one channel keeps the first (best) rank.
	fused := fuseRRF(60.0, [][]ChannelHit{
		{{ProductID: 3}, {ProductID: 3}},
	})

	if len(fused) != 1 {
		t.Fatalf("fused candidates = %d, want 1", len(fused))
	}
	if fused[0].VectorRank != 1 {
		t.Errorf("VectorRank = %d, want 1", fused[0].VectorRank)
	}
}
