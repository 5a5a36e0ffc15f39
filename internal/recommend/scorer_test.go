// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"math"
	"testing"

	"github.com/toolhaus/companion/internal/models"
)

func TestPriceFactor(t *testing.T) {
	tests := []struct {
		name      string
		mainPrice float64
		candPrice float64
		want      float64
	}{
		{"no main price", 0, 500, 1.0},
		{"no candidate price", 1000, 0, 1.0},
		{"cheaper accessory", 1000, 200, 1.0},
		{"at threshold", 1000, 1500, 1.0},
		{"ratio 2.5 penalized", 1000, 2500, 0.8},
		{"penalty saturates", 1000, 100000, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := priceFactor(tt.mainPrice, tt.candPrice)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("priceFactor(%v, %v) = %v, want %v", tt.mainPrice, tt.candPrice, got, tt.want)
			}
		})
	}
}

func TestBaseScoreBands(t *testing.T) {
	s := &scorer{cfg: testRecommendConfig()}

	for recID := 100; recID < 140; recID++ {
		def := s.baseScore(1, FusedCandidate{ProductID: recID})
		if def < 0.1 || def >= 0.5 {
			t.Errorf("default band score for %d = %v, want [0.1, 0.5)", recID, def)
		}

		padded := s.baseScore(1, FusedCandidate{ProductID: recID, Padded: true})
		if padded < 0.3 || padded >= 0.5 {
			t.Errorf("padded band score for %d = %v, want [0.3, 0.5)", recID, padded)
		}
	}
}

func TestBaseScorePriority(t *testing.T) {
	s := &scorer{cfg: testRecommendConfig()}

	// Fused score beats similarity beats the hash fallback.
	got := s.baseScore(1, FusedCandidate{ProductID: 5, HasRRF: true, RRFScore: 0.9, HasSimilarity: true, Similarity: 0.4})
	if got != 0.9 {
		t.Errorf("with RRF = %v, want 0.9", got)
	}
	got = s.baseScore(1, FusedCandidate{ProductID: 5, HasSimilarity: true, Similarity: 0.4})
	if got != 0.4 {
		t.Errorf("with similarity only = %v, want 0.4", got)
	}
}

func TestBaseScoreStableAcrossCalls(t *testing.T) {
	s := &scorer{cfg: testRecommendConfig()}
	cand := FusedCandidate{ProductID: 77}
	first := s.baseScore(3, cand)
	for i := 0; i < 5; i++ {
		if got := s.baseScore(3, cand); got != first {
			t.Fatalf("hash fallback not stable: %v vs %v", got, first)
		}
	}
}

func TestScoreNormalModeNoFeedbackIsBaseScore(t *testing.T) {
	// With zero feedback gamma is 0, so the final score is exactly the fused
	// base score times the price factor, rounded to three decimals.
	cfg := testRecommendConfig()
	bandit := NewBandit(cfg, &fakeArmStore{})
	s := &scorer{cfg: cfg, bandit: bandit}

	price := 2500.0
	product := &models.Product{ID: 101, Role: models.RoleAccessory, Price: &price}
	cand := FusedCandidate{ProductID: 101, HasRRF: true, RRFScore: 0.9}

	got := s.score(1, 1000, cand, product)

	want := math.Round(0.9*0.8*1000) / 1000
	if got.Score != want {
		t.Errorf("Score = %v, want %v", got.Score, want)
	}
	if got.BaseScore != 0.9 {
		t.Errorf("BaseScore = %v, want 0.9", got.BaseScore)
	}
	if got.PriceFactor != 0.8 {
		t.Errorf("PriceFactor = %v, want 0.8", got.PriceFactor)
	}
}

func TestScoreDemoModeBlend(t *testing.T) {
	cfg := testRecommendConfig()
	cfg.DemoMode = true
	bandit := NewBandit(cfg, &fakeArmStore{})
	s := &scorer{cfg: cfg, bandit: bandit}

	product := &models.Product{ID: 102, Role: models.RoleAccessory}
	cand := FusedCandidate{ProductID: 102, HasRRF: true, RRFScore: 0.6}

	got := s.score(1, 0, cand, product)

	// Recompute the blend from the reported components.
	want := clamp01(0.8*got.BaseScore + 0.2*got.ThompsonWeight)
	want = math.Round(want*1000) / 1000
	if got.Score != want {
		t.Errorf("Score = %v, want %v from components", got.Score, want)
	}
	if got.ThompsonWeight <= 0 || got.ThompsonWeight >= 1 {
		t.Errorf("ThompsonWeight = %v, want in (0,1)", got.ThompsonWeight)
	}
}

func TestScoreRoundedToThreeDecimals(t *testing.T) {
	cfg := testRecommendConfig()
	bandit := NewBandit(cfg, &fakeArmStore{})
	s := &scorer{cfg: cfg, bandit: bandit}

	product := &models.Product{ID: 103, Role: models.RoleAccessory}
	got := s.score(1, 0, FusedCandidate{ProductID: 103, HasRRF: true, RRFScore: 1.0 / 3.0}, product)

	if got.Score != math.Round(got.Score*1000)/1000 {
		t.Errorf("Score %v not rounded to three decimals", got.Score)
	}
}

func TestScorePaddedCandidatePrior(t *testing.T) {
	// A padded candidate seeds its fresh arm with the 0.3 low-confidence
	// prior; a hash fallback candidate seeds with the weaker 0.1.
	cfg := testRecommendConfig()
	bandit := NewBandit(cfg, &fakeArmStore{})
	s := &scorer{cfg: cfg, bandit: bandit}

	product := &models.Product{ID: 104, Role: models.RoleAccessory}
	s.score(1, 0, FusedCandidate{ProductID: 104, Padded: true}, product)

	info, ok := bandit.Stats(1, 104)
	if !ok {
		t.Fatal("padded candidate arm missing")
	}
	if math.Abs(info.Alpha-2.2) > 1e-9 || math.Abs(info.Beta-3.8) > 1e-9 {
		t.Errorf("padded arm = (%v, %v), want (2.2, 3.8)", info.Alpha, info.Beta)
	}

	product = &models.Product{ID: 105, Role: models.RoleAccessory}
	s.score(1, 0, FusedCandidate{ProductID: 105}, product)

	info, ok = bandit.Stats(1, 105)
	if !ok {
		t.Fatal("fallback candidate arm missing")
	}
	if math.Abs(info.Alpha-1.4) > 1e-9 || math.Abs(info.Beta-4.6) > 1e-9 {
		t.Errorf("fallback arm = (%v, %v), want (1.4, 4.6)", info.Alpha, info.Beta)
	}
}

func TestPairHashDeterministic(t *testing.T) {
	if pairHash(1, 101) != pairHash(1, 101) {
		t.Error("pairHash not deterministic")
	}
	if pairHash(1, 101) == pairHash(101, 1) {
		t.Error("pairHash should distinguish pair order")
	}
}
