// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

// Package recommend implements the companion-product ranking and online
// learning engine: multi-channel retrieval, reciprocal rank fusion, per-pair
// Thompson Sampling, price-aware scoring, and MMR diversity reranking.
package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/toolhaus/companion/internal/models"
)

// ErrNotFound is returned when the requested main product does not exist.
var ErrNotFound = errors.New("main product not found")

// VectorSearcher retrieves accessories by embedding similarity to a main
// product. Implemented by the database layer.
type VectorSearcher interface {
	SimilarAccessories(ctx context.Context, mainID, limit int) ([]models.VectorHit, error)
}

// LLMSource retrieves the offline LLM candidate list for a main product.
// Implemented by the database layer.
type LLMSource interface {
	LLMCandidates(ctx context.Context, mainID int) ([]models.LLMHit, error)
}

// ArmStore persists bandit arms. Implemented by the database layer.
type ArmStore interface {
	UpsertArm(ctx context.Context, arm models.ArmStats) error
	LoadArms(ctx context.Context) ([]models.ArmStats, error)
}

// FeedbackStore appends durable feedback rows. Implemented by the database
// layer.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, fb *models.Feedback) error
}

// Catalog is the product snapshot view the engine reads.
type Catalog interface {
	Get(id int) *models.Product
	Accessories() []*models.Product
	Reload(ctx context.Context) error
}

// ChannelHit is one candidate from a retrieval channel, in channel order.
// Similarity is only meaningful when HasSimilarity is set (vector channel).
type ChannelHit struct {
	ProductID     int
	Similarity    float64
	HasSimilarity bool
}

// FusedCandidate is one deduplicated candidate after rank fusion.
type FusedCandidate struct {
	ProductID int

	// RRFScore is the normalized fused score in [0,1]. Only meaningful when
	// HasRRF is set; padded candidates carry no fused score.
	RRFScore float64
	HasRRF   bool

	// VectorRank and LLMRank are 1-based per-channel ranks, 0 when the
	// candidate was absent from that channel.
	VectorRank int
	LLMRank    int

	// Similarity is the best available vector similarity for the candidate.
	Similarity    float64
	HasSimilarity bool

	// Padded marks low-confidence candidates added to reach the return size.
	Padded bool
}

// ScoredCandidate is a candidate with its final score and scoring components.
type ScoredCandidate struct {
	Product        *models.Product
	Score          float64
	BaseScore      float64
	ThompsonWeight float64
	PriceFactor    float64
}

// ResponseItem is one entry of a ranking response.
type ResponseItem struct {
	ID                 int             `json:"id"`
	SimilarityScore    float64         `json:"similarity_score"`
	CreatedAt          time.Time       `json:"created_at"`
	RecommendedProduct *models.Product `json:"recommended_product"`
}

// ArmInfo is the externally visible state of one bandit arm.
type ArmInfo struct {
	ProductID            int     `json:"product_id"`
	RecommendedProductID int     `json:"recommended_product_id"`
	Alpha                float64 `json:"alpha"`
	Beta                 float64 `json:"beta"`
	Expected             float64 `json:"expected_value"`
	Variance             float64 `json:"variance"`
	FeedbackCount        int     `json:"feedback_count"`
	DemoMode             bool    `json:"demo_mode"`
}
