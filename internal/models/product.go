// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

// Package models defines the domain types shared across the catalog, the
// ranking pipeline, and the persistence layer.
package models

import "time"

// Product roles. Ranking only runs for main products; only accessories are
// eligible candidates.
const (
	RoleMain      = "main"
	RoleAccessory = "accessory"
)

// Product is one catalog entry. Embedding is excluded from JSON responses;
// it exists only for vector retrieval and MMR diversification.
type Product struct {
	ID           int               `json:"id"`
	Name         string            `json:"name"`
	Role         string            `json:"product_role"`
	Price        *float64          `json:"price,omitempty"`
	CategoryName string            `json:"category_name,omitempty"`
	Type         string            `json:"type,omitempty"`
	Vendor       string            `json:"vendor,omitempty"`
	URL          string            `json:"url,omitempty"`
	PictureURL   string            `json:"picture_url,omitempty"`
	Description  string            `json:"description,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Embedding    []float32         `json:"-"`
}

// PriceValue returns the price or 0 when unset.
func (p *Product) PriceValue() float64 {
	if p.Price == nil {
		return 0
	}
	return *p.Price
}

// HasEmbedding reports whether the product carries an embedding vector.
func (p *Product) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// IsAccessory reports whether the product is an accessory.
func (p *Product) IsAccessory() bool {
	return p.Role == RoleAccessory
}

// Feedback is one durable feedback event. ID and CreatedAt are assigned by
// the database on insert.
type Feedback struct {
	ID                   int64     `json:"id"`
	ProductID            int       `json:"product_id"`
	RecommendedProductID int       `json:"recommended_product_id"`
	IsRelevant           bool      `json:"is_relevant"`
	CreatedAt            time.Time `json:"created_at"`
}

// ArmStats is the durable form of one bandit arm.
type ArmStats struct {
	ProductID            int       `json:"product_id"`
	RecommendedProductID int       `json:"recommended_product_id"`
	Alpha                float64   `json:"alpha"`
	Beta                 float64   `json:"beta"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// LLMRecommendation is one row of the offline LLM ingestion output: a
// free-text recommendation and, when resolution succeeded, the catalog
// product it matched.
type LLMRecommendation struct {
	MainProductID    int     `json:"main_product_id"`
	RecText          string  `json:"rec_text"`
	RecRank          int     `json:"rec_rank"`
	MatchedProductID *int    `json:"matched_product_id,omitempty"`
	MatchScore       float64 `json:"match_score,omitempty"`
	ResolvedRank     int     `json:"resolved_rank,omitempty"`
}
