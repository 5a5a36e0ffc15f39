// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package database

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/toolhaus/companion/internal/metrics"
	"github.com/toolhaus/companion/internal/models"
)

// LoadProducts reads the full product catalog, embeddings included. The
// catalog snapshot is built from this; it is called at startup and on reload.
func (db *DB) LoadProducts(ctx context.Context) ([]*models.Product, error) {
	defer metrics.TimeDBQuery("load_products")()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, product_role, price, category_name, type, vendor,
		       url, picture_url, description, attributes, embedding
		FROM products
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer closeQuietly(rows)

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product row iteration failed: %w", err)
	}
	return products, nil
}

func scanProduct(rows *sql.Rows) (*models.Product, error) {
	var (
		p          models.Product
		price      sql.NullFloat64
		category   sql.NullString
		ptype      sql.NullString
		vendor     sql.NullString
		url        sql.NullString
		pictureURL sql.NullString
		desc       sql.NullString
		attrs      sql.NullString
		embedding  any
	)
	if err := rows.Scan(&p.ID, &p.Name, &p.Role, &price, &category, &ptype,
		&vendor, &url, &pictureURL, &desc, &attrs, &embedding); err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	if price.Valid {
		v := price.Float64
		p.Price = &v
	}
	p.CategoryName = category.String
	p.Type = ptype.String
	p.Vendor = vendor.String
	p.URL = url.String
	p.PictureURL = pictureURL.String
	p.Description = desc.String
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &p.Attributes); err != nil {
			return nil, fmt.Errorf("product %d has malformed attributes: %w", p.ID, err)
		}
	}
	p.Embedding = toFloat32Slice(embedding)
	return &p, nil
}

// toFloat32Slice converts a scanned DuckDB LIST value into a []float32.
// The driver surfaces FLOAT[] columns as []any of float32 (or float64 after
// casts); nil and empty lists both yield nil.
func toFloat32Slice(v any) []float32 {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]float32, 0, len(list))
	for _, elem := range list {
		switch e := elem.(type) {
		case float32:
			out = append(out, e)
		case float64:
			out = append(out, float32(e))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SimilarAccessories returns up to limit accessories ordered by cosine
// similarity to the main product's embedding, normalized into [0,1] via
// 1 - distance/2. The main product itself and accessories without embeddings
// are excluded. A main product without an embedding yields an empty result.
func (db *DB) SimilarAccessories(ctx context.Context, mainID, limit int) ([]models.VectorHit, error) {
	defer metrics.TimeDBQuery("similar_accessories")()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT p2.id,
		       1.0 - list_cosine_distance(p1.embedding, p2.embedding) / 2.0 AS similarity
		FROM products p1
		JOIN products p2
		  ON p2.id <> p1.id
		 AND p2.product_role = 'accessory'
		 AND p2.embedding IS NOT NULL
		WHERE p1.id = ? AND p1.embedding IS NOT NULL
		ORDER BY similarity DESC
		LIMIT ?`, mainID, limit)
	if err != nil {
		return nil, fmt.Errorf("vector similarity query failed: %w", err)
	}
	defer closeQuietly(rows)

	var hits []models.VectorHit
	for rows.Next() {
		var h models.VectorHit
		if err := rows.Scan(&h.ProductID, &h.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		// Guard against float drift outside [0,1].
		if h.Similarity < 0 {
			h.Similarity = 0
		} else if h.Similarity > 1 {
			h.Similarity = 1
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector hit iteration failed: %w", err)
	}
	return hits, nil
}

// LLMCandidates returns the offline LLM candidate list for a main product,
// ordered by (rec_rank, resolved_rank). Candidates whose matched product no
// longer exists in the catalog are dropped by the join. An empty result is a
// normal case.
func (db *DB) LLMCandidates(ctx context.Context, mainID int) ([]models.LLMHit, error) {
	defer metrics.TimeDBQuery("llm_candidates")()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.matched_product_id,
		       r.rec_rank,
		       COALESCE(r.match_score, 0),
		       COALESCE(r.resolved_rank, r.rec_rank)
		FROM llm_recommendations r
		JOIN products p
		  ON p.id = r.matched_product_id
		 AND p.product_role = 'accessory'
		WHERE r.main_product_id = ? AND r.matched_product_id IS NOT NULL
		ORDER BY r.rec_rank, COALESCE(r.resolved_rank, r.rec_rank)`, mainID)
	if err != nil {
		return nil, fmt.Errorf("llm candidate query failed: %w", err)
	}
	defer closeQuietly(rows)

	var hits []models.LLMHit
	for rows.Next() {
		var h models.LLMHit
		if err := rows.Scan(&h.ProductID, &h.RecRank, &h.MatchScore, &h.ResolvedRank); err != nil {
			return nil, fmt.Errorf("failed to scan llm hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("llm hit iteration failed: %w", err)
	}
	return hits, nil
}
