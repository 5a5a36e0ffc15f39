// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolhaus/companion/internal/logging"
)

// demoProduct is one row of the built-in demo catalog.
type demoProduct struct {
	id       int
	name     string
	role     string
	price    float64
	category string
	ptype    string
	vendor   string
	group    int // embedding cluster; products in the same group land close
}

// demoCatalog is a small deterministic home-improvement catalog: three main
// power tools and two dozen accessories grouped by compatibility.
var demoCatalog = []demoProduct{
	{1, "Cordless Drill 18V", "main", 129.00, "Power Tools", "drill", "Voltcraft", 1},
	{2, "Circular Saw 1400W", "main", 179.00, "Power Tools", "saw", "Sagemann", 2},
	{3, "Angle Grinder 900W", "main", 89.00, "Power Tools", "grinder", "Voltcraft", 3},

	{101, "Drill Bit Set 25pc", "accessory", 24.90, "Accessories", "drill_bit", "Voltcraft", 1},
	{102, "Masonry Bit Set 8pc", "accessory", 19.90, "Accessories", "drill_bit", "Sagemann", 1},
	{103, "Battery Pack 18V 4Ah", "accessory", 59.00, "Accessories", "battery", "Voltcraft", 1},
	{104, "Fast Charger 18V", "accessory", 39.00, "Accessories", "charger", "Voltcraft", 1},
	{105, "Screwdriver Bit Set 32pc", "accessory", 14.90, "Accessories", "bit_set", "Hexon", 1},
	{106, "Magnetic Bit Holder", "accessory", 6.90, "Accessories", "bit_set", "Hexon", 1},
	{107, "Depth Stop Attachment", "accessory", 12.50, "Accessories", "attachment", "Voltcraft", 1},
	{108, "Drill Dust Collector", "accessory", 9.90, "Accessories", "attachment", "Sagemann", 1},

	{201, "Saw Blade 190mm 24T", "accessory", 21.90, "Accessories", "saw_blade", "Sagemann", 2},
	{202, "Saw Blade 190mm 48T Fine", "accessory", 29.90, "Accessories", "saw_blade", "Sagemann", 2},
	{203, "Guide Rail 1400mm", "accessory", 64.00, "Accessories", "guide", "Sagemann", 2},
	{204, "Rail Clamps Pair", "accessory", 18.00, "Accessories", "guide", "Sagemann", 2},
	{205, "Parallel Fence", "accessory", 15.50, "Accessories", "guide", "Hexon", 2},
	{206, "Anti-Splinter Strip", "accessory", 7.90, "Accessories", "attachment", "Sagemann", 2},

	{301, "Cutting Disc 125mm 10pc", "accessory", 16.90, "Accessories", "disc", "Voltcraft", 3},
	{302, "Grinding Disc 125mm 5pc", "accessory", 13.90, "Accessories", "disc", "Voltcraft", 3},
	{303, "Flap Disc 125mm P80", "accessory", 4.90, "Accessories", "disc", "Hexon", 3},
	{304, "Diamond Blade 125mm", "accessory", 22.90, "Accessories", "disc", "Sagemann", 3},
	{305, "Grinder Side Handle", "accessory", 8.50, "Accessories", "attachment", "Voltcraft", 3},

	{401, "Work Gloves Size L", "accessory", 9.90, "Safety", "gloves", "Guardex", 4},
	{402, "Safety Glasses Clear", "accessory", 7.50, "Safety", "glasses", "Guardex", 4},
	{403, "Ear Defenders 27dB", "accessory", 17.90, "Safety", "hearing", "Guardex", 4},
	{404, "Dust Mask FFP2 10pc", "accessory", 12.90, "Safety", "mask", "Guardex", 4},
	{405, "Tool Case 19 inch", "accessory", 34.90, "Storage", "case", "Hexon", 4},
	{406, "Extension Cord 10m", "accessory", 19.90, "Storage", "cord", "Voltcraft", 4},
}

// demoLLMRecs maps each demo main product to its offline LLM candidate list.
var demoLLMRecs = map[int][]int{
	1: {103, 101, 104, 105, 401},
	2: {201, 203, 202, 402, 403},
	3: {301, 304, 305, 402, 404},
}

// SeedDemo populates the demo catalog if the products table is empty.
// The data is fully deterministic so demo rankings reproduce across runs.
func (db *DB) SeedDemo(ctx context.Context, embeddingDim int) error {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		logging.Debug().Int("products", count).Msg("Catalog already populated, skipping demo seed")
		return nil
	}

	logging.Info().Int("embedding_dim", embeddingDim).Msg("Seeding demo catalog")

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range demoCatalog {
		emb := demoEmbeddingLiteral(p.id, p.group, embeddingDim)
		stmt := fmt.Sprintf(`
			INSERT INTO products (id, name, product_role, price, category_name, type, vendor, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, %s)`, emb)
		if _, err := tx.ExecContext(ctx, stmt,
			p.id, p.name, p.role, p.price, p.category, p.ptype, p.vendor); err != nil {
			return fmt.Errorf("failed to seed product %d: %w", p.id, err)
		}
	}

	for mainID, recs := range demoLLMRecs {
		for i, recID := range recs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO llm_recommendations
					(main_product_id, rec_text, rec_rank, matched_product_id, match_score, resolved_rank)
				VALUES (?, ?, ?, ?, ?, ?)`,
				mainID, "", i+1, recID, 0.9-0.1*float64(i), i+1); err != nil {
				return fmt.Errorf("failed to seed llm candidate (%d, %d): %w", mainID, recID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit demo seed: %w", err)
	}

	logging.Info().
		Int("products", len(demoCatalog)).
		Int("llm_mains", len(demoLLMRecs)).
		Msg("Demo catalog seeded")
	return nil
}

// demoEmbeddingLiteral builds a FLOAT[] SQL literal for a demo product.
// Vectors are a per-group base direction plus small id-derived jitter, so
// same-group products come out near each other under cosine similarity.
func demoEmbeddingLiteral(id, group, dim int) string {
	var b strings.Builder
	b.WriteByte('[')
	state := uint64(id)*2654435761 + 1
	for i := 0; i < dim; i++ {
		// xorshift64 for deterministic jitter in [-0.1, 0.1]
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		jitter := (float64(state%2000)/1000.0 - 1.0) * 0.1

		base := 0.0
		if i%8 == group%8 {
			base = 1.0
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.6f", base+jitter)
	}
	b.WriteString("]::FLOAT[]")
	return b.String()
}
