// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the four tables the service uses. Products and LLM
// recommendations are written by the offline ingestion pipeline (and the demo
// seeder); feedback is append-only; arm_stats is upserted on every feedback.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY,
		name VARCHAR NOT NULL,
		product_role VARCHAR NOT NULL CHECK (product_role IN ('main', 'accessory')),
		price DOUBLE,
		category_name VARCHAR,
		type VARCHAR,
		vendor VARCHAR,
		url VARCHAR,
		picture_url VARCHAR,
		description VARCHAR,
		attributes VARCHAR,
		embedding FLOAT[]
	)`,

	`CREATE SEQUENCE IF NOT EXISTS feedback_id_seq START 1`,

	`CREATE TABLE IF NOT EXISTS feedback (
		id BIGINT PRIMARY KEY DEFAULT nextval('feedback_id_seq'),
		product_id INTEGER NOT NULL,
		recommended_product_id INTEGER NOT NULL,
		is_relevant BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS arm_stats (
		product_id INTEGER NOT NULL,
		recommended_product_id INTEGER NOT NULL,
		alpha DOUBLE NOT NULL,
		beta DOUBLE NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (product_id, recommended_product_id)
	)`,

	`CREATE TABLE IF NOT EXISTS llm_recommendations (
		main_product_id INTEGER NOT NULL,
		rec_text VARCHAR,
		rec_rank INTEGER NOT NULL,
		matched_product_id INTEGER,
		match_score DOUBLE,
		resolved_rank INTEGER
	)`,

	`CREATE INDEX IF NOT EXISTS idx_feedback_pair
		ON feedback (product_id, recommended_product_id)`,

	`CREATE INDEX IF NOT EXISTS idx_llm_main
		ON llm_recommendations (main_product_id)`,
}

// createSchema creates all tables, sequences, and indexes if absent.
func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
