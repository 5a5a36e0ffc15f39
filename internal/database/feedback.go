// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/toolhaus/companion/internal/metrics"
	"github.com/toolhaus/companion/internal/models"
)

// InsertFeedback appends a feedback row and fills in the server-assigned id
// and timestamp. Feedback is append-only; this is the durable record the arm
// table can always be rebuilt from.
func (db *DB) InsertFeedback(ctx context.Context, fb *models.Feedback) error {
	defer metrics.TimeDBQuery("insert_feedback")()
	row := db.conn.QueryRowContext(ctx, `
		INSERT INTO feedback (product_id, recommended_product_id, is_relevant)
		VALUES (?, ?, ?)
		RETURNING id, created_at`,
		fb.ProductID, fb.RecommendedProductID, fb.IsRelevant)
	if err := row.Scan(&fb.ID, &fb.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// UpsertArm writes the post-update (alpha, beta) for a pair, keyed by
// (product_id, recommended_product_id).
func (db *DB) UpsertArm(ctx context.Context, arm models.ArmStats) error {
	defer metrics.TimeDBQuery("upsert_arm")()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO arm_stats (product_id, recommended_product_id, alpha, beta, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (product_id, recommended_product_id)
		DO UPDATE SET alpha = excluded.alpha,
		              beta = excluded.beta,
		              updated_at = excluded.updated_at`,
		arm.ProductID, arm.RecommendedProductID, arm.Alpha, arm.Beta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert arm (%d, %d): %w",
			arm.ProductID, arm.RecommendedProductID, err)
	}
	return nil
}

// LoadArms scans the full arm table. Used at startup and on reload to
// repopulate the in-memory bandit state.
func (db *DB) LoadArms(ctx context.Context) ([]models.ArmStats, error) {
	defer metrics.TimeDBQuery("load_arms")()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT product_id, recommended_product_id, alpha, beta, updated_at
		FROM arm_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to query arm stats: %w", err)
	}
	defer closeQuietly(rows)

	var arms []models.ArmStats
	for rows.Next() {
		var a models.ArmStats
		if err := rows.Scan(&a.ProductID, &a.RecommendedProductID, &a.Alpha, &a.Beta, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan arm: %w", err)
		}
		arms = append(arms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("arm iteration failed: %w", err)
	}
	return arms, nil
}
