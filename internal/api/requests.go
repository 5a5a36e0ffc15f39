// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package api

import "github.com/toolhaus/companion/internal/validation"

// FeedbackRequest is the body of POST /feedback.
//
// is_relevant uses a pointer so a missing field fails validation instead of
// defaulting to false.
type FeedbackRequest struct {
	ProductID            int   `json:"product_id" validate:"required,gt=0"`
	RecommendedProductID int   `json:"recommended_product_id" validate:"required,gt=0"`
	IsRelevant           *bool `json:"is_relevant" validate:"required"`
}

// validateFeedbackRequest runs struct validation and translates failures into
// the API error shape. Returns nil when the request is valid.
func validateFeedbackRequest(req *FeedbackRequest) *validation.APIError {
	if verr := validation.ValidateStruct(req); verr != nil {
		return verr.ToAPIError()
	}
	return nil
}
