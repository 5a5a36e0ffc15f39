// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/toolhaus/companion/internal/logging"
	"github.com/toolhaus/companion/internal/models"
	"github.com/toolhaus/companion/internal/recommend"
)

// RankingService is the engine surface the handlers call.
type RankingService interface {
	Rank(ctx context.Context, mainID int) ([]recommend.ResponseItem, error)
	Feedback(ctx context.Context, mainID, recID int, isRelevant bool) (*models.Feedback, error)
	ArmStats(mainID, recID int) (recommend.ArmInfo, bool)
	Reload(ctx context.Context) error
}

// ProductLister exposes the catalog's main-product listing.
type ProductLister interface {
	Mains() []*models.Product
}

// Pinger reports database liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	engine  RankingService
	catalog ProductLister
	db      Pinger
}

// NewHandler creates the handler set.
func NewHandler(engine RankingService, catalog ProductLister, db Pinger) *Handler {
	return &Handler{
		engine:  engine,
		catalog: catalog,
		db:      db,
	}
}

// Recommendations handles GET /recommendations/{product_id}. The response is
// a bare JSON array of ranked companion products.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	mainID, err := strconv.Atoi(chi.URLParam(r, "product_id"))
	if err != nil || mainID <= 0 {
		rw.BadRequest("product_id must be a positive integer")
		return
	}

	items, err := h.engine.Rank(r.Context(), mainID)
	if err != nil {
		if errors.Is(err, recommend.ErrNotFound) {
			rw.NotFound("Main product not found")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Int("product_id", mainID).Msg("Ranking failed")
		rw.InternalError("Ranking failed")
		return
	}

	if items == nil {
		items = []recommend.ResponseItem{}
	}
	rw.Raw(http.StatusOK, items)
}

// SubmitFeedback handles POST /feedback. The created feedback row is echoed
// back as bare JSON once it is durable.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validateFeedbackRequest(&req); verr != nil {
		rw.ValidationError(verr.Message, verr.Details)
		return
	}

	fb, err := h.engine.Feedback(r.Context(), req.ProductID, req.RecommendedProductID, *req.IsRelevant)
	if err != nil {
		if errors.Is(err, recommend.ErrNotFound) {
			rw.NotFound("Product pair not found")
			return
		}
		logging.Ctx(r.Context()).Error().
			Err(err).
			Int("product_id", req.ProductID).
			Int("recommended_product_id", req.RecommendedProductID).
			Msg("Feedback persist failed")
		rw.InternalError("Feedback could not be stored")
		return
	}

	rw.Raw(http.StatusOK, fb)
}

// MainProducts handles GET /main-products: a bare JSON array of all main
// products in the current catalog snapshot.
func (h *Handler) MainProducts(w http.ResponseWriter, r *http.Request) {
	mains := h.catalog.Mains()
	if mains == nil {
		mains = []*models.Product{}
	}
	NewResponseWriter(w, r).Raw(http.StatusOK, mains)
}

// ArmStats handles GET /arm-stats/{product_id}/{recommended_product_id}.
func (h *Handler) ArmStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	mainID, err := strconv.Atoi(chi.URLParam(r, "product_id"))
	if err != nil || mainID <= 0 {
		rw.BadRequest("product_id must be a positive integer")
		return
	}
	recID, err := strconv.Atoi(chi.URLParam(r, "recommended_product_id"))
	if err != nil || recID <= 0 {
		rw.BadRequest("recommended_product_id must be a positive integer")
		return
	}

	info, ok := h.engine.ArmStats(mainID, recID)
	if !ok {
		rw.NotFound("No feedback recorded for this pair")
		return
	}
	rw.Success(info)
}

// Reload handles POST /admin/reload: refresh the catalog snapshot and the
// bandit state from the database.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.engine.Reload(r.Context()); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Reload failed")
		rw.InternalError("Reload failed")
		return
	}
	rw.Success(map[string]string{"status": "reloaded"})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.db.Ping(r.Context()); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
		rw.ServiceUnavailable("Database unreachable")
		return
	}
	rw.Raw(http.StatusOK, map[string]string{"status": "ok"})
}
