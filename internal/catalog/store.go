// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

// Package catalog holds the in-memory product snapshot. Reads are lock-free
// against an atomically swapped snapshot pointer; Reload replaces the whole
// snapshot so a reader observes either the old or the new catalog in full,
// never a mix.
package catalog

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/toolhaus/companion/internal/logging"
	"github.com/toolhaus/companion/internal/models"
)

// Loader supplies the full product list, typically backed by the database.
type Loader interface {
	LoadProducts(ctx context.Context) ([]*models.Product, error)
}

// snapshot is one immutable view of the catalog.
type snapshot struct {
	byID        map[int]*models.Product
	mains       []*models.Product
	accessories []*models.Product
}

// Store is the process-wide catalog snapshot holder.
type Store struct {
	loader       Loader
	embeddingDim int
	current      atomic.Pointer[snapshot]
	logger       zerolog.Logger
}

// New builds a Store and performs the initial load. A failed initial load is
// fatal to the caller; the store is unusable without a snapshot.
func New(ctx context.Context, loader Loader, embeddingDim int) (*Store, error) {
	s := &Store{
		loader:       loader,
		embeddingDim: embeddingDim,
		logger:       logging.WithComponent("catalog"),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("initial catalog load failed: %w", err)
	}
	return s, nil
}

// Reload replaces the snapshot from the loader. On failure the previous
// snapshot stays intact and remains served.
func (s *Store) Reload(ctx context.Context) error {
	products, err := s.loader.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("catalog load failed: %w", err)
	}

	snap := &snapshot{byID: make(map[int]*models.Product, len(products))}
	for _, p := range products {
		if p.Role != models.RoleMain && p.Role != models.RoleAccessory {
			return fmt.Errorf("product %d has unrecognized role %q", p.ID, p.Role)
		}
		if len(p.Embedding) > 0 && s.embeddingDim > 0 && len(p.Embedding) != s.embeddingDim {
			return fmt.Errorf("product %d embedding has dimension %d, want %d",
				p.ID, len(p.Embedding), s.embeddingDim)
		}
		if _, dup := snap.byID[p.ID]; dup {
			return fmt.Errorf("duplicate product id %d in catalog", p.ID)
		}
		snap.byID[p.ID] = p
		if p.Role == models.RoleMain {
			snap.mains = append(snap.mains, p)
		} else {
			snap.accessories = append(snap.accessories, p)
		}
	}

	s.current.Store(snap)
	s.logger.Info().
		Int("products", len(products)).
		Int("mains", len(snap.mains)).
		Int("accessories", len(snap.accessories)).
		Msg("Catalog snapshot loaded")
	return nil
}

// Get returns the product with the given id, or nil if absent.
func (s *Store) Get(id int) *models.Product {
	return s.current.Load().byID[id]
}

// All returns every product in the current snapshot.
func (s *Store) All() []*models.Product {
	snap := s.current.Load()
	out := make([]*models.Product, 0, len(snap.byID))
	out = append(out, snap.mains...)
	out = append(out, snap.accessories...)
	return out
}

// Mains returns products with role main. The returned slice is shared with
// the snapshot and must not be mutated.
func (s *Store) Mains() []*models.Product {
	return s.current.Load().mains
}

// Accessories returns products with role accessory. The returned slice is
// shared with the snapshot and must not be mutated.
func (s *Store) Accessories() []*models.Product {
	return s.current.Load().accessories
}

// Len returns the number of products in the current snapshot.
func (s *Store) Len() int {
	return len(s.current.Load().byID)
}
