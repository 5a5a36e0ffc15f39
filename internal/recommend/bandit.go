// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/toolhaus/companion/internal/config"
	"github.com/toolhaus/companion/internal/logging"
	"github.com/toolhaus/companion/internal/models"
)

// armKey identifies one (main product, recommended product) pair.
type armKey struct {
	mainID int
	recID  int
}

// arm holds the Beta distribution parameters for one pair.
type arm struct {
	alpha float64
	beta  float64
}

// Bandit is the process-wide Thompson Sampling state: a mapping from product
// pairs to Beta(alpha, beta) parameters, synchronized with the durable arm
// table. Memory is authoritative during the process lifetime; every update is
// written through to the store by the feedback pipeline.
type Bandit struct {
	cfg   *config.RecommendConfig
	store ArmStore

	mu   sync.RWMutex
	arms map[armKey]arm

	rng   *rand.Rand
	rngMu sync.Mutex

	logger zerolog.Logger
}

// NewBandit creates the bandit state. Seed 0 seeds the sampler from the
// clock; any other value gives reproducible draws for tests.
func NewBandit(cfg *config.RecommendConfig, store ArmStore) *Bandit {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Bandit{
		cfg:    cfg,
		store:  store,
		arms:   make(map[armKey]arm),
		rng:    rand.New(rand.NewSource(seed)),
		logger: logging.WithComponent("bandit"),
	}
}

// initialArm builds the informed prior for a new arm: alpha = 1 + s*I,
// beta = 1 + (1-s)*I with similarity prior s and init strength I. Without a
// prior, s falls back to 0.5; with I = 0 the arm degenerates to Beta(1,1).
func (b *Bandit) initialArm(prior float64, hasPrior bool) arm {
	s := 0.5
	if hasPrior {
		s = clamp01(prior)
	}
	return arm{
		alpha: 1 + s*b.cfg.InitStrength,
		beta:  1 + (1-s)*b.cfg.InitStrength,
	}
}

// ensure returns the arm for key, creating it with the given prior when it is
// first needed.
func (b *Bandit) ensure(key armKey, prior float64, hasPrior bool) arm {
	b.mu.RLock()
	a, ok := b.arms[key]
	b.mu.RUnlock()
	if ok {
		return a
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok = b.arms[key]; ok {
		return a
	}
	a = b.initialArm(prior, hasPrior)
	b.arms[key] = a
	return a
}

// Sample draws one value from the arm's Beta distribution, initializing the
// arm from the similarity prior if it does not exist yet. The draw happens on
// a copied (alpha, beta) pair so a concurrent update never tears the read.
func (b *Bandit) Sample(mainID, recID int, prior float64, hasPrior bool) float64 {
	a := b.ensure(armKey{mainID, recID}, prior, hasPrior)

	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	dist := distuv.Beta{Alpha: a.alpha, Beta: a.beta, Src: b.rng}
	return dist.Rand()
}

// Update applies one feedback event to the arm: alpha += U on relevant,
// beta += U otherwise, then rescales both so alpha+beta never exceeds the
// configured cap while preserving the ratio. The post-update values are
// returned for write-through persistence. An absent arm is initialized with
// the uniform-prior fallback first.
func (b *Bandit) Update(mainID, recID int, isRelevant bool) models.ArmStats {
	key := armKey{mainID, recID}
	u := b.cfg.UpdateStrength()

	b.mu.Lock()
	a, ok := b.arms[key]
	if !ok {
		a = b.initialArm(0, false)
	}
	if isRelevant {
		a.alpha += u
	} else {
		a.beta += u
	}
	if total := a.alpha + a.beta; total > b.cfg.MaxTotal {
		scale := b.cfg.MaxTotal / total
		a.alpha *= scale
		a.beta *= scale
	}
	b.arms[key] = a
	b.mu.Unlock()

	return models.ArmStats{
		ProductID:            mainID,
		RecommendedProductID: recID,
		Alpha:                a.alpha,
		Beta:                 a.beta,
	}
}

// Expected returns alpha/(alpha+beta) for the arm, or 0.5 if absent.
func (b *Bandit) Expected(mainID, recID int) float64 {
	b.mu.RLock()
	a, ok := b.arms[armKey{mainID, recID}]
	b.mu.RUnlock()
	if !ok {
		return 0.5
	}
	return a.alpha / (a.alpha + a.beta)
}

// FeedbackCount estimates the number of feedback events applied to the arm:
// n = round((alpha+beta - (2+I)) / U), clamped at zero. Arms loaded from
// storage under a different policy report a conservative count, which only
// slows the weighting schedule.
func (b *Bandit) FeedbackCount(mainID, recID int) int {
	b.mu.RLock()
	a, ok := b.arms[armKey{mainID, recID}]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return b.estimateCount(a)
}

func (b *Bandit) estimateCount(a arm) int {
	n := math.Round((a.alpha + a.beta - (2 + b.cfg.InitStrength)) / b.cfg.UpdateStrength())
	if n < 0 {
		return 0
	}
	return int(n)
}

// Stats reports the externally visible state of one arm. ok is false when
// the arm has never been sampled or updated.
func (b *Bandit) Stats(mainID, recID int) (ArmInfo, bool) {
	b.mu.RLock()
	a, ok := b.arms[armKey{mainID, recID}]
	b.mu.RUnlock()
	if !ok {
		return ArmInfo{}, false
	}

	total := a.alpha + a.beta
	return ArmInfo{
		ProductID:            mainID,
		RecommendedProductID: recID,
		Alpha:                a.alpha,
		Beta:                 a.beta,
		Expected:             a.alpha / total,
		Variance:             a.alpha * a.beta / (total * total * (total + 1)),
		FeedbackCount:        b.estimateCount(a),
		DemoMode:             b.cfg.DemoMode,
	}, true
}

// Len returns the number of arms held in memory.
func (b *Bandit) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.arms)
}

// ReloadFromStore replaces the in-memory arm mapping with the contents of the
// durable arm table. Store values override memory.
func (b *Bandit) ReloadFromStore(ctx context.Context) error {
	stored, err := b.store.LoadArms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load arms from store: %w", err)
	}

	arms := make(map[armKey]arm, len(stored))
	for _, s := range stored {
		if s.Alpha <= 0 || s.Beta <= 0 {
			b.logger.Warn().
				Int("product_id", s.ProductID).
				Int("recommended_product_id", s.RecommendedProductID).
				Float64("alpha", s.Alpha).
				Float64("beta", s.Beta).
				Msg("Skipping stored arm with non-positive parameters")
			continue
		}
		arms[armKey{s.ProductID, s.RecommendedProductID}] = arm{alpha: s.Alpha, beta: s.Beta}
	}

	b.mu.Lock()
	b.arms = arms
	b.mu.Unlock()

	b.logger.Info().Int("arms", len(arms)).Msg("Bandit state loaded from store")
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
