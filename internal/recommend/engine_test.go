// Companion - Companion Product Ranking and Online Learning
// Copyright 2026 Toolhaus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/toolhaus/companion

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/toolhaus/companion/internal/models"
)

// fakeArmStore is an in-memory ArmStore for tests.
type fakeArmStore struct {
	mu        sync.Mutex
	arms      []models.ArmStats
	upserts   []models.ArmStats
	loadErr   error
	upsertErr error
}

func (f *fakeArmStore) UpsertArm(_ context.Context, arm models.ArmStats) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	f.upserts = append(f.upserts, arm)
	f.mu.Unlock()
	return nil
}

func (f *fakeArmStore) LoadArms(_ context.Context) ([]models.ArmStats, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.arms, nil
}

// fakeFeedbackStore records inserted feedback rows.
type fakeFeedbackStore struct {
	mu        sync.Mutex
	inserted  []models.Feedback
	insertErr error
}

func (f *fakeFeedbackStore) InsertFeedback(_ context.Context, fb *models.Feedback) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	fb.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, *fb)
	f.mu.Unlock()
	return nil
}

// fakeSearcher returns canned vector hits or an error.
type fakeSearcher struct {
	hits []models.VectorHit
	err  error
}

func (f *fakeSearcher) SimilarAccessories(_ context.Context, _ int, _ int) ([]models.VectorHit, error) {
	return f.hits, f.err
}

// fakeLLM returns canned LLM hits or an error.
type fakeLLM struct {
	hits []models.LLMHit
	err  error
}

func (f *fakeLLM) LLMCandidates(_ context.Context, _ int) ([]models.LLMHit, error) {
	return f.hits, f.err
}

// fakeCatalog is a static product snapshot.
type fakeCatalog struct {
	products  map[int]*models.Product
	reloadErr error
	reloads   int
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	byID := make(map[int]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &fakeCatalog{products: byID}
}

func (f *fakeCatalog) Get(id int) *models.Product {
	return f.products[id]
}

func (f *fakeCatalog) Accessories() []*models.Product {
	var out []*models.Product
	// Deterministic order for tests.
	for id := 0; id < 10000; id++ {
		if p, ok := f.products[id]; ok && p.IsAccessory() {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeCatalog) Reload(_ context.Context) error {
	f.reloads++
	return f.reloadErr
}

func price(v float64) *float64 { return &v }

func testProducts() []*models.Product {
	return []*models.Product{
		{ID: 1, Name: "Drill", Role: models.RoleMain, Price: price(1000)},
		{ID: 101, Name: "Bit Set", Role: models.RoleAccessory, Price: price(150)},
		{ID: 102, Name: "Battery", Role: models.RoleAccessory, Price: price(400)},
		{ID: 103, Name: "Case", Role: models.RoleAccessory, Price: price(250)},
		{ID: 104, Name: "Gloves", Role: models.RoleAccessory, Price: price(50)},
		{ID: 105, Name: "Charger", Role: models.RoleAccessory, Price: price(300)},
	}
}

func newTestEngine(cat Catalog, searcher VectorSearcher, llm LLMSource, fb *fakeFeedbackStore, arms *fakeArmStore) *Engine {
	cfg := testRecommendConfig()
	cfg.ReturnSize = 4
	cfg.RecallSize = 10
	return NewEngine(cfg, cat, searcher, llm, fb, arms)
}

func TestRankUnknownProduct(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	e := newTestEngine(cat, &fakeSearcher{}, &fakeLLM{}, &fakeFeedbackStore{}, &fakeArmStore{})

	if _, err := e.Rank(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
	// Accessory ids are not rankable either.
	if _, err := e.Rank(context.Background(), 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("accessory id: err = %v, want ErrNotFound", err)
	}
}

func TestRankReturnsOnlyAccessories(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	searcher := &fakeSearcher{hits: []models.VectorHit{
		{ProductID: 102, Similarity: 0.9},
		{ProductID: 101, Similarity: 0.8},
		{ProductID: 1, Similarity: 0.99},   // the main product itself, filtered
		{ProductID: 888, Similarity: 0.95}, // unknown id, filtered
	}}
	e := newTestEngine(cat, searcher, &fakeLLM{}, &fakeFeedbackStore{}, &fakeArmStore{})

	items, err := e.Rank(context.Background(), 1)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("len = %d, want return size 4", len(items))
	}
	seen := make(map[int]bool)
	for _, it := range items {
		p := it.RecommendedProduct
		if p == nil {
			t.Fatal("nil recommended product")
		}
		if !p.IsAccessory() {
			t.Errorf("product %d is not an accessory", p.ID)
		}
		if p.ID == 1 {
			t.Error("main product leaked into results")
		}
		if seen[p.ID] {
			t.Errorf("duplicate product %d", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestRankScoresDescendingAndFabricatedIDs(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	searcher := &fakeSearcher{hits: []models.VectorHit{
		{ProductID: 102, Similarity: 0.9},
		{ProductID: 101, Similarity: 0.8},
		{ProductID: 103, Similarity: 0.7},
		{ProductID: 104, Similarity: 0.6},
	}}
	e := newTestEngine(cat, searcher, &fakeLLM{}, &fakeFeedbackStore{}, &fakeArmStore{})

	items, err := e.Rank(context.Background(), 1)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	for i, it := range items {
		if it.ID != i+1000 {
			t.Errorf("item %d id = %d, want %d", i, it.ID, i+1000)
		}
		if i > 0 && items[i-1].SimilarityScore < it.SimilarityScore {
			t.Errorf("scores not descending at %d: %v then %v", i, items[i-1].SimilarityScore, it.SimilarityScore)
		}
	}
}

func TestRankFallbackWhenAllChannelsDegraded(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	searcher := &fakeSearcher{err: errors.New("vector store down")}
	llm := &fakeLLM{err: errors.New("llm table missing")}
	e := newTestEngine(cat, searcher, llm, &fakeFeedbackStore{}, &fakeArmStore{})

	items, err := e.Rank(context.Background(), 1)
	if err != nil {
		t.Fatalf("Rank should degrade, not fail: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("len = %d, want return size 4", len(items))
	}
}

func TestRankDeterministicWithoutFeedback(t *testing.T) {
	// Normal mode with no feedback keeps the bandit out of the final score,
	// so repeated calls must agree.
	cat := newFakeCatalog(testProducts()...)
	searcher := &fakeSearcher{hits: []models.VectorHit{
		{ProductID: 103, Similarity: 0.9},
		{ProductID: 105, Similarity: 0.7},
	}}
	e := newTestEngine(cat, searcher, &fakeLLM{}, &fakeFeedbackStore{}, &fakeArmStore{})

	first, err := e.Rank(context.Background(), 1)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for run := 0; run < 3; run++ {
		again, err := e.Rank(context.Background(), 1)
		if err != nil {
			t.Fatalf("Rank: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: len %d vs %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i].RecommendedProduct.ID != first[i].RecommendedProduct.ID {
				t.Errorf("run %d position %d: %d vs %d", run, i,
					again[i].RecommendedProduct.ID, first[i].RecommendedProduct.ID)
			}
			if again[i].SimilarityScore != first[i].SimilarityScore {
				t.Errorf("run %d position %d: score %v vs %v", run, i,
					again[i].SimilarityScore, first[i].SimilarityScore)
			}
		}
	}
}

func TestRankPadsToReturnSize(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	// One real hit; three padded candidates fill the list.
	searcher := &fakeSearcher{hits: []models.VectorHit{{ProductID: 102, Similarity: 0.9}}}
	e := newTestEngine(cat, searcher, &fakeLLM{}, &fakeFeedbackStore{}, &fakeArmStore{})

	items, err := e.Rank(context.Background(), 1)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(items) != 4 {
		t.Errorf("len = %d, want 4", len(items))
	}
}

func TestFeedbackOrdering(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	fb := &fakeFeedbackStore{}
	arms := &fakeArmStore{}
	e := newTestEngine(cat, &fakeSearcher{}, &fakeLLM{}, fb, arms)

	out, err := e.Feedback(context.Background(), 1, 101, true)
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if out.ID == 0 {
		t.Error("feedback row id not assigned")
	}
	if len(fb.inserted) != 1 {
		t.Fatalf("inserted rows = %d, want 1", len(fb.inserted))
	}
	if len(arms.upserts) != 1 {
		t.Fatalf("arm upserts = %d, want 1", len(arms.upserts))
	}
	up := arms.upserts[0]
	if up.ProductID != 1 || up.RecommendedProductID != 101 {
		t.Errorf("upserted pair = (%d, %d), want (1, 101)", up.ProductID, up.RecommendedProductID)
	}
	// Normal mode: Beta(3,3) + 1 on alpha.
	if up.Alpha != 4 || up.Beta != 3 {
		t.Errorf("upserted arm = (%v, %v), want (4, 3)", up.Alpha, up.Beta)
	}
}

func TestFeedbackUnknownPair(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	e := newTestEngine(cat, &fakeSearcher{}, &fakeLLM{}, &fakeFeedbackStore{}, &fakeArmStore{})

	if _, err := e.Feedback(context.Background(), 999, 101, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown main: err = %v, want ErrNotFound", err)
	}
	if _, err := e.Feedback(context.Background(), 1, 999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown accessory: err = %v, want ErrNotFound", err)
	}
	// A main product cannot be the recommended side.
	if _, err := e.Feedback(context.Background(), 1, 1, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("main as accessory: err = %v, want ErrNotFound", err)
	}
}

func TestFeedbackPersistFailureLeavesBanditUntouched(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	fb := &fakeFeedbackStore{insertErr: errors.New("disk full")}
	e := newTestEngine(cat, &fakeSearcher{}, &fakeLLM{}, fb, &fakeArmStore{})

	if _, err := e.Feedback(context.Background(), 1, 101, true); err == nil {
		t.Fatal("expected error from failed persist")
	}
	if e.Bandit().Len() != 0 {
		t.Error("bandit updated despite failed feedback persist")
	}
}

func TestFeedbackArmWritebackFailureStillAcks(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	fb := &fakeFeedbackStore{}
	arms := &fakeArmStore{upsertErr: errors.New("writeback failed")}
	e := newTestEngine(cat, &fakeSearcher{}, &fakeLLM{}, fb, arms)

	out, err := e.Feedback(context.Background(), 1, 102, false)
	if err != nil {
		t.Fatalf("Feedback should tolerate arm writeback failure: %v", err)
	}
	if out == nil || len(fb.inserted) != 1 {
		t.Error("feedback row not persisted")
	}
	if e.Bandit().Len() != 1 {
		t.Error("bandit not updated")
	}
}

func TestRankDemoFeedbackImprovesPosition(t *testing.T) {
	// Demo mode with a wide catalog: positive feedback on a mid-list item
	// must pull its average position up across repeated rankings.
	products := []*models.Product{{ID: 1, Name: "Drill", Role: models.RoleMain}}
	var hits []models.VectorHit
	for i := 0; i < 30; i++ {
		id := 101 + i
		products = append(products, &models.Product{
			ID:   id,
			Name: fmt.Sprintf("Accessory %d", id),
			Role: models.RoleAccessory,
		})
		hits = append(hits, models.VectorHit{ProductID: id, Similarity: 0.95 - 0.02*float64(i)})
	}
	cat := newFakeCatalog(products...)

	cfg := testRecommendConfig()
	cfg.DemoMode = true
	cfg.ReturnSize = 20
	cfg.RecallSize = 40
	e := NewEngine(cfg, cat, &fakeSearcher{hits: hits}, &fakeLLM{}, &fakeFeedbackStore{}, &fakeArmStore{})

	// Starts around the middle of the returned list.
	target := 113

	avgPosition := func() float64 {
		const runs = 200
		total := 0.0
		for r := 0; r < runs; r++ {
			items, err := e.Rank(context.Background(), 1)
			if err != nil {
				t.Fatalf("Rank: %v", err)
			}
			pos := len(items)
			for i, it := range items {
				if it.RecommendedProduct.ID == target {
					pos = i
					break
				}
			}
			total += float64(pos)
		}
		return total / runs
	}

	before := avgPosition()
	for i := 0; i < 3; i++ {
		if _, err := e.Feedback(context.Background(), 1, target, true); err != nil {
			t.Fatalf("Feedback: %v", err)
		}
	}
	after := avgPosition()

	if after >= before {
		t.Errorf("average position did not improve: before=%.2f after=%.2f", before, after)
	}
}

func TestFeedbackConcurrentSamePairWritebackMatchesMemory(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	fb := &fakeFeedbackStore{}
	arms := &fakeArmStore{}
	e := newTestEngine(cat, &fakeSearcher{}, &fakeLLM{}, fb, arms)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(relevant bool) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := e.Feedback(context.Background(), 1, 101, relevant); err != nil {
					t.Errorf("Feedback: %v", err)
				}
			}
		}(w%2 == 0)
	}
	wg.Wait()

	if len(arms.upserts) != workers*perWorker {
		t.Fatalf("upserts = %d, want %d", len(arms.upserts), workers*perWorker)
	}

	// The last durable write must hold the final in-memory state.
	info, ok := e.ArmStats(1, 101)
	if !ok {
		t.Fatal("arm missing after feedback")
	}
	last := arms.upserts[len(arms.upserts)-1]
	if last.Alpha != info.Alpha || last.Beta != info.Beta {
		t.Errorf("last upsert = (%v, %v), memory = (%v, %v)",
			last.Alpha, last.Beta, info.Alpha, info.Beta)
	}
}

func TestEngineReload(t *testing.T) {
	cat := newFakeCatalog(testProducts()...)
	arms := &fakeArmStore{arms: []models.ArmStats{
		{ProductID: 1, RecommendedProductID: 101, Alpha: 7, Beta: 2},
	}}
	e := newTestEngine(cat, &fakeSearcher{}, &fakeLLM{}, &fakeFeedbackStore{}, arms)

	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cat.reloads != 1 {
		t.Errorf("catalog reloads = %d, want 1", cat.reloads)
	}
	info, ok := e.ArmStats(1, 101)
	if !ok || info.Alpha != 7 {
		t.Errorf("arm stats after reload = %+v ok=%v", info, ok)
	}

	cat.reloadErr = errors.New("load failed")
	if err := e.Reload(context.Background()); err == nil {
		t.Error("expected error from failed catalog reload")
	}
}
