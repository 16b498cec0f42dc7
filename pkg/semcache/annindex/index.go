// Package annindex implements the ANN Index (C2): one logical index per
// layer, offering add/remove/search over cached query embeddings. Below the
// configured brute_force_cutoff a linear scan is used (preferred for
// simplicity per spec §4.2); above it, search is delegated to Postgres/
// pgvector. Both implementations satisfy the same Index interface so the
// orchestrator can swap between them without caring which one is live.
package annindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/quietloop/semcache/pkg/semcache"
)

// Candidate is one ANN search result.
type Candidate struct {
	ID    uuid.UUID
	Score float64
}

// Index is the per-layer ANN contract (spec §4.2).
type Index interface {
	// Add is idempotent: replacing an id with the same embedding is a no-op.
	Add(id uuid.UUID, e semcache.Embedding) error
	// Remove is best-effort; tombstoning is acceptable.
	Remove(id uuid.UUID) error
	// Search returns up to k candidates sorted by descending cosine score.
	Search(ctx context.Context, e semcache.Embedding, k int) ([]Candidate, error)
	// Len reports the live entry count backing the index.
	Len() int
	// Rebuild discards all entries and reloads from the given snapshot,
	// used on startup and whenever tombstones exceed the rebuild ratio.
	Rebuild(entries map[uuid.UUID]semcache.Embedding)
}

// LinearIndex is a brute-force cosine scan over an in-memory snapshot.
// Preferred below brute_force_cutoff (spec §4.2).
type LinearIndex struct {
	mu      sync.RWMutex
	vectors map[uuid.UUID]semcache.Embedding
	// tombstones counts Remove calls not yet reconciled by a Rebuild, used
	// by the capacity manager to decide when a rebuild is due (spec §4.5:
	// "Index tombstones accumulated by deletions trigger a full rebuild
	// when tombstones exceed 20% of live size").
	tombstones int
}

// NewLinearIndex creates an empty linear-scan index.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{vectors: make(map[uuid.UUID]semcache.Embedding)}
}

func (l *LinearIndex) Add(id uuid.UUID, e semcache.Embedding) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.vectors[id]; ok && vecEqual(existing, e) {
		return nil
	}
	l.vectors[id] = e
	return nil
}

func (l *LinearIndex) Remove(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.vectors[id]; ok {
		delete(l.vectors, id)
		l.tombstones++
	}
	return nil
}

func (l *LinearIndex) Search(_ context.Context, e semcache.Embedding, k int) ([]Candidate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	candidates := make([]Candidate, 0, len(l.vectors))
	for id, vec := range l.vectors {
		candidates = append(candidates, Candidate{ID: id, Score: semcache.Cosine(e, vec)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (l *LinearIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vectors)
}

// TombstoneRatio returns tombstones / (live + tombstones); used by the
// capacity manager to trigger rebuilds.
func (l *LinearIndex) TombstoneRatio() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := len(l.vectors) + l.tombstones
	if total == 0 {
		return 0
	}
	return float64(l.tombstones) / float64(total)
}

func (l *LinearIndex) Rebuild(entries map[uuid.UUID]semcache.Embedding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vectors = make(map[uuid.UUID]semcache.Embedding, len(entries))
	for id, e := range entries {
		l.vectors[id] = e
	}
	l.tombstones = 0
}

func vecEqual(a, b semcache.Embedding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SelfTestResult reports the outcome of the startup recall self-test.
type SelfTestResult struct {
	RecallAtK float64
	Sampled   int
	K         int
	Passed    bool
}

// SelfTest measures recall@k of idx against brute-force cosine over the
// same live set (spec §4.2: "recall@k ≥ 0.95 against brute-force cosine on
// the same live set, measured during startup self-test"). queries is a
// sample of embeddings drawn from the live set itself (or representative
// query traffic); truth is computed via a LinearIndex built from the same
// snapshot so both sides agree on the candidate pool.
func SelfTest(ctx context.Context, idx Index, entries map[uuid.UUID]semcache.Embedding, queries []semcache.Embedding, k int) (SelfTestResult, error) {
	truth := NewLinearIndex()
	truth.Rebuild(entries)

	if len(queries) == 0 {
		return SelfTestResult{RecallAtK: 1, K: k, Passed: true}, nil
	}

	var totalRecall float64
	for _, q := range queries {
		truthCandidates, err := truth.Search(ctx, q, k)
		if err != nil {
			return SelfTestResult{}, fmt.Errorf("self-test truth search: %w", err)
		}
		gotCandidates, err := idx.Search(ctx, q, k)
		if err != nil {
			return SelfTestResult{}, fmt.Errorf("self-test index search: %w", err)
		}
		truthSet := make(map[uuid.UUID]struct{}, len(truthCandidates))
		for _, c := range truthCandidates {
			truthSet[c.ID] = struct{}{}
		}
		if len(truthSet) == 0 {
			totalRecall += 1
			continue
		}
		var hit int
		for _, c := range gotCandidates {
			if _, ok := truthSet[c.ID]; ok {
				hit++
			}
		}
		totalRecall += float64(hit) / float64(len(truthSet))
	}

	recall := totalRecall / float64(len(queries))
	return SelfTestResult{
		RecallAtK: recall,
		Sampled:   len(queries),
		K:         k,
		Passed:    recall >= 0.95,
	}, nil
}
