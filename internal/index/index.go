// Package index provides the in-memory similarity index used for
// nearest-neighbor duplicate detection. The index is a derived, rebuildable
// projection of the task store (id -> embedding) and is never authoritative:
// on any disagreement the store wins and the index is rebuilt from it.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/taskmint/taskmint/internal/types"
)

// Index holds (id, vector) pairs and answers cosine-similarity queries with
// an exact linear scan. Queries are deterministic for a fixed index state:
// results order by descending score, ties by ascending id.
type Index struct {
	mu   sync.RWMutex
	dim  int
	vecs map[string][]float32
}

// New creates an empty index for vectors of the given dimension
func New(dimension int) *Index {
	return &Index{
		dim:  dimension,
		vecs: make(map[string][]float32),
	}
}

// Dimension returns the vector length this index accepts
func (ix *Index) Dimension() int {
	return ix.dim
}

// Len returns the number of indexed vectors
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vecs)
}

// Upsert adds or replaces the vector for id. The vector is copied, so the
// caller may reuse its slice.
func (ix *Index) Upsert(id string, vec []float32) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(vec) != ix.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), ix.dim)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vecs[id] = cp
	return nil
}

// Remove drops id from the index; removing an unknown id is a no-op
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.vecs, id)
}

// Query returns up to k matches ordered by descending cosine similarity,
// ties broken by ascending id. An empty index or k <= 0 yields nil.
func (ix *Index) Query(vec []float32, k int) []types.SimilarityMatch {
	if k <= 0 {
		return nil
	}

	ix.mu.RLock()
	matches := make([]types.SimilarityMatch, 0, len(ix.vecs))
	for id, stored := range ix.vecs {
		matches = append(matches, types.SimilarityMatch{ID: id, Score: Cosine(vec, stored)})
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Rebuild replaces the full index contents from store records, skipping
// records without an embedding (they cannot be matched until re-embedded).
// This is the cold-start and crash-recovery path.
func (ix *Index) Rebuild(records []*types.TaskRecord) error {
	vecs := make(map[string][]float32, len(records))
	for _, rec := range records {
		if rec.Embedding == nil {
			continue
		}
		if len(rec.Embedding) != ix.dim {
			return fmt.Errorf("record %s: vector dimension %d does not match index dimension %d",
				rec.ID, len(rec.Embedding), ix.dim)
		}
		cp := make([]float32, len(rec.Embedding))
		copy(cp, rec.Embedding)
		vecs[rec.ID] = cp
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vecs = vecs
	return nil
}

// Cosine computes dot(a,b) / (|a| * |b|) in float64, returning 0 when either
// vector has zero magnitude or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
