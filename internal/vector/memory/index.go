// Package memory is an in-process vector index with brute-force cosine
// search, for development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

type entry struct {
	id   string
	vec  []float32
	norm float64
	text string
	meta vector.Metadata
	seq  uint64
}

type Index struct {
	dimension int

	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
}

func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		entries:   make(map[string]*entry),
	}
}

func (idx *Index) Upsert(ctx context.Context, id string, vec []float32, text string, meta vector.Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(vec) != idx.dimension {
		return "", fmt.Errorf("vector has %d dimensions, index has %d: %w", len(vec), idx.dimension, apperr.ErrDimensionMismatch)
	}
	if id == "" {
		id = uuid.NewString()
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.entries[id]; exists {
		return "", fmt.Errorf("vector id %q already exists: %w", id, apperr.ErrValidation)
	}

	idx.seq++
	idx.entries[id] = &entry{
		id:   id,
		vec:  stored,
		norm: magnitude(stored),
		text: text,
		meta: meta,
		seq:  idx.seq,
	}

	return id, nil
}

func (idx *Index) Query(ctx context.Context, vec []float32, k int) ([]vector.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vec) != idx.dimension {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(vec), idx.dimension, apperr.ErrDimensionMismatch)
	}
	if k <= 0 {
		return []vector.Match{}, nil
	}

	qnorm := magnitude(vec)

	type scored struct {
		e    *entry
		dist float64
	}

	idx.mu.RLock()
	candidates := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		candidates = append(candidates, scored{e: e, dist: cosineDistance(vec, qnorm, e.vec, e.norm)})
	}
	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].e.seq < candidates[j].e.seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	matches := make([]vector.Match, len(candidates))
	for i, c := range candidates {
		matches[i] = vector.Match{
			ID:       c.e.id,
			Text:     c.e.text,
			Distance: c.dist,
			Metadata: c.e.meta,
		}
	}
	return matches, nil
}

func (idx *Index) DeleteByDocument(ctx context.Context, documentID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id, e := range idx.entries {
		if e.meta.DocumentID == documentID {
			delete(idx.entries, id)
		}
	}
	return nil
}

func (idx *Index) Stats(ctx context.Context) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int64(len(idx.entries)), nil
}

func (idx *Index) Close() error {
	return nil
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 - cosine similarity. A zero vector is treated as
// orthogonal to everything.
func cosineDistance(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / (anorm * bnorm)
	return 1 - math.Max(-1, math.Min(1, sim))
}
