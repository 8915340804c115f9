// Package index implements exact nearest-neighbor search over chunk
// embeddings: a flat L2 index plus the incremental indexer that keeps it
// synchronized with the chunk store.
package index

import (
	"fmt"
	"sort"

	"github.com/bookbodh/bookbodh/engine/domain"
)

// Hit is a single search result: a chunk id and its squared Euclidean
// distance from the query. Lower distance means more relevant.
type Hit struct {
	ChunkID  int
	Distance float32
}

// Flat is an exact (non-approximate) nearest-neighbor index. The ids and
// vecs slices are parallel: vecs[i] is the embedding of chunk ids[i], and
// every mutation appends to both together. Flat itself is not synchronized;
// the Indexer serializes access.
type Flat struct {
	dim  int
	ids  []int
	vecs [][]float32
}

// NewFlat creates an empty index with a fixed dimensionality, so that
// incremental adds stay consistent even when the first build sees no chunks.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the index dimensionality.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.ids) }

// IDs returns the chunk id at each index position.
func (f *Flat) IDs() []int { return f.ids }

// Add appends ids and their vectors in lockstep.
func (f *Flat) Add(ids []int, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("index: ids and vectors length mismatch: %d != %d", len(ids), len(vecs))
	}
	for _, v := range vecs {
		if len(v) != f.dim {
			return fmt.Errorf("index: vector width %d against index of width %d: %w",
				len(v), f.dim, domain.ErrDimensionMismatch)
		}
	}
	f.ids = append(f.ids, ids...)
	f.vecs = append(f.vecs, vecs...)
	return nil
}

// Search returns up to k hits ranked ascending by squared L2 distance.
// k is clamped to the number of indexed vectors.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(f.ids) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("index: query width %d against index of width %d: %w",
			len(query), f.dim, domain.ErrDimensionMismatch)
	}

	hits := make([]Hit, len(f.ids))
	for i, v := range f.vecs {
		hits[i] = Hit{ChunkID: f.ids[i], Distance: l2sq(query, v)}
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// at returns the position's chunk id and vector.
func (f *Flat) at(pos int) (int, []float32) {
	return f.ids[pos], f.vecs[pos]
}

// l2sq computes squared Euclidean distance.
func l2sq(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
