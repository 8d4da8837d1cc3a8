// Package memory provides an in-memory brute-force vector index for tests
// and single-process development mode. Similarity is cosine, matching the
// Qdrant collection configuration used in production.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an in-memory implementation of driven.VectorIndex.
type Index struct {
	mu     sync.RWMutex
	points map[string]driven.VectorPoint
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{points: make(map[string]driven.VectorPoint)}
}

// Upsert inserts or overwrites vectors keyed by chunk ID.
func (x *Index) Upsert(_ context.Context, points []driven.VectorPoint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, point := range points {
		x.points[point.ChunkID] = point
	}
	return nil
}

// Query scans all points in the corpus and returns the topK by cosine
// similarity, descending.
func (x *Index) Query(_ context.Context, vector []float32, topK int, corpusID string) ([]driven.VectorHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []driven.VectorHit
	for _, point := range x.points {
		if point.Payload.CorpusID != corpusID {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID: point.ChunkID,
			Score:   cosine(vector, point.Vector),
			Payload: point.Payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes vectors by chunk ID.
func (x *Index) Delete(_ context.Context, chunkIDs []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range chunkIDs {
		delete(x.points, id)
	}
	return nil
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

// Len returns the number of stored points. Useful for tests.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.points)
}

// cosine computes the cosine similarity of two vectors. Mismatched or
// zero-norm vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
