package driven

import "context"

// VectorIndex stores (vector, payload) pairs keyed by chunk ID and answers
// nearest-neighbour queries.
//
// Upsert is keyed by the deterministic chunk ID, so re-ingesting unchanged
// content is a true no-op at the index level (same key, same vector) and
// changed content overwrites in place. This is the mechanism that prevents
// orphaned vectors across repeated reindex runs.
type VectorIndex interface {
	// Upsert inserts or overwrites vectors for the given points.
	Upsert(ctx context.Context, points []VectorPoint) error

	// Query finds the topK nearest neighbours to the query vector,
	// restricted to the given corpus. Results are ordered by descending
	// similarity as reported by the index; the caller applies the
	// deterministic tie-break.
	Query(ctx context.Context, vector []float32, topK int, corpusID string) ([]VectorHit, error)

	// Delete removes vectors for the given chunk IDs.
	Delete(ctx context.Context, chunkIDs []string) error

	// Close releases resources.
	Close() error
}

// VectorPoint is one (vector, payload) pair for upsert.
type VectorPoint struct {
	// ChunkID is the deterministic chunk identifier the point is keyed by.
	ChunkID string

	// Vector is the embedding.
	Vector []float32

	// Payload carries the chunk projection returned on query hits.
	Payload VectorPayload
}

// VectorPayload is the metadata stored alongside a vector.
type VectorPayload struct {
	DocumentID string `json:"document_id"`
	CorpusID   string `json:"corpus_id"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	Chapter    string `json:"chapter"`
	Section    string `json:"section"`
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the cosine similarity score.
	Score float64

	// Payload is the stored chunk projection.
	Payload VectorPayload
}
