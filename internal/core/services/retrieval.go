package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/logger"
)

// DefaultTopK is the default number of candidates requested from the
// vector index.
const DefaultTopK = 5

// ChunkRetriever is the retrieval contract the grounding policy consumes.
// An empty result is a value, not an error: it is the trigger for the
// deterministic refusal.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, queryText, corpusID string, topK int) ([]domain.RetrievedChunk, error)
}

// Ensure Retriever implements the interface.
var _ ChunkRetriever = (*Retriever)(nil)

// Retriever orchestrates query embedding and top-k lookup against the
// vector index, applying the relevance floor and deterministic ordering.
type Retriever struct {
	embedding driven.EmbeddingService
	index     driven.VectorIndex
	floor     float64
}

// NewRetriever creates a retrieval engine.
//
// The relevance floor is explicit configuration: candidates scoring below
// it are dropped. A floor of zero still excludes anti-correlated hits
// (negative cosine similarity). Getting the floor wrong silently changes
// which questions get refused, so it is never inferred.
func NewRetriever(embedding driven.EmbeddingService, index driven.VectorIndex, floor float64) *Retriever {
	return &Retriever{
		embedding: embedding,
		index:     index,
		floor:     floor,
	}
}

// Retrieve embeds the query text and returns the floor-passing candidates
// ordered by descending similarity, tie-broken by ascending chunk ID.
//
// The tie-break makes the ordering fully deterministic: identical queries
// against an unchanged corpus always return identical sequences.
func (r *Retriever) Retrieve(ctx context.Context, queryText, corpusID string, topK int) ([]domain.RetrievedChunk, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q corpus: %s", queryText, corpusID)

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, fmt.Errorf("%w: empty query text", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedding.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.index.Query(ctx, vector, topK, corpusID)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	logger.Debug("Raw hits: %d", len(hits))

	chunks := make([]domain.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < r.floor {
			continue
		}
		chunks = append(chunks, domain.RetrievedChunk{
			ChunkID: hit.ChunkID,
			Text:    hit.Payload.Text,
			Score:   hit.Score,
			Chapter: hit.Payload.Chapter,
			Section: hit.Payload.Section,
		})
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].ChunkID < chunks[j].ChunkID
	})

	logger.Debug("Floor-passing hits: %d (floor %.3f)", len(chunks), r.floor)
	return chunks, nil
}
