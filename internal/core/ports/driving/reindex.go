package driving

import (
	"context"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

// ReindexService brings the vector index in sync with corpus content.
//
// Runs on the same corpus are mutually exclusive; runs on different corpora
// proceed in parallel. Query traffic is never blocked by a running reindex.
type ReindexService interface {
	// Ingest chunks, embeds and indexes a single document, returning the
	// chunk IDs produced. Idempotent per content hash.
	Ingest(ctx context.Context, doc *domain.Document) ([]string, error)

	// Reindex re-runs ingestion for a whole corpus, replacing stale
	// vectors without duplication or orphaning. Chunks absent from the
	// new document set are removed.
	Reindex(ctx context.Context, corpusID string, docs []domain.Document) (*domain.ReindexReport, error)
}

// SourceService exposes stored chunk text and labels for provenance display.
type SourceService interface {
	// GetChunk returns the literal stored chunk by its deterministic ID.
	GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error)
}
