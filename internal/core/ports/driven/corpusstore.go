package driven

import (
	"context"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

// CorpusStore persists documents and chunk provenance records.
// Backed by SQLite for metadata storage.
//
// It is read-mostly: the query path only reads it (chunk lookup for
// provenance display), and only the reindex manager writes to it.
type CorpusStore interface {
	// SaveDocument stores or updates a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores chunk records, replacing any existing rows with
	// the same chunk IDs.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk retrieves a chunk by its deterministic ID.
	GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error)

	// ListChunkRefs returns lightweight references for every chunk in
	// the corpus. The reindex manager diffs these against the freshly
	// chunked documents to decide what to embed, skip or remove.
	ListChunkRefs(ctx context.Context, corpusID string) ([]domain.ChunkRef, error)

	// ListDocumentChunkRefs returns chunk references for one document.
	ListDocumentChunkRefs(ctx context.Context, documentID string) ([]domain.ChunkRef, error)

	// ListDocuments returns the documents recorded for a corpus.
	ListDocuments(ctx context.Context, corpusID string) ([]domain.Document, error)

	// DeleteChunks removes chunk records by ID.
	DeleteChunks(ctx context.Context, chunkIDs []string) error
}
