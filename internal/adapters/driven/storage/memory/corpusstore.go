// Package memory provides in-memory store implementations used by tests
// and by single-process development mode. All operations are safe for
// concurrent use.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
)

// Ensure CorpusStore implements the interface.
var _ driven.CorpusStore = (*CorpusStore)(nil)

// CorpusStore is an in-memory implementation of driven.CorpusStore.
type CorpusStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string]domain.Chunk
}

// NewCorpusStore creates a new in-memory corpus store.
func NewCorpusStore() *CorpusStore {
	return &CorpusStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
	}
}

// SaveDocument stores or updates a document record.
func (s *CorpusStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// SaveChunks stores chunk records keyed by chunk ID.
func (s *CorpusStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *CorpusStore) GetChunk(_ context.Context, chunkID string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// ListChunkRefs returns references for every chunk in the corpus.
func (s *CorpusStore) ListChunkRefs(_ context.Context, corpusID string) ([]domain.ChunkRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []domain.ChunkRef
	for _, chunk := range s.chunks {
		if chunk.CorpusID == corpusID {
			refs = append(refs, chunkRef(chunk))
		}
	}
	sortRefs(refs)
	return refs, nil
}

// ListDocumentChunkRefs returns chunk references for one document.
func (s *CorpusStore) ListDocumentChunkRefs(_ context.Context, documentID string) ([]domain.ChunkRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []domain.ChunkRef
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			refs = append(refs, chunkRef(chunk))
		}
	}
	sortRefs(refs)
	return refs, nil
}

// ListDocuments returns the documents recorded for a corpus.
func (s *CorpusStore) ListDocuments(_ context.Context, corpusID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.CorpusID == corpusID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// DeleteChunks removes chunk records by ID.
func (s *CorpusStore) DeleteChunks(_ context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.chunks, id)
	}
	return nil
}

func chunkRef(chunk domain.Chunk) domain.ChunkRef {
	return domain.ChunkRef{
		ID:          chunk.ID,
		DocumentID:  chunk.DocumentID,
		Ordinal:     chunk.Ordinal,
		ContentHash: chunk.ContentHash,
	}
}

func sortRefs(refs []domain.ChunkRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].DocumentID != refs[j].DocumentID {
			return refs[i].DocumentID < refs[j].DocumentID
		}
		return refs[i].Ordinal < refs[j].Ordinal
	})
}
