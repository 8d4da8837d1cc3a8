package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
)

// Ensure SourceBrowser implements the interface.
var _ driving.SourceService = (*SourceBrowser)(nil)

// SourceBrowser exposes stored chunk text and document labels so the UI
// can display the provenance behind a citation.
type SourceBrowser struct {
	store driven.CorpusStore
}

// NewSourceBrowser creates a source browser over the corpus store.
func NewSourceBrowser(store driven.CorpusStore) *SourceBrowser {
	return &SourceBrowser{store: store}
}

// GetChunk returns the literal stored chunk by its deterministic ID.
func (b *SourceBrowser) GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	if chunkID == "" {
		return nil, fmt.Errorf("%w: empty chunk id", domain.ErrInvalidInput)
	}
	return b.store.GetChunk(ctx, chunkID)
}
