package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
	"github.com/custodia-labs/bookwise/internal/logger"
)

// DefaultEmbedBatchSize is the default number of chunks embedded per
// remote call.
const DefaultEmbedBatchSize = 32

// DocumentChunker splits a document into its deterministic chunk sequence.
// Implemented by internal/chunker.
type DocumentChunker interface {
	Chunk(doc *domain.Document) ([]domain.Chunk, error)
}

// Ensure Reindexer implements the interface.
var _ driving.ReindexService = (*Reindexer)(nil)

// Reindexer drives ingestion: chunk, embed, upsert, and delete stale
// vectors, without duplication or orphaning.
//
// Runs on the same corpus are mutually exclusive via a per-corpus advisory
// lock; runs on different corpora proceed in parallel. The lock is never
// taken by the query path, so reads are never blocked.
type Reindexer struct {
	chunker   DocumentChunker
	embedding driven.EmbeddingService
	index     driven.VectorIndex
	store     driven.CorpusStore
	batchSize int

	mu     sync.Mutex
	active map[string]bool
}

// NewReindexer creates a reindex manager.
func NewReindexer(chunker DocumentChunker, embedding driven.EmbeddingService, index driven.VectorIndex, store driven.CorpusStore, batchSize int) *Reindexer {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Reindexer{
		chunker:   chunker,
		embedding: embedding,
		index:     index,
		store:     store,
		batchSize: batchSize,
		active:    make(map[string]bool),
	}
}

// tryLock acquires the per-corpus advisory lock.
func (r *Reindexer) tryLock(corpusID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[corpusID] {
		return fmt.Errorf("%w: corpus %s", domain.ErrReindexInProgress, corpusID)
	}
	r.active[corpusID] = true
	return nil
}

func (r *Reindexer) unlock(corpusID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, corpusID)
}

// Ingest chunks, embeds and indexes a single document. Unchanged chunks
// are skipped entirely; stale chunks of the same document are removed.
// Returns the full chunk ID set of the document as stored.
func (r *Reindexer) Ingest(ctx context.Context, doc *domain.Document) ([]string, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := r.tryLock(doc.CorpusID); err != nil {
		return nil, err
	}
	defer r.unlock(doc.CorpusID)

	known, err := r.store.ListDocumentChunkRefs(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list document chunks: %w", err)
	}

	report := &domain.ReindexReport{CorpusID: doc.CorpusID}
	chunkIDs, err := r.reindexDocument(ctx, doc, known, report)
	if err != nil {
		return nil, err
	}
	if len(report.FailedBatches) > 0 {
		return nil, fmt.Errorf("ingest %s: %d batch(es) failed", doc.ID, len(report.FailedBatches))
	}

	logger.Info("Ingested %s: %d added, %d updated, %d unchanged, %d removed",
		doc.ID, report.Added, report.Updated, report.Unchanged, report.Removed)
	return chunkIDs, nil
}

// Reindex re-runs ingestion for a whole corpus. Chunks present in the
// store but absent from the new document set are deleted from the vector
// index and corpus store.
//
// The operation is safe to re-run after a crash: upserts are keyed by
// deterministic chunk IDs, so at-least-once delivery converges on the same
// end state as an uninterrupted run. A failed embedding batch is reported
// and retryable independently; it does not roll back other batches.
func (r *Reindexer) Reindex(ctx context.Context, corpusID string, docs []domain.Document) (*domain.ReindexReport, error) {
	if corpusID == "" {
		return nil, fmt.Errorf("%w: empty corpus id", domain.ErrInvalidInput)
	}
	if err := r.tryLock(corpusID); err != nil {
		return nil, err
	}
	defer r.unlock(corpusID)

	logger.Section("Reindex")
	logger.Info("Reindexing corpus %s: %d documents", corpusID, len(docs))

	known, err := r.store.ListChunkRefs(ctx, corpusID)
	if err != nil {
		return nil, fmt.Errorf("list corpus chunks: %w", err)
	}
	knownByDoc := make(map[string][]domain.ChunkRef)
	for _, ref := range known {
		knownByDoc[ref.DocumentID] = append(knownByDoc[ref.DocumentID], ref)
	}

	report := &domain.ReindexReport{CorpusID: corpusID}
	seenDocs := make(map[string]bool, len(docs))

	for i := range docs {
		doc := &docs[i]
		if doc.CorpusID == "" {
			doc.CorpusID = corpusID
		}
		if doc.CorpusID != corpusID {
			return nil, fmt.Errorf("%w: document %s belongs to corpus %s", domain.ErrInvalidInput, doc.ID, doc.CorpusID)
		}
		seenDocs[doc.ID] = true

		if _, err := r.reindexDocument(ctx, doc, knownByDoc[doc.ID], report); err != nil {
			return nil, err
		}
	}

	// Documents gone from the corpus entirely: all their chunks are stale.
	for docID, refs := range knownByDoc {
		if seenDocs[docID] {
			continue
		}
		ids := make([]string, 0, len(refs))
		for _, ref := range refs {
			ids = append(ids, ref.ID)
		}
		if err := r.removeChunks(ctx, ids); err != nil {
			return nil, err
		}
		report.Removed += len(ids)
	}

	logger.Info("Reindex complete: %d added, %d updated, %d unchanged, %d removed, %d failed batches",
		report.Added, report.Updated, report.Unchanged, report.Removed, len(report.FailedBatches))
	return report, nil
}

// reindexDocument diffs one document's fresh chunk sequence against the
// stored refs, embeds and upserts what changed, and removes what is stale.
// Returns the document's full new chunk ID set.
func (r *Reindexer) reindexDocument(ctx context.Context, doc *domain.Document, known []domain.ChunkRef, report *domain.ReindexReport) ([]string, error) {
	chunks, err := r.chunker.Chunk(doc)
	if err != nil {
		return nil, err
	}

	knownIDs := make(map[string]bool, len(known))
	knownByOrdinal := make(map[int]domain.ChunkRef, len(known))
	for _, ref := range known {
		knownIDs[ref.ID] = true
		knownByOrdinal[ref.Ordinal] = ref
	}

	newIDs := make([]string, 0, len(chunks))
	newIDSet := make(map[string]bool, len(chunks))
	var pending []domain.Chunk
	for _, chunk := range chunks {
		newIDs = append(newIDs, chunk.ID)
		newIDSet[chunk.ID] = true

		if knownIDs[chunk.ID] {
			// Identical ID implies identical content hash: skip with
			// no embed call and no index call.
			report.Unchanged++
			continue
		}
		if _, held := knownByOrdinal[chunk.Ordinal]; held {
			report.Updated++
		} else {
			report.Added++
		}
		pending = append(pending, chunk)
	}

	failed := r.embedAndUpsert(ctx, doc, pending, report)

	// Stale IDs: present in the store, absent from the new chunk set.
	// Superseded versions of updated chunks land here too; a chunk whose
	// ordinal also disappeared counts as removed. When a batch failed we
	// keep the old chunks in place rather than leaving a gap.
	if !failed {
		newOrdinals := make(map[int]bool, len(chunks))
		for _, chunk := range chunks {
			newOrdinals[chunk.Ordinal] = true
		}
		var stale []string
		for _, ref := range known {
			if newIDSet[ref.ID] {
				continue
			}
			stale = append(stale, ref.ID)
			if !newOrdinals[ref.Ordinal] {
				report.Removed++
			}
		}
		if err := r.removeChunks(ctx, stale); err != nil {
			return nil, err
		}

		doc.UpdatedAt = time.Now().UTC()
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = doc.UpdatedAt
		}
		if err := r.store.SaveDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("save document: %w", err)
		}
	}

	return newIDs, nil
}

// embedAndUpsert processes pending chunks in batches. Each batch is
// all-or-nothing: a failure is recorded in the report and does not abort
// the remaining batches. Reports whether any batch failed.
func (r *Reindexer) embedAndUpsert(ctx context.Context, doc *domain.Document, pending []domain.Chunk, report *domain.ReindexReport) bool {
	failed := false
	for start := 0; start < len(pending); start += r.batchSize {
		end := start + r.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := r.processBatch(ctx, batch); err != nil {
			label := fmt.Sprintf("%s[%d:%d]", doc.ID, batch[0].Ordinal, batch[len(batch)-1].Ordinal)
			logger.Error("Batch %s failed: %v", label, err)
			report.FailedBatches = append(report.FailedBatches, label)
			failed = true
		}
	}
	return failed
}

// processBatch embeds one batch and upserts vectors before persisting the
// chunk records, so a query never sees a chunk whose vector is missing.
func (r *Reindexer) processBatch(ctx context.Context, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := r.embedding.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingUnavailable, len(vectors), len(batch))
	}

	points := make([]driven.VectorPoint, len(batch))
	for i, chunk := range batch {
		points[i] = driven.VectorPoint{
			ChunkID: chunk.ID,
			Vector:  vectors[i],
			Payload: driven.VectorPayload{
				DocumentID: chunk.DocumentID,
				CorpusID:   chunk.CorpusID,
				Ordinal:    chunk.Ordinal,
				Text:       chunk.Text,
				Chapter:    chunk.Chapter,
				Section:    chunk.Section,
			},
		}
	}

	if err := r.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	if err := r.store.SaveChunks(ctx, batch); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// removeChunks deletes stale chunks from the index first, then the store,
// so a chunk is never retrievable without its provenance record.
func (r *Reindexer) removeChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := r.index.Delete(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := r.store.DeleteChunks(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete chunk records: %w", err)
	}
	return nil
}
