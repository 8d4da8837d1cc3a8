package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
)

// corpusStore implements driven.CorpusStore.
type corpusStore struct {
	store *Store
}

var _ driven.CorpusStore = (*corpusStore)(nil)

// SaveDocument stores or updates a document record.
func (s *corpusStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, corpus_id, chapter, section, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			corpus_id = excluded.corpus_id,
			chapter = excluded.chapter,
			section = excluded.section,
			text = excluded.text,
			updated_at = excluded.updated_at
	`, doc.ID, doc.CorpusID, doc.Chapter, doc.Section, doc.Text, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SaveChunks stores chunk records, replacing rows with the same IDs.
func (s *corpusStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, corpus_id, ordinal, start_offset, end_offset, text, content_hash, chapter, section)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			corpus_id = excluded.corpus_id,
			ordinal = excluded.ordinal,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			text = excluded.text,
			content_hash = excluded.content_hash,
			chapter = excluded.chapter,
			section = excluded.section
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.CorpusID, c.Ordinal,
			c.Start, c.End, c.Text, c.ContentHash, c.Chapter, c.Section); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunk retrieves a chunk by its deterministic ID.
func (s *corpusStore) GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, corpus_id, ordinal, start_offset, end_offset, text, content_hash, chapter, section
		FROM chunks WHERE id = ?
	`, chunkID)

	var c domain.Chunk
	if err := row.Scan(&c.ID, &c.DocumentID, &c.CorpusID, &c.Ordinal,
		&c.Start, &c.End, &c.Text, &c.ContentHash, &c.Chapter, &c.Section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &c, nil
}

// ListChunkRefs returns lightweight references for every chunk in the corpus.
func (s *corpusStore) ListChunkRefs(ctx context.Context, corpusID string) ([]domain.ChunkRef, error) {
	return s.listRefs(ctx, `
		SELECT id, document_id, ordinal, content_hash
		FROM chunks WHERE corpus_id = ?
		ORDER BY document_id, ordinal
	`, corpusID)
}

// ListDocumentChunkRefs returns chunk references for one document.
func (s *corpusStore) ListDocumentChunkRefs(ctx context.Context, documentID string) ([]domain.ChunkRef, error) {
	return s.listRefs(ctx, `
		SELECT id, document_id, ordinal, content_hash
		FROM chunks WHERE document_id = ?
		ORDER BY ordinal
	`, documentID)
}

func (s *corpusStore) listRefs(ctx context.Context, query string, arg string) ([]domain.ChunkRef, error) {
	rows, err := s.store.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying chunk refs: %w", err)
	}
	defer rows.Close()

	var refs []domain.ChunkRef //nolint:prealloc // size unknown from query
	for rows.Next() {
		var ref domain.ChunkRef
		if err := rows.Scan(&ref.ID, &ref.DocumentID, &ref.Ordinal, &ref.ContentHash); err != nil {
			return nil, fmt.Errorf("scanning chunk ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk refs: %w", err)
	}
	return refs, nil
}

// ListDocuments returns the documents recorded for a corpus.
func (s *corpusStore) ListDocuments(ctx context.Context, corpusID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, corpus_id, chapter, section, text, created_at, updated_at
		FROM documents WHERE corpus_id = ?
		ORDER BY id
	`, corpusID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.CorpusID, &doc.Chapter, &doc.Section,
			&doc.Text, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if createdAt.Valid {
			doc.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			doc.UpdatedAt = updatedAt.Time
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteChunks removes chunk records by ID.
func (s *corpusStore) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", placeholders)
	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}
