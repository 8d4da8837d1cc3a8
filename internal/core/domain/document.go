package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Document represents one source document within a corpus.
// It is the canonical representation handed to the chunker at ingest time.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// CorpusID names the corpus (retrieval scope) that owns this document.
	CorpusID string

	// Chapter is the hierarchical chapter label.
	Chapter string

	// Section is the hierarchical section label.
	Section string

	// Text is the full plain text content before chunking.
	Text string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// ContentHash returns the hex-encoded SHA-256 of the document text.
// A changed source document produces new chunks with new hashes.
func (d *Document) ContentHash() string {
	return HashText(d.Text)
}

// Validate checks the identity fields required before chunking.
// A document that fails validation is rejected with ErrMalformedDocument
// and nothing is written.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing document id", ErrMalformedDocument)
	}
	if d.CorpusID == "" {
		return fmt.Errorf("%w: missing corpus id", ErrMalformedDocument)
	}
	if d.Text == "" {
		return fmt.Errorf("%w: document %q has no text", ErrMalformedDocument, d.ID)
	}
	return nil
}

// Chunk is an immutable, addressable slice of a document's text.
//
// The ID is a deterministic function of document ID, start offset and
// content hash, so re-ingesting identical content yields identical IDs.
// This determinism is what makes reindexing idempotent: the vector index
// and corpus store are both keyed by it.
type Chunk struct {
	// ID is the deterministic chunk identifier.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// CorpusID names the retrieval scope the chunk belongs to.
	CorpusID string

	// Ordinal is the position of the chunk within the document.
	Ordinal int

	// Start is the byte offset of the chunk's non-overlapping span
	// within the document text.
	Start int

	// End is the byte offset one past the non-overlapping span.
	// Concatenating Text[:End-Start] slices across a document's chunks
	// reproduces the original text exactly.
	End int

	// Text is the chunk content, including any leading overlap carried
	// from the previous chunk for context continuity.
	Text string

	// ContentHash is the hex-encoded SHA-256 of Text.
	ContentHash string

	// Chapter and Section are document labels copied down for filtering
	// and for citation display.
	Chapter string
	Section string
}

// ChunkID derives the deterministic chunk identifier from the parent
// document ID, the chunk's start offset and its content hash.
func ChunkID(documentID string, start int, contentHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", documentID, start, contentHash)))
	return hex.EncodeToString(sum[:16])
}

// HashText returns the hex-encoded SHA-256 of the given text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkRef is a lightweight reference to a stored chunk, used by the
// reindex manager to diff stored state against freshly chunked documents
// without loading chunk text.
type ChunkRef struct {
	ID          string
	DocumentID  string
	Ordinal     int
	ContentHash string
}

// RetrievedChunk is a transient, per-query projection of a chunk plus its
// similarity score. It is never persisted; it exists only for the duration
// of one query's processing.
type RetrievedChunk struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Text is the chunk content used as grounding context.
	Text string

	// Score is the similarity score reported by the vector index.
	Score float64

	// Chapter and Section are the document labels for citation.
	Chapter string
	Section string
}
