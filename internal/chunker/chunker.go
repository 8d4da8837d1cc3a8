// Package chunker splits documents into stable, addressable text chunks.
//
// Chunking is deterministic and restartable: the same document always
// yields a byte-identical chunk sequence with identical chunk IDs. This is
// load-bearing for idempotent reindexing - chunk IDs key both the vector
// index and the corpus store.
package chunker

import (
	"unicode/utf8"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

// DefaultChunkSize is the default number of bytes per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of leading bytes carried over from
// the previous chunk for context continuity.
const DefaultOverlap = 200

// DefaultMinChunk is the default minimum chunk length. The sentence
// boundary search never shortens a chunk below this.
const DefaultMinChunk = 200

// Chunker splits document text into sentence-aware, overlapping chunks.
type Chunker struct {
	chunkSize int
	overlap   int
	minChunk  int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMinChunk sets the minimum chunk length in bytes.
func WithMinChunk(minChunk int) Option {
	return func(c *Chunker) {
		if minChunk > 0 {
			c.minChunk = minChunk
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		minChunk:  DefaultMinChunk,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Keep the parameters self-consistent
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	if c.minChunk >= c.chunkSize {
		c.minChunk = c.chunkSize / 2
	}

	return c
}

// Chunk splits a document into an ordered sequence of chunks.
//
// The non-overlapping spans [Start, End) partition the document text
// exactly: concatenating them reproduces the original with no content
// loss. Each chunk's Text additionally carries up to the configured
// overlap from the preceding span.
//
// Returns domain.ErrMalformedDocument when identity fields are missing.
func (c *Chunker) Chunk(doc *domain.Document) ([]domain.Chunk, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	text := doc.Text
	var chunks []domain.Chunk

	start := 0
	for start < len(text) {
		end := c.cutPoint(text, start)

		textStart := start - c.overlap
		if textStart < 0 {
			textStart = 0
		}
		// Never start mid-rune when backing up for overlap.
		for textStart > 0 && !utf8.RuneStart(text[textStart]) {
			textStart--
		}

		content := text[textStart:end]
		hash := domain.HashText(content)

		chunks = append(chunks, domain.Chunk{
			ID:          domain.ChunkID(doc.ID, start, hash),
			DocumentID:  doc.ID,
			CorpusID:    doc.CorpusID,
			Ordinal:     len(chunks),
			Start:       start,
			End:         end,
			Text:        content,
			ContentHash: hash,
			Chapter:     doc.Chapter,
			Section:     doc.Section,
		})

		start = end
	}

	return chunks, nil
}

// cutPoint returns the end offset of the span starting at start.
// It prefers the nearest sentence boundary at or before start+chunkSize,
// without shortening the span below minChunk, and never splits a rune.
func (c *Chunker) cutPoint(text string, start int) int {
	limit := start + c.chunkSize
	if limit >= len(text) {
		return len(text)
	}

	floor := start + c.minChunk
	for i := limit; i > floor; i-- {
		if isSentenceEnd(text, i) {
			return i
		}
	}

	// No boundary in the window: hard cut at the limit, backed up to a
	// rune boundary.
	for limit > floor && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}

// isSentenceEnd reports whether offset i in text immediately follows a
// sentence terminator (or a newline), so cutting there does not fracture
// a sentence. Terminators must be followed by whitespace to avoid cutting
// inside abbreviations or numbers like "3.14".
func isSentenceEnd(text string, i int) bool {
	switch text[i-1] {
	case '\n':
		return true
	case '.', '!', '?':
		return i >= len(text) || text[i] == ' ' || text[i] == '\n' || text[i] == '\t'
	default:
		return false
	}
}
