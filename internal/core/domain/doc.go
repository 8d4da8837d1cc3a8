// Package domain defines the core business entities for Bookwise.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A source document belonging to a corpus
//   - Chunk: An addressable, immutable slice of a document's text
//   - Query / Answer / Session: The question-answering audit trail
//   - RetrievedChunk: A transient, per-query retrieval hit
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
