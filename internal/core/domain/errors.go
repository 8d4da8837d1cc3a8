package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedDocument indicates ingest input missing required
	// identity fields. Rejected before chunking; nothing is written.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrEmbeddingUnavailable indicates the embedding service is
	// unreachable or erroring past the retry budget. An ingest batch
	// fails wholesale; a query-path failure surfaces as a service error,
	// never as a refusal.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndex indicates a vector index upsert/query/delete failed
	// after retries.
	ErrVectorIndex = errors.New("vector index failure")

	// ErrGenerationUnavailable indicates the generation service failed.
	// The user-visible response is a fallback message distinct from the
	// no-context refusal.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrReindexInProgress indicates a reindex run is already active for
	// the corpus. Runs on the same corpus are mutually exclusive; runs on
	// different corpora proceed in parallel.
	ErrReindexInProgress = errors.New("reindex already in progress")
)
