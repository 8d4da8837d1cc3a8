package domain

import "time"

// QueryMode selects the grounding source for a query.
type QueryMode string

const (
	// ModeCorpus answers from retrieved corpus chunks.
	ModeCorpus QueryMode = "corpus"

	// ModeSelection answers from a user-selected passage only.
	// Retrieval against the vector index is never invoked in this mode.
	ModeSelection QueryMode = "selection"
)

// BasedOn markers recorded on answers for provenance display.
const (
	// BasedOnCorpus marks an answer grounded on retrieved corpus chunks.
	BasedOnCorpus = "full_book"

	// BasedOnSelection marks an answer grounded on a selected passage.
	BasedOnSelection = "selected_text"
)

// RefusalText is the canonical deterministic refusal issued when no
// qualifying context exists. It is returned directly, without invoking
// the generation service.
const RefusalText = "This information is not available in the book."

// Query represents one user question.
type Query struct {
	// ID is the unique query identifier.
	ID string

	// SessionID groups queries into a conversation.
	SessionID string

	// Text is the raw question text.
	Text string

	// Mode selects corpus or selection grounding.
	Mode QueryMode

	// CorpusID scopes corpus-mode retrieval. Empty in selection mode.
	CorpusID string

	// SelectedText is the literal passage for selection mode.
	// Present iff Mode == ModeSelection.
	SelectedText string

	// CreatedAt is when the query was received.
	CreatedAt time.Time
}

// Answer represents the produced response for a query, together with the
// provenance that justified it.
type Answer struct {
	// ID is the unique answer identifier.
	ID string

	// QueryID references the query this answers.
	QueryID string

	// Text is the answer text (generated, refusal, or fallback).
	Text string

	// Basis lists the chunk IDs the answer was grounded on.
	// Empty for selection-mode answers and refusals.
	Basis []string

	// BasedOn is BasedOnCorpus or BasedOnSelection.
	BasedOn string

	// IsRefusal is true when no qualifying context existed and the
	// canonical refusal was returned.
	IsRefusal bool

	// CreatedAt is when the answer was produced.
	CreatedAt time.Time
}

// Session is an ordered sequence of query/answer pairs sharing a session ID.
// Sessions have no hard expiry in this core; cleanup is an external policy
// concern.
type Session struct {
	// ID is the session identifier.
	ID string

	// CreatedAt is when the first query of the session arrived.
	CreatedAt time.Time
}

// Exchange pairs a query with its answer for history listings.
type Exchange struct {
	Query  Query
	Answer Answer
}

// Citation points from an answer back to one grounding chunk.
type Citation struct {
	ChunkID string
	Chapter string
	Section string
}
