package driving

import (
	"context"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

// AskService answers questions grounded on corpus retrieval or on a
// user-selected passage. It owns the refusal rule: when no qualifying
// context exists the canonical refusal is returned deterministically and
// the generation service is never invoked.
type AskService interface {
	// Ask processes one question and records the full exchange.
	Ask(ctx context.Context, req AskRequest) (*AskResult, error)

	// History returns the ordered exchanges of a session.
	History(ctx context.Context, sessionID string) ([]domain.Exchange, error)
}

// AskRequest is one question, validated at the transport boundary.
type AskRequest struct {
	// QueryText is the question.
	QueryText string

	// Mode selects corpus or selection grounding.
	Mode domain.QueryMode

	// CorpusID scopes corpus-mode retrieval. Required in corpus mode.
	CorpusID string

	// SelectedText is the literal passage for selection mode.
	// Required in selection mode; retrieval is never invoked for it.
	SelectedText string

	// SessionID continues an existing session when set; a new session is
	// created when empty.
	SessionID string
}

// AskResult is the produced answer plus its provenance.
type AskResult struct {
	// QueryID and AnswerID identify the recorded exchange.
	QueryID  string
	AnswerID string

	// SessionID is the (possibly newly created) session.
	SessionID string

	// Answer is the answer text: generated, or the canonical refusal.
	Answer string

	// Citations link the answer back to grounding chunks.
	// Always empty for selection mode and refusals.
	Citations []domain.Citation

	// BasedOn is domain.BasedOnCorpus or domain.BasedOnSelection.
	BasedOn string

	// IsRefusal is true when no qualifying context existed.
	IsRefusal bool
}
