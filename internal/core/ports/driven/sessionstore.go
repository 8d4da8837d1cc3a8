package driven

import (
	"context"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

// SessionStore records each query, the chunks used and the produced answer,
// for auditability and conversation continuity.
//
// The query path appends to it and never mutates existing records.
// Within one query, the record is written strictly after generation has
// completed, so an answer is never recorded without its grounding basis.
type SessionStore interface {
	// SaveQuery records a query, creating its session on first use.
	SaveQuery(ctx context.Context, query *domain.Query) error

	// SaveAnswer records the answer produced for a query, including its
	// grounding basis.
	SaveAnswer(ctx context.Context, answer *domain.Answer) error

	// GetHistory returns the ordered query/answer exchanges of a session.
	GetHistory(ctx context.Context, sessionID string) ([]domain.Exchange, error)
}
