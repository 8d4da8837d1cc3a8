package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore is an in-memory implementation of driven.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	queries  map[string][]domain.Query // keyed by session ID, in arrival order
	answers  map[string]domain.Answer  // keyed by query ID
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
		queries:  make(map[string][]domain.Query),
		answers:  make(map[string]domain.Answer),
	}
}

// SaveQuery records a query, creating its session on first use.
func (s *SessionStore) SaveQuery(_ context.Context, query *domain.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[query.SessionID]; !ok {
		s.sessions[query.SessionID] = domain.Session{
			ID:        query.SessionID,
			CreatedAt: time.Now().UTC(),
		}
	}
	s.queries[query.SessionID] = append(s.queries[query.SessionID], *query)
	return nil
}

// SaveAnswer records the answer produced for a query.
func (s *SessionStore) SaveAnswer(_ context.Context, answer *domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answer.QueryID] = *answer
	return nil
}

// GetHistory returns the ordered query/answer exchanges of a session.
func (s *SessionStore) GetHistory(_ context.Context, sessionID string) ([]domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrNotFound
	}

	queries := s.queries[sessionID]
	exchanges := make([]domain.Exchange, 0, len(queries))
	for _, query := range queries {
		exchanges = append(exchanges, domain.Exchange{
			Query:  query,
			Answer: s.answers[query.ID],
		})
	}
	return exchanges, nil
}
