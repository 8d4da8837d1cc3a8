package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
)

// sessionStore implements driven.SessionStore.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

// SaveQuery records a query, creating its session on first use.
func (s *sessionStore) SaveQuery(ctx context.Context, query *domain.Query) error {
	if query.CreatedAt.IsZero() {
		query.CreatedAt = time.Now().UTC()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, query.SessionID, query.CreatedAt); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO queries (id, session_id, text, mode, corpus_id, selected_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, query.ID, query.SessionID, query.Text, string(query.Mode),
		query.CorpusID, query.SelectedText, query.CreatedAt); err != nil {
		return fmt.Errorf("saving query: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing query: %w", err)
	}
	return nil
}

// SaveAnswer records the answer produced for a query.
func (s *sessionStore) SaveAnswer(ctx context.Context, answer *domain.Answer) error {
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}

	basis := answer.Basis
	if basis == nil {
		basis = []string{}
	}
	basisJSON, err := json.Marshal(basis)
	if err != nil {
		return fmt.Errorf("marshalling basis: %w", err)
	}

	if _, err := s.store.db.ExecContext(ctx, `
		INSERT INTO answers (id, query_id, text, basis, based_on, is_refusal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, answer.ID, answer.QueryID, answer.Text, string(basisJSON),
		answer.BasedOn, answer.IsRefusal, answer.CreatedAt); err != nil {
		return fmt.Errorf("saving answer: %w", err)
	}
	return nil
}

// GetHistory returns the ordered query/answer exchanges of a session.
func (s *sessionStore) GetHistory(ctx context.Context, sessionID string) ([]domain.Exchange, error) {
	var exists int
	row := s.store.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID)
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("checking session: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT q.id, q.session_id, q.text, q.mode, q.corpus_id, q.selected_text, q.created_at,
		       a.id, a.query_id, a.text, a.basis, a.based_on, a.is_refusal, a.created_at
		FROM queries q
		LEFT JOIN answers a ON a.query_id = q.id
		WHERE q.session_id = ?
		ORDER BY q.created_at, q.rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var exchanges []domain.Exchange //nolint:prealloc // size unknown from query
	for rows.Next() {
		var ex domain.Exchange
		var mode string
		var queryCreated sql.NullTime
		var ansID, ansQueryID, ansText, basisJSON, basedOn sql.NullString
		var isRefusal sql.NullBool
		var ansCreated sql.NullTime
		if err := rows.Scan(&ex.Query.ID, &ex.Query.SessionID, &ex.Query.Text, &mode,
			&ex.Query.CorpusID, &ex.Query.SelectedText, &queryCreated,
			&ansID, &ansQueryID, &ansText, &basisJSON, &basedOn, &isRefusal, &ansCreated); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}

		ex.Query.Mode = domain.QueryMode(mode)
		if queryCreated.Valid {
			ex.Query.CreatedAt = queryCreated.Time
		}

		if ansID.Valid {
			ex.Answer.ID = ansID.String
			ex.Answer.QueryID = ansQueryID.String
			ex.Answer.Text = ansText.String
			ex.Answer.BasedOn = basedOn.String
			ex.Answer.IsRefusal = isRefusal.Bool
			if ansCreated.Valid {
				ex.Answer.CreatedAt = ansCreated.Time
			}
			if basisJSON.String != "" {
				if err := json.Unmarshal([]byte(basisJSON.String), &ex.Answer.Basis); err != nil {
					return nil, fmt.Errorf("unmarshaling basis: %w", err)
				}
			}
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return exchanges, nil
}
