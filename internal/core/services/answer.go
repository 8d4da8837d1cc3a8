package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
	"github.com/custodia-labs/bookwise/internal/logger"
)

// Ensure Answerer implements the interface.
var _ driving.AskService = (*Answerer)(nil)

// Answerer is the grounding policy. It decides, per query, whether an
// answerable context exists, constructs the exact payload handed to
// generation, and owns the refusal rule.
//
// Context isolation is strict: in selection mode the retriever is never
// invoked - not merely ignored - so tests can prove isolation by the
// absence of any vector index call.
type Answerer struct {
	retriever ChunkRetriever
	llm       driven.LLMService
	sessions  driven.SessionStore
	topK      int
	genOpts   driven.GenerateOptions
}

// NewAnswerer creates the grounding policy service.
func NewAnswerer(retriever ChunkRetriever, llm driven.LLMService, sessions driven.SessionStore, topK int, genOpts driven.GenerateOptions) *Answerer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Answerer{
		retriever: retriever,
		llm:       llm,
		sessions:  sessions,
		topK:      topK,
		genOpts:   genOpts,
	}
}

// Ask processes one question.
//
// Corpus mode: retrieve, then either generate from the retrieved chunks or
// short-circuit to the canonical refusal when nothing qualifies - the
// generation service is never invoked for a refusal, so refusals are
// deterministic regardless of what a model might decide to say.
//
// Selection mode: the literal selected text is the whole context.
//
// The session record is written strictly after generation completes, so an
// answer is never recorded without its basis.
func (a *Answerer) Ask(ctx context.Context, req driving.AskRequest) (*driving.AskResult, error) {
	if err := validateAsk(&req); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	query := domain.Query{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		Text:         req.QueryText,
		Mode:         req.Mode,
		CorpusID:     req.CorpusID,
		SelectedText: req.SelectedText,
		CreatedAt:    time.Now().UTC(),
	}

	var result *driving.AskResult
	var err error
	switch req.Mode {
	case domain.ModeSelection:
		result, err = a.askSelection(ctx, &query)
	default:
		result, err = a.askCorpus(ctx, &query)
	}
	if err != nil {
		return nil, err
	}

	answer := domain.Answer{
		ID:        uuid.New().String(),
		QueryID:   query.ID,
		Text:      result.Answer,
		BasedOn:   result.BasedOn,
		IsRefusal: result.IsRefusal,
		CreatedAt: time.Now().UTC(),
	}
	for _, c := range result.Citations {
		answer.Basis = append(answer.Basis, c.ChunkID)
	}

	if err := a.sessions.SaveQuery(ctx, &query); err != nil {
		return nil, fmt.Errorf("save query: %w", err)
	}
	if err := a.sessions.SaveAnswer(ctx, &answer); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	result.QueryID = query.ID
	result.AnswerID = answer.ID
	result.SessionID = sessionID
	return result, nil
}

// askCorpus handles corpus mode: retrieval feeds grounding feeds generation.
func (a *Answerer) askCorpus(ctx context.Context, query *domain.Query) (*driving.AskResult, error) {
	chunks, err := a.retriever.Retrieve(ctx, query.Text, query.CorpusID, a.topK)
	if err != nil {
		// A retrieval failure means "we don't know", not "there is
		// nothing". It must never be downgraded to a refusal.
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if len(chunks) == 0 {
		logger.Info("No qualifying context for query %s, refusing", query.ID)
		return &driving.AskResult{
			Answer:    domain.RefusalText,
			BasedOn:   domain.BasedOnCorpus,
			IsRefusal: true,
		}, nil
	}

	text, err := a.llm.Generate(ctx, corpusPrompt(query.Text, chunks), a.genOpts)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	citations := make([]domain.Citation, 0, len(chunks))
	for _, chunk := range chunks {
		citations = append(citations, domain.Citation{
			ChunkID: chunk.ChunkID,
			Chapter: chunk.Chapter,
			Section: chunk.Section,
		})
	}

	return &driving.AskResult{
		Answer:    strings.TrimSpace(text),
		Citations: citations,
		BasedOn:   domain.BasedOnCorpus,
	}, nil
}

// askSelection handles selection mode. The retriever is not consulted.
func (a *Answerer) askSelection(ctx context.Context, query *domain.Query) (*driving.AskResult, error) {
	text, err := a.llm.Generate(ctx, selectionPrompt(query.Text, query.SelectedText), a.genOpts)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return &driving.AskResult{
		Answer:  strings.TrimSpace(text),
		BasedOn: domain.BasedOnSelection,
	}, nil
}

// History returns the ordered exchanges of a session.
func (a *Answerer) History(ctx context.Context, sessionID string) ([]domain.Exchange, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", domain.ErrInvalidInput)
	}
	return a.sessions.GetHistory(ctx, sessionID)
}

// validateAsk rejects malformed requests before they reach the policy.
func validateAsk(req *driving.AskRequest) error {
	req.QueryText = strings.TrimSpace(req.QueryText)
	if req.QueryText == "" {
		return fmt.Errorf("%w: query_text cannot be empty", domain.ErrInvalidInput)
	}

	switch req.Mode {
	case domain.ModeSelection:
		if strings.TrimSpace(req.SelectedText) == "" {
			return fmt.Errorf("%w: selected_text is required in selection mode", domain.ErrInvalidInput)
		}
	case domain.ModeCorpus, "":
		req.Mode = domain.ModeCorpus
		if req.CorpusID == "" {
			return fmt.Errorf("%w: corpus_id is required in corpus mode", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, req.Mode)
	}
	return nil
}
