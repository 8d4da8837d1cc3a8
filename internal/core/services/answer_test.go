package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/bookwise/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
)

func newAnswerer(retriever ChunkRetriever, llm driven.LLMService) (*Answerer, *memory.SessionStore) {
	sessions := memory.NewSessionStore()
	return NewAnswerer(retriever, llm, sessions, 5, driven.GenerateOptions{}), sessions
}

func corpusRequest(text string) driving.AskRequest {
	return driving.AskRequest{QueryText: text, Mode: domain.ModeCorpus, CorpusID: "book-1"}
}

func TestAsk_CorpusModeWithContext(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{hit("c-1", 0.9), hit("c-2", 0.8)}}
	retriever := NewRetriever(&mockEmbedding{}, index, 0)
	llm := &mockLLM{response: "Grounded answer."}
	a, sessions := newAnswerer(retriever, llm)

	result, err := a.Ask(context.Background(), corpusRequest("What is covered?"))
	require.NoError(t, err)

	assert.Equal(t, "Grounded answer.", result.Answer)
	assert.False(t, result.IsRefusal)
	assert.Equal(t, domain.BasedOnCorpus, result.BasedOn)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "c-1", result.Citations[0].ChunkID)
	assert.NotEmpty(t, result.SessionID)

	// The prompt contains the retrieved text and the refusal rule.
	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "text for c-1")
	assert.Contains(t, prompt, domain.RefusalText)
	assert.Contains(t, prompt, "ONLY")

	// One exchange recorded with its basis.
	history, err := sessions.GetHistory(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"c-1", "c-2"}, history[0].Answer.Basis)
}

// A query with no floor-passing chunks always yields the canonical refusal
// with zero generation calls.
func TestAsk_RefusalDeterminism(t *testing.T) {
	retriever := NewRetriever(&mockEmbedding{}, &mockVectorIndex{}, 0)
	llm := &mockLLM{response: "should never appear"}
	a, sessions := newAnswerer(retriever, llm)

	for i := 0; i < 3; i++ {
		result, err := a.Ask(context.Background(), corpusRequest("Anything here?"))
		require.NoError(t, err)
		assert.True(t, result.IsRefusal)
		assert.Equal(t, domain.RefusalText, result.Answer)
		assert.Empty(t, result.Citations)
	}
	assert.Equal(t, 0, llm.callCount())

	_ = sessions
}

// Selection mode must never touch the vector index or the embedder: the
// isolation guarantee is checkable by the absence of any call.
func TestAsk_SelectionIsolation(t *testing.T) {
	embedding := &mockEmbedding{embedErr: errForbiddenCall}
	retriever := NewRetriever(embedding, forbiddenVectorIndex{}, 0)
	llm := &mockLLM{response: "X is the cause."}
	a, sessions := newAnswerer(retriever, llm)

	result, err := a.Ask(context.Background(), driving.AskRequest{
		QueryText:    "What causes Y?",
		Mode:         domain.ModeSelection,
		SelectedText: "X causes Y",
	})
	require.NoError(t, err)

	assert.Equal(t, "X is the cause.", result.Answer)
	assert.Equal(t, domain.BasedOnSelection, result.BasedOn)
	assert.Empty(t, result.Citations)
	assert.False(t, result.IsRefusal)

	// The prompt's context is the literal selected text, nothing else.
	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "X causes Y")
	assert.NotContains(t, prompt, "chunk")

	history, err := sessions.GetHistory(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.BasedOnSelection, history[0].Answer.BasedOn)
	assert.Empty(t, history[0].Answer.Basis)
}

func TestAsk_SessionContinuity(t *testing.T) {
	retriever := NewRetriever(&mockEmbedding{}, &mockVectorIndex{hits: []driven.VectorHit{hit("c-1", 0.9)}}, 0)
	a, _ := newAnswerer(retriever, &mockLLM{response: "answer"})

	first, err := a.Ask(context.Background(), corpusRequest("first question"))
	require.NoError(t, err)

	req := corpusRequest("second question")
	req.SessionID = first.SessionID
	second, err := a.Ask(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	history, err := a.History(context.Background(), first.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first question", history[0].Query.Text)
	assert.Equal(t, "second question", history[1].Query.Text)
}

// A retrieval failure surfaces as a service error and is never downgraded
// to a refusal: "the system is broken" must not read as "the book doesn't
// cover this".
func TestAsk_RetrievalFailureIsNotARefusal(t *testing.T) {
	embedding := &mockEmbedding{embedErr: domain.ErrEmbeddingUnavailable}
	retriever := NewRetriever(embedding, &mockVectorIndex{}, 0)
	llm := &mockLLM{}
	a, _ := newAnswerer(retriever, llm)

	_, err := a.Ask(context.Background(), corpusRequest("question"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, 0, llm.callCount())
}

func TestAsk_GenerationFailure(t *testing.T) {
	retriever := NewRetriever(&mockEmbedding{}, &mockVectorIndex{hits: []driven.VectorHit{hit("c-1", 0.9)}}, 0)
	llm := &mockLLM{genErr: domain.ErrGenerationUnavailable}
	a, _ := newAnswerer(retriever, llm)

	_, err := a.Ask(context.Background(), corpusRequest("question"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
}

func TestAsk_Validation(t *testing.T) {
	a, _ := newAnswerer(NewRetriever(&mockEmbedding{}, &mockVectorIndex{}, 0), &mockLLM{})

	tests := []struct {
		name string
		req  driving.AskRequest
	}{
		{"empty query", driving.AskRequest{Mode: domain.ModeCorpus, CorpusID: "b"}},
		{"whitespace query", driving.AskRequest{QueryText: "  \n ", Mode: domain.ModeCorpus, CorpusID: "b"}},
		{"corpus mode without corpus", driving.AskRequest{QueryText: "q", Mode: domain.ModeCorpus}},
		{"selection mode without text", driving.AskRequest{QueryText: "q", Mode: domain.ModeSelection}},
		{"unknown mode", driving.AskRequest{QueryText: "q", Mode: "psychic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Ask(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestPrompts_GroundingContract(t *testing.T) {
	corpus := corpusPrompt("Q?", []domain.RetrievedChunk{{ChunkID: "c-9", Text: "facts here", Chapter: "ch1", Section: "s2"}})
	assert.Contains(t, corpus, "[chunk c-9 | ch1 / s2]")
	assert.Contains(t, corpus, "facts here")
	assert.Contains(t, corpus, domain.RefusalText)
	assert.True(t, strings.Contains(corpus, "Do not use outside knowledge"))

	selection := selectionPrompt("Q?", "only this passage")
	assert.Contains(t, selection, "only this passage")
	assert.Contains(t, selection, "ONLY the selected text")
}
