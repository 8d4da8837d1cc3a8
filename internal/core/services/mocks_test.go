package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedding implements driven.EmbeddingService for testing.
// Vectors are two-dimensional: texts containing the keyword embed along
// one axis, everything else along the other, so similarity is controlled
// by vocabulary alone.
type mockEmbedding struct {
	mu         sync.Mutex
	keyword    string
	embedErr   error
	embedCalls int
	batchCalls int
}

func (m *mockEmbedding) vector(text string) []float32 {
	if m.keyword != "" && strings.Contains(text, m.keyword) {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func (m *mockEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vector(text)
	}
	return vectors, nil
}

func (m *mockEmbedding) Dimensions() int              { return 2 }
func (m *mockEmbedding) ModelName() string            { return "mock-embed" }
func (m *mockEmbedding) Ping(_ context.Context) error { return nil }
func (m *mockEmbedding) Close() error                 { return nil }

func (m *mockEmbedding) calls() (embed, batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls, m.batchCalls
}

// mockVectorIndex implements driven.VectorIndex with canned hits.
type mockVectorIndex struct {
	mu          sync.Mutex
	hits        []driven.VectorHit
	queryErr    error
	upsertErr   error
	queryCalls  int
	upsertCalls int
	deleteCalls int
}

func (m *mockVectorIndex) Upsert(_ context.Context, _ []driven.VectorPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	return m.upsertErr
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, topK int, _ string) ([]driven.VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if topK > 0 && topK < len(m.hits) {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Delete(_ context.Context, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	return nil
}

func (m *mockVectorIndex) Close() error { return nil }

// forbiddenVectorIndex fails the test contract on any call. Used to prove
// selection-mode isolation by the absence of vector index traffic.
type forbiddenVectorIndex struct{}

var errForbiddenCall = errors.New("vector index must not be called")

func (forbiddenVectorIndex) Upsert(context.Context, []driven.VectorPoint) error {
	return errForbiddenCall
}

func (forbiddenVectorIndex) Query(context.Context, []float32, int, string) ([]driven.VectorHit, error) {
	return nil, errForbiddenCall
}

func (forbiddenVectorIndex) Delete(context.Context, []string) error {
	return errForbiddenCall
}

func (forbiddenVectorIndex) Close() error { return nil }

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	mu       sync.Mutex
	response string
	genErr   error
	calls    int
	prompts  []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.genErr != nil {
		return "", m.genErr
	}
	return m.response, nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockLLM) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
