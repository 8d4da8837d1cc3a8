package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagemem "github.com/custodia-labs/bookwise/internal/adapters/driven/storage/memory"
	vectormem "github.com/custodia-labs/bookwise/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/bookwise/internal/chunker"
	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
	"github.com/custodia-labs/bookwise/internal/core/services"
)

// keywordEmbedding maps text onto a 2D vector: texts containing the keyword
// point one way, everything else the other. Similarity is then a pure
// function of keyword presence, which makes retrieval outcomes exact.
type keywordEmbedding struct {
	keyword string
}

func (e *keywordEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), e.keyword) {
		return []float32{1, 0.2}, nil
	}
	return []float32{0.2, 1}, nil
}

func (e *keywordEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedding) Dimensions() int            { return 2 }
func (e *keywordEmbedding) ModelName() string          { return "keyword-test" }
func (e *keywordEmbedding) Ping(context.Context) error { return nil }
func (e *keywordEmbedding) Close() error               { return nil }

// echoLLM returns a fixed answer and counts invocations.
type echoLLM struct {
	calls   int
	prompts []string
}

func (l *echoLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	l.calls++
	l.prompts = append(l.prompts, prompt)
	return "generated answer", nil
}

func (l *echoLLM) ModelName() string          { return "echo-test" }
func (l *echoLLM) Ping(context.Context) error { return nil }
func (l *echoLLM) Close() error               { return nil }

// testServer wires the full service stack over in-memory adapters.
func testServer(t *testing.T) (*Server, *echoLLM) {
	t.Helper()

	embedding := &keywordEmbedding{keyword: "gravity"}
	index := vectormem.New()
	corpus := storagemem.NewCorpusStore()
	sessions := storagemem.NewSessionStore()
	llm := &echoLLM{}

	// Paragraph-sized chunks so a three-paragraph document yields three
	// chunks.
	ch := chunker.New(chunker.WithChunkSize(120), chunker.WithOverlap(0), chunker.WithMinChunk(30))

	retriever := services.NewRetriever(embedding, index, 0.5)
	answerer := services.NewAnswerer(retriever, llm, sessions, 5, driven.GenerateOptions{})
	reindexer := services.NewReindexer(ch, embedding, index, corpus, 32)
	browser := services.NewSourceBrowser(corpus)

	srv, err := NewServer(Config{
		Ask:     answerer,
		Reindex: reindexer,
		Source:  browser,
	})
	require.NoError(t, err)
	return srv, llm
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPath(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// bookDocument is three ~100-byte paragraphs; only the second mentions
// gravity.
const bookDocument = "The voyage began in spring, with calm seas and a favourable wind carrying the ship southward every day.\n" +
	"Newton showed that gravity pulls every mass toward every other mass, which explains the falling apple.\n" +
	"The crew celebrated the crossing of the equator with songs that lasted long into the warm night air.\n"

func ingestBook(t *testing.T, handler http.Handler) ingestResponse {
	t.Helper()
	rec := postJSON(t, handler, "/ingest", ingestRequest{
		ID:       "doc-1",
		CorpusID: "book-1",
		Chapter:  "Chapter 1",
		Text:     bookDocument,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ChunkIDs, 3)
	return resp
}

func TestQuery_CitesMatchingChunk(t *testing.T) {
	srv, llm := testServer(t)
	handler := srv.Handler()

	ingested := ingestBook(t, handler)

	rec := postJSON(t, handler, "/query", queryRequest{
		Question: "What did Newton say about gravity?",
		CorpusID: "book-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "generated answer", resp.Answer)
	assert.Equal(t, domain.BasedOnCorpus, resp.BasedOn)
	assert.False(t, resp.IsRefusal)
	assert.NotEmpty(t, resp.SessionID)
	require.NotEmpty(t, resp.Citations)
	assert.Equal(t, ingested.ChunkIDs[1], resp.Citations[0].ChunkID)
	assert.Equal(t, "Chapter 1", resp.Citations[0].Chapter)
	assert.Equal(t, 1, llm.calls)

	// The prompt carries only retrieved chunk text.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "gravity pulls every mass")
}

func TestQuery_EmptyCorpusRefuses(t *testing.T) {
	srv, llm := testServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/query", queryRequest{
		Question: "What is gravity?",
		CorpusID: "never-ingested",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, domain.RefusalText, resp.Answer)
	assert.True(t, resp.IsRefusal)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, 0, llm.calls)
}

func TestQuerySelected_AnswersFromSelectionOnly(t *testing.T) {
	srv, llm := testServer(t)
	handler := srv.Handler()
	ingestBook(t, handler)

	rec := postJSON(t, handler, "/query-selected", querySelectedRequest{
		Question:     "Why does X cause Y?",
		SelectedText: "X causes Y because of Z.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, domain.BasedOnSelection, resp.BasedOn)
	assert.Empty(t, resp.Citations)
	require.Equal(t, 1, llm.calls)
	assert.Contains(t, llm.prompts[0], "X causes Y because of Z.")
	assert.NotContains(t, llm.prompts[0], "gravity pulls")
}

func TestQuery_MissingQuestion(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/query", queryRequest{CorpusID: "book-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSource(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.Handler()
	ingested := ingestBook(t, handler)

	rec := getPath(handler, "/sources/"+ingested.ChunkIDs[1])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp sourceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ingested.ChunkIDs[1], resp.ChunkID)
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, "book-1", resp.CorpusID)
	assert.Contains(t, resp.Text, "gravity pulls every mass")
}

func TestGetSource_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	rec := getPath(srv.Handler(), "/sources/unknown-chunk")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession_History(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.Handler()
	ingestBook(t, handler)

	rec := postJSON(t, handler, "/query", queryRequest{
		Question: "Tell me about gravity",
		CorpusID: "book-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var first queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = postJSON(t, handler, "/query", queryRequest{
		Question:  "And what about the crew?",
		CorpusID:  "book-1",
		SessionID: first.SessionID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getPath(handler, "/sessions/"+first.SessionID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var history sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, first.SessionID, history.SessionID)
	require.Len(t, history.Exchanges, 2)
	assert.Equal(t, "Tell me about gravity", history.Exchanges[0].Question)
	assert.Equal(t, "And what about the crew?", history.Exchanges[1].Question)
}

func TestGetSession_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	rec := getPath(srv.Handler(), "/sessions/no-such-session")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReindex_Endpoint(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.Handler()

	body := reindexRequest{Documents: []reindexDocument{
		{ID: "doc-1", Chapter: "Chapter 1", Text: bookDocument},
	}}
	rec := postJSON(t, handler, "/admin/reindex/book-1", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report domain.ReindexReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "book-1", report.CorpusID)
	assert.Equal(t, 3, report.Added)

	// Second run with identical content is a no-op.
	rec = postJSON(t, handler, "/admin/reindex/book-1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 3, report.Unchanged)
}

func TestIngest_MalformedDocument(t *testing.T) {
	srv, _ := testServer(t)
	rec := postJSON(t, srv.Handler(), "/ingest", ingestRequest{CorpusID: "book-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	rec := getPath(srv.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

// failingAsk simulates backend outages for error mapping coverage.
type failingAsk struct {
	err error
}

func (f *failingAsk) Ask(context.Context, driving.AskRequest) (*driving.AskResult, error) {
	return nil, f.err
}

func (f *failingAsk) History(context.Context, string) ([]domain.Exchange, error) {
	return nil, f.err
}

type stubReindex struct{ err error }

func (s *stubReindex) Ingest(context.Context, *domain.Document) ([]string, error) {
	return nil, s.err
}

func (s *stubReindex) Reindex(context.Context, string, []domain.Document) (*domain.ReindexReport, error) {
	return nil, s.err
}

type stubSource struct{}

func (stubSource) GetChunk(context.Context, string) (*domain.Chunk, error) {
	return nil, domain.ErrNotFound
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"embedding unavailable", domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{"vector index down", domain.ErrVectorIndex, http.StatusServiceUnavailable},
		{"generation down", domain.ErrGenerationUnavailable, http.StatusBadGateway},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(Config{
				Ask:     &failingAsk{err: fmt.Errorf("wrap: %w", tt.err)},
				Reindex: &stubReindex{err: tt.err},
				Source:  stubSource{},
			})
			require.NoError(t, err)

			rec := postJSON(t, srv.Handler(), "/query", queryRequest{
				Question: "q", CorpusID: "book-1",
			})
			assert.Equal(t, tt.wantStatus, rec.Code)

			// A failed query must never read as the refusal answer.
			assert.NotContains(t, rec.Body.String(), domain.RefusalText)
		})
	}
}

func TestReindexConflictMapped(t *testing.T) {
	srv, err := NewServer(Config{
		Ask:     &failingAsk{err: domain.ErrInvalidInput},
		Reindex: &stubReindex{err: domain.ErrReindexInProgress},
		Source:  stubSource{},
	})
	require.NoError(t, err)

	rec := postJSON(t, srv.Handler(), "/admin/reindex/book-1", reindexRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
