package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driving"
	"github.com/custodia-labs/bookwise/internal/logger"
)

// unavailableText is returned when answer generation fails after a
// successful retrieval. It is deliberately distinct from the refusal, which
// is an answer, not an error.
const unavailableText = "Answer generation is temporarily unavailable. Please retry."

// ingestRequest is the POST /ingest payload.
type ingestRequest struct {
	ID       string `json:"id"`
	CorpusID string `json:"corpus_id"`
	Chapter  string `json:"chapter,omitempty"`
	Section  string `json:"section,omitempty"`
	Text     string `json:"text"`
}

// ingestResponse reports the chunk IDs produced for a document.
type ingestResponse struct {
	DocumentID string   `json:"document_id"`
	ChunkIDs   []string `json:"chunk_ids"`
}

// queryRequest is the POST /query payload.
type queryRequest struct {
	Question  string `json:"question"`
	CorpusID  string `json:"corpus_id"`
	SessionID string `json:"session_id,omitempty"`
}

// querySelectedRequest is the POST /query-selected payload.
type querySelectedRequest struct {
	Question     string `json:"question"`
	SelectedText string `json:"selected_text"`
	SessionID    string `json:"session_id,omitempty"`
}

// citationDTO is one grounding reference in a query response.
type citationDTO struct {
	ChunkID string `json:"chunk_id"`
	Chapter string `json:"chapter,omitempty"`
	Section string `json:"section,omitempty"`
}

// queryResponse is the answer payload shared by both query endpoints.
type queryResponse struct {
	QueryID   string        `json:"query_id"`
	AnswerID  string        `json:"answer_id"`
	SessionID string        `json:"session_id"`
	Answer    string        `json:"answer"`
	Citations []citationDTO `json:"citations"`
	BasedOn   string        `json:"based_on"`
	IsRefusal bool          `json:"is_refusal"`
}

// sourceResponse is the GET /sources/{chunk_id} payload.
type sourceResponse struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	CorpusID   string `json:"corpus_id"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	Chapter    string `json:"chapter,omitempty"`
	Section    string `json:"section,omitempty"`
}

// exchangeDTO is one query/answer pair in a session history.
type exchangeDTO struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	BasedOn   string    `json:"based_on"`
	IsRefusal bool      `json:"is_refusal"`
	AskedAt   time.Time `json:"asked_at"`
}

// sessionResponse is the GET /sessions/{session_id} payload.
type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Exchanges []exchangeDTO `json:"exchanges"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	doc := &domain.Document{
		ID:       req.ID,
		CorpusID: req.CorpusID,
		Chapter:  req.Chapter,
		Section:  req.Section,
		Text:     req.Text,
	}
	chunkIDs, err := s.reindex.Ingest(r.Context(), doc)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		DocumentID: doc.ID,
		ChunkIDs:   chunkIDs,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.answer(w, r, driving.AskRequest{
		QueryText: req.Question,
		Mode:      domain.ModeCorpus,
		CorpusID:  req.CorpusID,
		SessionID: req.SessionID,
	})
}

func (s *Server) handleQuerySelected(w http.ResponseWriter, r *http.Request) {
	var req querySelectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.answer(w, r, driving.AskRequest{
		QueryText:    req.Question,
		Mode:         domain.ModeSelection,
		SelectedText: req.SelectedText,
		SessionID:    req.SessionID,
	})
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, req driving.AskRequest) {
	result, err := s.ask.Ask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	citations := make([]citationDTO, 0, len(result.Citations))
	for _, c := range result.Citations {
		citations = append(citations, citationDTO{
			ChunkID: c.ChunkID,
			Chapter: c.Chapter,
			Section: c.Section,
		})
	}

	writeJSON(w, http.StatusOK, queryResponse{
		QueryID:   result.QueryID,
		AnswerID:  result.AnswerID,
		SessionID: result.SessionID,
		Answer:    result.Answer,
		Citations: citations,
		BasedOn:   result.BasedOn,
		IsRefusal: result.IsRefusal,
	})
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	chunkID := r.PathValue("chunk_id")
	chunk, err := s.source.GetChunk(r.Context(), chunkID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sourceResponse{
		ChunkID:    chunk.ID,
		DocumentID: chunk.DocumentID,
		CorpusID:   chunk.CorpusID,
		Ordinal:    chunk.Ordinal,
		Text:       chunk.Text,
		Chapter:    chunk.Chapter,
		Section:    chunk.Section,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	history, err := s.ask.History(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	exchanges := make([]exchangeDTO, 0, len(history))
	for _, ex := range history {
		exchanges = append(exchanges, exchangeDTO{
			Question:  ex.Query.Text,
			Answer:    ex.Answer.Text,
			BasedOn:   ex.Answer.BasedOn,
			IsRefusal: ex.Answer.IsRefusal,
			AskedAt:   ex.Query.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sessionID,
		Exchanges: exchanges,
	})
}

// reindexDocument is one document in the POST /admin/reindex payload.
type reindexDocument struct {
	ID      string `json:"id"`
	Chapter string `json:"chapter,omitempty"`
	Section string `json:"section,omitempty"`
	Text    string `json:"text"`
}

// reindexRequest is the POST /admin/reindex/{corpus_id} payload.
type reindexRequest struct {
	Documents []reindexDocument `json:"documents"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	corpusID := r.PathValue("corpus_id")

	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	docs := make([]domain.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = domain.Document{
			ID:       d.ID,
			CorpusID: corpusID,
			Chapter:  d.Chapter,
			Section:  d.Section,
			Text:     d.Text,
		}
	}

	report, err := s.reindex.Reindex(r.Context(), corpusID, docs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrMalformedDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrReindexInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrVectorIndex):
		logger.Error("httpapi: retrieval backend: %v", err)
		writeError(w, http.StatusServiceUnavailable, "retrieval is temporarily unavailable")
	case errors.Is(err, domain.ErrGenerationUnavailable):
		logger.Error("httpapi: generation backend: %v", err)
		writeError(w, http.StatusBadGateway, unavailableText)
	default:
		logger.Error("httpapi: internal: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("httpapi: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
