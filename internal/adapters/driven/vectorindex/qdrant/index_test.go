package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/retry"
)

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("chunk-1")
	b := PointID("chunk-1")
	c := PointID("chunk-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)
}

func TestIndex_Upsert(t *testing.T) {
	var got upsertRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	x := NewIndex(Config{URL: server.URL, Collection: "books"})
	err := x.Upsert(context.Background(), []driven.VectorPoint{
		{
			ChunkID: "chunk-1",
			Vector:  []float32{0.1, 0.2},
			Payload: driven.VectorPayload{DocumentID: "doc-1", CorpusID: "book-1", Ordinal: 0, Text: "hello"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/collections/books/points", path)
	require.Len(t, got.Points, 1)
	assert.Equal(t, PointID("chunk-1"), got.Points[0].ID)
	assert.Equal(t, "chunk-1", got.Points[0].Payload.ChunkID)
	assert.Equal(t, "book-1", got.Points[0].Payload.CorpusID)
}

func TestIndex_Upsert_Empty(t *testing.T) {
	// No server: empty upsert must not touch the network.
	x := NewIndex(Config{URL: "http://127.0.0.1:1", Collection: "books"})
	require.NoError(t, x.Upsert(context.Background(), nil))
}

func TestIndex_Query(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/books/points/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp := map[string]any{
			"result": []map[string]any{
				{
					"score": 0.92,
					"payload": map[string]any{
						"chunk_id":    "chunk-7",
						"document_id": "doc-1",
						"corpus_id":   "book-1",
						"ordinal":     7,
						"text":        "matched text",
						"chapter":     "Chapter 2",
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	x := NewIndex(Config{URL: server.URL, Collection: "books"})
	hits, err := x.Query(context.Background(), []float32{1, 0}, 5, "book-1")
	require.NoError(t, err)

	assert.Equal(t, 5, got.Limit)
	assert.True(t, got.WithPayload)
	require.Len(t, got.Filter.Must, 1)
	assert.Equal(t, "corpus_id", got.Filter.Must[0].Key)
	assert.Equal(t, "book-1", got.Filter.Must[0].Match.Value)

	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-7", hits[0].ChunkID)
	assert.InDelta(t, 0.92, hits[0].Score, 1e-9)
	assert.Equal(t, "matched text", hits[0].Payload.Text)
	assert.Equal(t, "Chapter 2", hits[0].Payload.Chapter)
}

func TestIndex_Delete(t *testing.T) {
	var got deleteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/books/points/delete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	x := NewIndex(Config{URL: server.URL, Collection: "books"})
	require.NoError(t, x.Delete(context.Background(), []string{"chunk-1", "chunk-2"}))

	require.Len(t, got.Points, 2)
	assert.Equal(t, PointID("chunk-1"), got.Points[0])
	assert.Equal(t, PointID("chunk-2"), got.Points[1])
}

func TestIndex_EnsureCollection(t *testing.T) {
	var got createCollectionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/collections/books", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	x := NewIndex(Config{URL: server.URL, Collection: "books"})
	require.NoError(t, x.EnsureCollection(context.Background(), 1536))

	assert.Equal(t, 1536, got.Vectors.Size)
	assert.Equal(t, "Cosine", got.Vectors.Distance)
}

func TestIndex_Query_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	x := NewIndex(Config{URL: server.URL, Collection: "books"})
	_, err := x.Query(context.Background(), []float32{1, 0}, 5, "book-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVectorIndex)
}

func TestIndex_Query_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	x := NewIndex(Config{
		URL:        server.URL,
		Collection: "books",
		Retry:      retry.Config{MaxAttempts: 3, BaseDelay: 1},
	})
	hits, err := x.Query(context.Background(), []float32{1, 0}, 5, "book-1")
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 2, attempts)
}
