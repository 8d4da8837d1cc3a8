// Package qdrant provides a VectorIndex adapter backed by the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/bookwise/internal/core/domain"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/retry"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultURL        = "http://localhost:6333"
	DefaultCollection = "bookwise_chunks"
	DefaultTimeout    = 15 * time.Second
)

// pointNamespace is the UUID namespace for deriving Qdrant point IDs.
// Qdrant only accepts UUIDs or unsigned integers as point IDs, so the
// chunk ID is mapped through a name-based UUID. The mapping is
// deterministic: the same chunk always yields the same point.
var pointNamespace = uuid.MustParse("9f2c1b4e-5a7d-4c3e-8f60-0d9a2b7c4e11")

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the Qdrant base URL (default: http://localhost:6333).
	URL string

	// APIKey is the optional Qdrant API key.
	APIKey string

	// Collection is the collection name (default: bookwise_chunks).
	Collection string

	// Timeout is the request timeout (default: 15s).
	Timeout time.Duration

	// Retry controls request retries. Zero value uses retry defaults.
	Retry retry.Config
}

// Index is a REST client for one Qdrant collection using cosine distance.
type Index struct {
	client     *http.Client
	url        string
	apiKey     string
	collection string
	retry      retry.Config
}

// pointPayload is the payload stored with each point. It extends the
// shared payload with the chunk ID, which cannot serve as the point ID
// directly.
type pointPayload struct {
	ChunkID string `json:"chunk_id"`
	driven.VectorPayload
}

type upsertPoint struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload pointPayload `json:"payload"`
}

type upsertRequest struct {
	Points []upsertPoint `json:"points"`
}

type searchRequest struct {
	Vector      []float32    `json:"vector"`
	Limit       int          `json:"limit"`
	WithPayload bool         `json:"with_payload"`
	Filter      searchFilter `json:"filter"`
}

type searchFilter struct {
	Must []fieldMatch `json:"must"`
}

type fieldMatch struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type matchValue struct {
	Value string `json:"value"`
}

type searchResponse struct {
	Result []struct {
		Score   float64      `json:"score"`
		Payload pointPayload `json:"payload"`
	} `json:"result"`
}

type deleteRequest struct {
	Points []string `json:"points"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// NewIndex creates a new Qdrant index client.
func NewIndex(cfg Config) *Index {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		retry:      cfg.Retry,
	}
}

// PointID derives the deterministic Qdrant point ID for a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist. Qdrant treats re-creating a collection with the same schema
// as a no-op.
func (x *Index) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: invalid vector dimensions %d", domain.ErrVectorIndex, dimensions)
	}
	body := createCollectionRequest{
		Vectors: vectorParams{Size: dimensions, Distance: "Cosine"},
	}
	path := fmt.Sprintf("/collections/%s", x.collection)
	if err := x.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("%w: create collection: %v", domain.ErrVectorIndex, err)
	}
	return nil
}

// Upsert inserts or overwrites vectors for the given points.
func (x *Index) Upsert(ctx context.Context, points []driven.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	req := upsertRequest{Points: make([]upsertPoint, len(points))}
	for i, p := range points {
		req.Points[i] = upsertPoint{
			ID:     PointID(p.ChunkID),
			Vector: p.Vector,
			Payload: pointPayload{
				ChunkID:       p.ChunkID,
				VectorPayload: p.Payload,
			},
		}
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", x.collection)
	if err := x.do(ctx, http.MethodPut, path, req, nil); err != nil {
		return fmt.Errorf("%w: upsert %d points: %v", domain.ErrVectorIndex, len(points), err)
	}
	return nil
}

// Query finds the topK nearest neighbours within one corpus.
func (x *Index) Query(ctx context.Context, vector []float32, topK int, corpusID string) ([]driven.VectorHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: invalid topK %d", domain.ErrVectorIndex, topK)
	}
	req := searchRequest{
		Vector:      vector,
		Limit:       topK,
		WithPayload: true,
		Filter: searchFilter{
			Must: []fieldMatch{
				{Key: "corpus_id", Match: matchValue{Value: corpusID}},
			},
		},
	}
	var resp searchResponse
	path := fmt.Sprintf("/collections/%s/points/search", x.collection)
	if err := x.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrVectorIndex, err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, driven.VectorHit{
			ChunkID: r.Payload.ChunkID,
			Score:   r.Score,
			Payload: r.Payload.VectorPayload,
		})
	}
	return hits, nil
}

// Delete removes vectors for the given chunk IDs.
func (x *Index) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	req := deleteRequest{Points: make([]string, len(chunkIDs))}
	for i, id := range chunkIDs {
		req.Points[i] = PointID(id)
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", x.collection)
	if err := x.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("%w: delete %d points: %v", domain.ErrVectorIndex, len(chunkIDs), err)
	}
	return nil
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

// do performs one JSON request with retries on transient failures.
func (x *Index) do(ctx context.Context, method, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(ctx, x.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, x.url+path, bytes.NewReader(jsonBody))
		if err != nil {
			return &retry.Permanent{Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("Content-Type", "application/json")
		if x.apiKey != "" {
			req.Header.Set("api-key", x.apiKey)
		}

		resp, err := x.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			statusErr := fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
			if retry.RetryableStatus(resp.StatusCode) {
				return statusErr
			}
			return &retry.Permanent{Err: statusErr}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return &retry.Permanent{Err: fmt.Errorf("decode response: %w", err)}
			}
		}
		return nil
	})
}
