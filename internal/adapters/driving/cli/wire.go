package cli

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/bookwise/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/bookwise/internal/adapters/driven/embedding/openai"
	openaillm "github.com/custodia-labs/bookwise/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/bookwise/internal/adapters/driven/storage/sqlite"
	vectormem "github.com/custodia-labs/bookwise/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/bookwise/internal/adapters/driven/vectorindex/qdrant"
	"github.com/custodia-labs/bookwise/internal/chunker"
	"github.com/custodia-labs/bookwise/internal/config"
	"github.com/custodia-labs/bookwise/internal/core/ports/driven"
	"github.com/custodia-labs/bookwise/internal/core/services"
	"github.com/custodia-labs/bookwise/internal/logger"
)

// stack bundles the wired services and their owned resources.
type stack struct {
	answerer  *services.Answerer
	reindexer *services.Reindexer
	browser   *services.SourceBrowser

	store     *sqlite.Store
	embedding driven.EmbeddingService
	llm       driven.LLMService
	index     driven.VectorIndex
}

// loadConfig loads the config from the --config flag or the default path.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

// buildStack wires every service from configuration.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	embedding, err := buildEmbedding(cfg)
	if err != nil {
		return nil, err
	}

	llm, err := openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("wiring llm: %w", err)
	}

	index, err := buildVectorIndex(ctx, cfg, embedding.Dimensions())
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("wiring storage: %w", err)
	}

	ch := chunker.New(
		chunker.WithChunkSize(cfg.Chunker.Size),
		chunker.WithOverlap(cfg.Chunker.Overlap),
		chunker.WithMinChunk(cfg.Chunker.MinChunk),
	)

	retriever := services.NewRetriever(embedding, index, cfg.Retrieval.RelevanceFloor)
	answerer := services.NewAnswerer(retriever, llm, store.SessionStore(), cfg.Retrieval.TopK,
		driven.GenerateOptions{
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	reindexer := services.NewReindexer(ch, embedding, index, store.CorpusStore(), cfg.Reindex.EmbedBatchSize)
	browser := services.NewSourceBrowser(store.CorpusStore())

	return &stack{
		answerer:  answerer,
		reindexer: reindexer,
		browser:   browser,
		store:     store,
		embedding: embedding,
		llm:       llm,
		index:     index,
	}, nil
}

func buildEmbedding(cfg *config.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		}), nil
	case "openai":
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("wiring embedding: %w", err)
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func buildVectorIndex(ctx context.Context, cfg *config.Config, dimensions int) (driven.VectorIndex, error) {
	if cfg.Qdrant.URL == "" {
		logger.Info("no qdrant url configured, using in-memory vector index")
		return vectormem.New(), nil
	}

	index := qdrant.NewIndex(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
	})

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := index.EnsureCollection(ensureCtx, dimensions); err != nil {
		return nil, fmt.Errorf("wiring vector index: %w", err)
	}
	return index, nil
}

// Close releases every resource the stack owns.
func (s *stack) Close() {
	if err := s.store.Close(); err != nil {
		logger.Warn("closing store: %v", err)
	}
	if err := s.index.Close(); err != nil {
		logger.Warn("closing vector index: %v", err)
	}
	if err := s.embedding.Close(); err != nil {
		logger.Warn("closing embedding service: %v", err)
	}
	if err := s.llm.Close(); err != nil {
		logger.Warn("closing llm service: %v", err)
	}
}
