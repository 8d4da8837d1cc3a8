// Package config loads the application configuration from a TOML file,
// applying defaults and environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultListenAddr      = ":8080"
	DefaultTopK            = 5
	DefaultRelevanceFloor  = 0.0
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultMinChunk        = 200
	DefaultEmbedBatchSize  = 32
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address (default: :8080).
	Addr string `toml:"addr"`

	// ShutdownTimeoutSecs bounds graceful shutdown (default: 10).
	ShutdownTimeoutSecs int `toml:"shutdown_timeout_secs"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama" (default: openai).
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's default API URL.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model name. Empty uses the provider default.
	Model string `toml:"model"`

	// APIKey is the provider API key. The OPENAI_API_KEY environment
	// variable takes precedence so keys stay out of config files.
	APIKey string `toml:"api_key"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	// BaseURL overrides the default OpenAI API URL.
	BaseURL string `toml:"base_url"`

	// Model is the chat model name. Empty uses the provider default.
	Model string `toml:"model"`

	// APIKey is the provider API key. The OPENAI_API_KEY environment
	// variable takes precedence.
	APIKey string `toml:"api_key"`

	// MaxTokens caps generated answer length. Zero means provider default.
	MaxTokens int `toml:"max_tokens"`

	// Temperature controls sampling. Zero means provider default.
	Temperature float64 `toml:"temperature"`
}

// QdrantConfig contains connection details for the Qdrant vector index.
// An empty URL selects the in-memory index instead.
type QdrantConfig struct {
	URL        string `toml:"url"`
	APIKey     string `toml:"api_key"`
	Collection string `toml:"collection"`
}

// StorageConfig configures the metadata store.
type StorageConfig struct {
	// DataDir is the SQLite data directory (default: ~/.bookwise/data).
	DataDir string `toml:"data_dir"`
}

// ChunkerConfig configures document splitting.
type ChunkerConfig struct {
	Size     int `toml:"size"`
	Overlap  int `toml:"overlap"`
	MinChunk int `toml:"min_chunk"`
}

// RetrievalConfig configures the query path.
type RetrievalConfig struct {
	// TopK is how many chunks to retrieve per query (default: 5).
	TopK int `toml:"top_k"`

	// RelevanceFloor drops hits scoring below it. The default of zero
	// still excludes anti-correlated hits (negative cosine similarity);
	// the floor is never negative.
	RelevanceFloor float64 `toml:"relevance_floor"`
}

// ReindexConfig configures the reindex manager.
type ReindexConfig struct {
	// EmbedBatchSize is how many chunks are embedded per provider call
	// (default: 32).
	EmbedBatchSize int `toml:"embed_batch_size"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Qdrant    QdrantConfig    `toml:"qdrant"`
	Storage   StorageConfig   `toml:"storage"`
	Chunker   ChunkerConfig   `toml:"chunker"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Reindex   ReindexConfig   `toml:"reindex"`
}

// DefaultPath returns the default config file location, ~/.bookwise/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".bookwise", "config.toml"), nil
}

// Load reads the config from path. A missing file yields defaults, so the
// service runs with zero configuration when the environment provides keys.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultListenAddr
	}
	if c.Server.ShutdownTimeoutSecs <= 0 {
		c.Server.ShutdownTimeoutSecs = int(DefaultShutdownTimeout / time.Second)
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Chunker.Size <= 0 {
		c.Chunker.Size = DefaultChunkSize
	}
	if c.Chunker.Overlap < 0 {
		c.Chunker.Overlap = DefaultChunkOverlap
	}
	if c.Chunker.MinChunk <= 0 {
		c.Chunker.MinChunk = DefaultMinChunk
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = DefaultTopK
	}
	if c.Retrieval.RelevanceFloor < 0 {
		c.Retrieval.RelevanceFloor = DefaultRelevanceFloor
	}
	if c.Reindex.EmbedBatchSize <= 0 {
		c.Reindex.EmbedBatchSize = DefaultEmbedBatchSize
	}
}

// applyEnv overrides secrets from the environment. Environment variables
// always win over file values.
func (c *Config) applyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Embedding.Provider == "openai" {
			c.Embedding.APIKey = key
		}
		c.LLM.APIKey = key
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		c.Qdrant.APIKey = key
	}
}

func (c *Config) validate() error {
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("config: chunk overlap %d must be smaller than chunk size %d",
			c.Chunker.Overlap, c.Chunker.Size)
	}
	if c.Chunker.MinChunk > c.Chunker.Size {
		return fmt.Errorf("config: min chunk %d must not exceed chunk size %d",
			c.Chunker.MinChunk, c.Chunker.Size)
	}
	return nil
}

// ShutdownTimeout returns the graceful shutdown bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSecs) * time.Second
}
