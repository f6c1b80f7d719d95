package llm

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// EmbedderConfig represents the configuration for the embedding model.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	BatchSize int
	// CacheSize is the number of query embeddings kept in memory; zero disables caching.
	CacheSize int
}

// Embedder turns text into vectors. Query vectors are cached since users repeat questions.
type Embedder struct {
	config   EmbedderConfig
	embedder embeddings.Embedder
	cache    *lru.Cache[string, []float32]
	logger   *zap.Logger
}

func applyEmbedderDefaults(config EmbedderConfig) EmbedderConfig {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.Provider == ProviderOllama && config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.CacheSize < 0 {
		config.CacheSize = 0
	}
	return config
}

func NewEmbedderWithConfig(config EmbedderConfig, logger *zap.Logger) (*Embedder, error) {
	config = applyEmbedderDefaults(config)

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch config.Provider {
	case ProviderOllama:
		client, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model), openai.WithToken(config.APIKey)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return NewEmbedderWithClient(config, client, logger)
}

// NewEmbedderWithClient builds an Embedder on top of any langchaingo embedding client.
func NewEmbedderWithClient(config EmbedderConfig, client embeddings.EmbedderClient, logger *zap.Logger) (*Embedder, error) {
	config = applyEmbedderDefaults(config)
	if logger == nil {
		logger = zap.NewNop()
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	e := &Embedder{config: config, embedder: emb, logger: logger}
	if config.CacheSize > 0 {
		e.cache, err = lru.New[string, []float32](config.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
	}
	return e, nil
}

// EmbedQuery returns the vector for a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return v, nil
		}
	}

	v, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("failed to embed query: empty vector")
	}

	if e.cache != nil {
		e.cache.Add(text, v)
	}
	return v, nil
}

// EmbedDocuments embeds chunks in batches; vectors align with texts.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("failed to embed documents: got %d vectors for %d texts", len(vectors), len(texts))
	}
	e.logger.Debug("embedded documents", zap.Int("count", len(texts)))
	return vectors, nil
}
