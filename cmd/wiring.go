package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xhad/regqa/pkg/answer"
	"github.com/xhad/regqa/pkg/history"
	"github.com/xhad/regqa/pkg/llm"
	"github.com/xhad/regqa/pkg/pipeline"
	"github.com/xhad/regqa/pkg/rerank"
	"github.com/xhad/regqa/pkg/retriever"
	"github.com/xhad/regqa/pkg/retry"
	"github.com/xhad/regqa/pkg/rewrite"
	"github.com/xhad/regqa/pkg/store"
	"go.uber.org/zap"
)

// app holds the long-lived services shared by serve and chat.
type app struct {
	pipeline  *pipeline.Pipeline
	retriever *retriever.Retriever
	pool      *rerank.Pool
	registry  *prometheus.Registry
}

func newEmbedder() (*llm.Embedder, error) {
	apiKey := ""
	if cfg.Embedder.Provider == llm.ProviderOpenAI {
		apiKey = cfg.LLM.APIKey
	}
	return llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    apiKey,
		BatchSize: cfg.Embedder.BatchSize,
		CacheSize: cfg.Embedder.CacheSize,
	}, logger.Named("embedder"))
}

func vectorStoreConfig() store.VectorStoreConfig {
	return store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
	}
}

// newApp builds the pipeline. A missing index is not fatal: questions get the
// not-ready answer until the retriever initializes.
func newApp(ctx context.Context) (*app, error) {
	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	}, logger.Named("llm"))
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder()
	if err != nil {
		return nil, err
	}

	r := retriever.New(store.Opener(vectorStoreConfig(), embedder, logger.Named("store")), logger.Named("retriever"))
	if err := r.Initialize(ctx, ""); err != nil {
		logger.Warn("index not available yet", zap.Error(err))
	}

	a := &app{retriever: r, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var reranker pipeline.Reranker
	if cfg.Reranker.Enabled {
		a.pool = rerank.NewPool(cfg.Reranker.Workers, cfg.Reranker.QueueSize, logger.Named("rerank"))
		a.pool.Start()
		encoder := rerank.NewHTTPCrossEncoder(cfg.Reranker.BaseURL, cfg.Reranker.Model, cfg.Reranker.Timeout, nil, logger.Named("rerank"))
		reranker = rerank.New(encoder, a.pool, logger.Named("rerank"))
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Config: pipeline.Config{
			MaxRetrieve:   cfg.Retrieval.MaxRetrieve,
			RerankEnabled: cfg.Reranker.Enabled,
			RerankTopK:    cfg.Reranker.TopK,
			HistoryTurns:  cfg.History.MaxTurns,
		},
		Rewriter: rewrite.NewWithConfig(rewrite.RewriterConfig{
			MinHistoryChars: cfg.Rewrite.MinHistoryChars,
			Temperature:     cfg.Rewrite.Temperature,
			MaxTokens:       cfg.Rewrite.MaxTokens,
		}, chatEngine, logger.Named("rewrite")),
		Retriever: r,
		Reranker:  reranker,
		Generator: answer.NewWithConfig(answer.GeneratorConfig{
			Temperature:     cfg.Generator.Temperature,
			MaxTokens:       cfg.Generator.MaxTokens,
			MaxPassageChars: cfg.Generator.MaxPassageChars,
		}, chatEngine, logger.Named("answer")),
		History:   history.NewWithConfig(history.StoreConfig{TTL: cfg.History.TTL}, logger.Named("history")),
		Retry:     retry.NewWithConfig(cfg.Retry, pipeline.Retryable, logger.Named("retry")),
		Metrics:   pipeline.NewMetrics(a.registry),
		Logger:    logger.Named("pipeline"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// watchIndex retries initialization until the index shows up or ctx ends.
func (a *app) watchIndex(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for !a.retriever.Ready() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.retriever.Initialize(ctx, ""); err != nil {
				logger.Debug("index still not available", zap.Error(err))
			}
		}
	}
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	a.retriever.Close()
}
