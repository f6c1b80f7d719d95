// Package pipeline orchestrates rewrite, retrieval, reranking and answer generation for one question.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/pkg/lang"
	"github.com/xhad/regqa/pkg/retriever"
	"github.com/xhad/regqa/pkg/retry"
	"go.uber.org/zap"
)

// Rewriter produces the standalone search query. It does not fail.
type Rewriter interface {
	Rewrite(ctx context.Context, question, history string, lang models.Language) models.RewrittenQuery
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, passages []models.Passage, topK int) ([]models.RankedPassage, error)
}

type Generator interface {
	Generate(ctx context.Context, question string, passages []models.Passage, lang models.Language) (*models.PipelineResult, error)
}

// History is the per-session conversation memory.
type History interface {
	Append(sessionID, question, answer string)
	Get(sessionID string, maxTurns int) string
	Clear(sessionID string)
}

// Config represents the orchestration settings.
type Config struct {
	MaxRetrieve   int
	RerankEnabled bool
	RerankTopK    int
	HistoryTurns  int
}

// Deps are the collaborators of a Pipeline. Reranker may be nil when reranking is disabled.
type Deps struct {
	Config    Config
	Rewriter  Rewriter
	Retriever Retriever
	Reranker  Reranker
	Generator Generator
	History   History
	Retry     *retry.Policy
	Metrics   *Metrics
	Logger    *zap.Logger
}

// Pipeline answers questions. It is safe for concurrent use.
type Pipeline struct {
	config    Config
	rewriter  Rewriter
	retriever Retriever
	reranker  Reranker
	generator Generator
	history   History
	retry     *retry.Policy
	metrics   *Metrics
	logger    *zap.Logger
}

func New(deps Deps) (*Pipeline, error) {
	if deps.Rewriter == nil || deps.Retriever == nil || deps.Generator == nil || deps.History == nil {
		return nil, fmt.Errorf("pipeline requires a rewriter, retriever, generator and history store")
	}

	config := deps.Config
	if config.MaxRetrieve <= 0 {
		config.MaxRetrieve = 6
	}
	if config.RerankTopK <= 0 {
		config.RerankTopK = 5
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = 5
	}
	if config.RerankEnabled && deps.Reranker == nil {
		return nil, fmt.Errorf("reranking is enabled but no reranker was provided")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	policy := deps.Retry
	if policy == nil {
		policy = retry.NewWithConfig(retry.DefaultPolicyConfig(), Retryable, logger)
	}

	return &Pipeline{
		config:    config,
		rewriter:  deps.Rewriter,
		retriever: deps.Retriever,
		reranker:  deps.Reranker,
		generator: deps.Generator,
		history:   deps.History,
		retry:     policy,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Retryable reports whether a failed attempt may be run again.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, retriever.ErrNotInitialized),
		errors.Is(err, retriever.ErrInvalidK):
		return false
	}
	return true
}

// Process runs one question through the pipeline. Unavailable index and empty
// retrieval produce canned answers instead of errors.
func (p *Pipeline) Process(ctx context.Context, q models.Question) (*models.PipelineResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		p.metrics.Requests.WithLabelValues("invalid").Inc()
		return nil, models.ErrEmptyQuestion
	}

	logger := p.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("session_id", q.SessionID))
	language := lang.Resolve(q.Language, q.Text)
	start := time.Now()

	logger.Info("processing question", zap.String("language", string(language)))

	history := ""
	if q.SessionID != "" {
		history = p.history.Get(q.SessionID, p.config.HistoryTurns)
	}

	var result *models.PipelineResult
	err := p.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			p.metrics.Retries.Inc()
		}
		r, err := p.attempt(ctx, logger, q, history, language)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		p.metrics.Requests.WithLabelValues("error").Inc()
		logger.Error("pipeline failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return nil, err
	}

	if result.Outcome == models.OutcomeAnswered || result.Outcome == models.OutcomeFallback {
		p.history.Append(q.SessionID, q.Text, result.Answer)
	}

	p.metrics.Requests.WithLabelValues(string(result.Outcome)).Inc()
	logger.Info("question answered",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("sources", len(result.Sources)),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// ClearSession forgets the conversation of a session.
func (p *Pipeline) ClearSession(sessionID string) {
	p.history.Clear(sessionID)
}

func canned(answer string, language models.Language, outcome models.Outcome) *models.PipelineResult {
	return &models.PipelineResult{
		Answer:   answer,
		Sources:  []models.SourceCitation{},
		Language: language,
		Outcome:  outcome,
	}
}

// attempt is one pass from Rewrite through Generate.
func (p *Pipeline) attempt(ctx context.Context, logger *zap.Logger, q models.Question, history string, language models.Language) (*models.PipelineResult, error) {
	stageStart := time.Now()
	rewritten := p.rewriter.Rewrite(ctx, q.Text, history, language)
	p.metrics.observeStage("rewrite", stageStart)
	logger.Debug("query rewritten",
		zap.String("query", rewritten.Text),
		zap.Bool("fell_back", rewritten.FellBack))

	stageStart = time.Now()
	passages, err := p.retriever.Retrieve(ctx, rewritten.Text, p.config.MaxRetrieve)
	p.metrics.observeStage("retrieve", stageStart)
	if errors.Is(err, retriever.ErrNotInitialized) {
		logger.Warn("retriever not initialized")
		return canned(NotReadyMessage(language), language, models.OutcomeNotReady), nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(passages) == 0 {
		logger.Info("no passages retrieved")
		return canned(NoMatchMessage(language), language, models.OutcomeNoMatch), nil
	}
	logger.Debug("passages retrieved", zap.Int("count", len(passages)))

	if p.config.RerankEnabled {
		stageStart = time.Now()
		ranked, err := p.reranker.Rerank(ctx, rewritten.Text, passages, p.config.RerankTopK)
		p.metrics.observeStage("rerank", stageStart)
		if err != nil {
			p.metrics.RerankFailures.Inc()
			logger.Warn("reranker failed, keeping retrieval order", zap.Error(err))
		} else {
			passages = models.Passages(ranked)
		}
	}

	stageStart = time.Now()
	result, err := p.generator.Generate(ctx, rewritten.Text, passages, language)
	p.metrics.observeStage("generate", stageStart)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator result: %w", err)
	}
	return result, nil
}
