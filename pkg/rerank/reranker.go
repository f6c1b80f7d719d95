// Package rerank reorders retrieved passages by cross-encoder relevance.
package rerank

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/internal/types"
	"go.uber.org/zap"
)

// Reranker scores passages against the query and keeps the best topK.
type Reranker struct {
	encoder types.CrossEncoder
	pool    *Pool
	logger  *zap.Logger
}

// New builds a Reranker that submits scoring work to pool. The pool must be started by the caller.
func New(encoder types.CrossEncoder, pool *Pool, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{encoder: encoder, pool: pool, logger: logger}
}

// Rerank returns min(topK, len(passages)) passages ordered by descending score.
// Equal scores keep their retrieval order.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []models.Passage, topK int) ([]models.RankedPassage, error) {
	if len(passages) == 0 || topK <= 0 {
		return []models.RankedPassage{}, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}

	start := time.Now()
	scores, err := r.pool.Do(ctx, func(ctx context.Context) ([]float64, error) {
		return r.encoder.Score(ctx, query, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score passages: %w", err)
	}
	if len(scores) != len(passages) {
		return nil, fmt.Errorf("cross-encoder returned %d scores for %d passages", len(scores), len(passages))
	}

	ranked := make([]models.RankedPassage, len(passages))
	for i, p := range passages {
		ranked[i] = models.RankedPassage{Passage: p, RerankScore: scores[i], Position: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})

	if topK < len(ranked) {
		ranked = ranked[:topK]
	}

	r.logger.Debug("passages reranked",
		zap.Int("in", len(passages)),
		zap.Int("out", len(ranked)),
		zap.Duration("took", time.Since(start)))
	return ranked, nil
}
