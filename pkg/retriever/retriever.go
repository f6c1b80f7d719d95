// Package retriever serves similarity search over the corpus index once it has been loaded.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/internal/types"
	"go.uber.org/zap"
)

var (
	// ErrNotInitialized is returned by Retrieve until Initialize has succeeded.
	ErrNotInitialized = errors.New("retriever not initialized")
	ErrInvalidK       = errors.New("k must be at least 1")
)

// Retriever holds the loaded index. It is safe for concurrent use.
type Retriever struct {
	open   types.IndexOpener
	logger *zap.Logger

	initMu sync.Mutex
	mu     sync.RWMutex
	index  types.VectorIndex
}

func New(open types.IndexOpener, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{open: open, logger: logger}
}

// Initialize loads the index from location. Once it has succeeded, further calls do nothing.
func (r *Retriever) Initialize(ctx context.Context, location string) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	if r.Ready() {
		r.logger.Debug("retriever already initialized")
		return nil
	}
	if r.open == nil {
		return fmt.Errorf("failed to initialize retriever: no index opener")
	}

	index, err := r.open(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to open index at %q: %w", location, err)
	}

	r.mu.Lock()
	r.index = index
	r.mu.Unlock()

	r.logger.Info("retriever initialized", zap.String("location", location))
	return nil
}

func (r *Retriever) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index != nil
}

// Retrieve returns at most k passages in index order. No match is an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}

	r.mu.RLock()
	index := r.index
	r.mu.RUnlock()
	if index == nil {
		return nil, ErrNotInitialized
	}

	passages, err := index.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	if len(passages) > k {
		passages = passages[:k]
	}
	if passages == nil {
		passages = []models.Passage{}
	}

	r.logger.Debug("retrieved passages", zap.Int("k", k), zap.Int("count", len(passages)))
	return passages, nil
}

// Close releases the index. Retrieve reports ErrNotInitialized afterwards.
func (r *Retriever) Close() {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	r.mu.Lock()
	index := r.index
	r.index = nil
	r.mu.Unlock()

	if index != nil {
		index.Close()
	}
}
