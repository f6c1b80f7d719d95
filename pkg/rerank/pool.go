package rerank

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned for jobs submitted to a stopped pool.
var ErrPoolClosed = errors.New("worker pool closed")

type job struct {
	ctx    context.Context
	fn     func(ctx context.Context) ([]float64, error)
	result chan<- jobResult
}

type jobResult struct {
	scores []float64
	err    error
}

// Pool runs scoring jobs on a fixed set of workers fed by a bounded queue.
type Pool struct {
	workers int
	jobs    chan job
	quit    chan struct{}
	logger  *zap.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan job, queueSize),
		quit:    make(chan struct{}),
		logger:  logger,
	}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Debug("rerank pool started", zap.Int("workers", p.workers))
}

// Stop waits for in-flight jobs and shuts the workers down. Queued jobs fail with ErrPoolClosed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()

	for {
		select {
		case j := <-p.jobs:
			j.result <- jobResult{err: ErrPoolClosed}
		default:
			p.logger.Debug("rerank pool stopped")
			return
		}
	}
}

// Do submits fn and blocks until a worker has run it or ctx is done.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) ([]float64, error)) ([]float64, error) {
	result := make(chan jobResult, 1)

	p.mu.RLock()
	if p.stopped || !p.started {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	select {
	case p.jobs <- job{ctx: ctx, fn: fn, result: result}:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, fmt.Errorf("rerank job not queued: %w", ctx.Err())
	}

	select {
	case r := <-result:
		return r.scores, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("rerank job abandoned: %w", ctx.Err())
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			if err := j.ctx.Err(); err != nil {
				j.result <- jobResult{err: err}
				continue
			}
			j.result <- p.run(id, j)
		}
	}
}

func (p *Pool) run(id int, j job) (r jobResult) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("rerank job panicked", zap.Int("worker", id), zap.Any("panic", rec))
			r = jobResult{err: fmt.Errorf("rerank job panicked: %v", rec)}
		}
	}()
	scores, err := j.fn(j.ctx)
	return jobResult{scores: scores, err: err}
}
