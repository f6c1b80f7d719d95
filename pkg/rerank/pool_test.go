package rerank_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/regqa/pkg/rerank"
)

func TestPoolDo(t *testing.T) {
	pool := rerank.NewPool(2, 2, nil)
	pool.Start()
	defer pool.Stop()

	scores, err := pool.Do(context.Background(), func(ctx context.Context) ([]float64, error) {
		return []float64{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, scores)
	assert.Equal(t, 2, pool.Workers())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := rerank.NewPool(2, 8, nil)
	pool.Start()
	defer pool.Stop()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Do(context.Background(), func(ctx context.Context) ([]float64, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolDoRespectsContext(t *testing.T) {
	pool := rerank.NewPool(1, 1, nil)
	pool.Start()
	defer pool.Stop()

	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _ = pool.Do(context.Background(), func(ctx context.Context) ([]float64, error) {
			<-release
			return nil, nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Do(ctx, func(ctx context.Context) ([]float64, error) {
		<-release
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolRecoversPanics(t *testing.T) {
	pool := rerank.NewPool(1, 1, nil)
	pool.Start()
	defer pool.Stop()

	_, err := pool.Do(context.Background(), func(ctx context.Context) ([]float64, error) {
		panic("boom")
	})
	assert.Error(t, err)

	scores, err := pool.Do(context.Background(), func(ctx context.Context) ([]float64, error) {
		return []float64{3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, scores)
}

func TestPoolNotStarted(t *testing.T) {
	pool := rerank.NewPool(1, 1, nil)
	_, err := pool.Do(context.Background(), func(ctx context.Context) ([]float64, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, rerank.ErrPoolClosed)
}
