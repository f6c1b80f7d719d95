// Package retry runs a unit of work under a bounded exponential backoff schedule.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// PolicyConfig describes the retry schedule.
type PolicyConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	MinDelay    time.Duration `yaml:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      float64       `yaml:"jitter"`
}

// Policy retries transient failures. Errors rejected by the Retryable predicate are returned as is.
type Policy struct {
	config    PolicyConfig
	retryable func(error) bool
	logger    *zap.Logger

	// OnRetry is called before each wait, with the attempt that failed (1-based).
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicyConfig returns 3 attempts with delays growing from 1s to 4s.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MaxAttempts: 3,
		MinDelay:    time.Second,
		MaxDelay:    4 * time.Second,
		Multiplier:  2,
	}
}

func NewWithConfig(config PolicyConfig, retryable func(error) bool, logger *zap.Logger) *Policy {
	defaults := DefaultPolicyConfig()
	if config.MaxAttempts < 1 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.MinDelay <= 0 {
		config.MinDelay = defaults.MinDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.MaxDelay < config.MinDelay {
		config.MaxDelay = config.MinDelay
	}
	if config.Multiplier < 1 {
		config.Multiplier = defaults.Multiplier
	}
	if config.Jitter < 0 || config.Jitter >= 1 {
		config.Jitter = 0
	}
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{config: config, retryable: retryable, logger: logger}
}

func (p *Policy) Config() PolicyConfig {
	return p.config
}

func (p *Policy) schedule(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.config.MinDelay
	eb.MaxInterval = p.config.MaxDelay
	eb.Multiplier = p.config.Multiplier
	eb.RandomizationFactor = p.config.Jitter
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.config.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, the context ends,
// or the attempts run out. The attempt number passed to op is 1-based.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempt := 0
	var last error

	operation := func() error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		last = err
		if !p.retryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		p.logger.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.config.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err))
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}

	err := backoff.RetryNotify(operation, p.schedule(ctx), notify)
	if err == nil {
		return nil
	}
	if last == nil || !p.retryable(last) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(last, ctxErr) {
			return last
		}
		return fmt.Errorf("%w: %w", ctxErr, last)
	}
	// A per-call deadline while ctx is still alive counts as an ordinary failed attempt.
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, last)
}
