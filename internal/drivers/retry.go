package drivers

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy defines how failed store operations are retried:
// exponential backoff with a small fixed attempt cap.
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
	logger       *zap.Logger
}

// RetryOption configures retry behavior.
type RetryOption func(*RetryPolicy)

// WithMaxAttempts sets maximum retry attempts.
func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) {
		p.maxAttempts = n
	}
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.initialDelay = d
	}
}

// WithMaxDelay sets the maximum retry delay.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.maxDelay = d
	}
}

// WithJitter enables jitter to prevent thundering herd.
func WithJitter(enabled bool) RetryOption {
	return func(p *RetryPolicy) {
		p.jitter = enabled
	}
}

// WithLogger adds logging to retry attempts.
func WithLogger(logger *zap.Logger) RetryOption {
	return func(p *RetryPolicy) {
		p.logger = logger
	}
}

// NewRetryPolicy creates a new retry policy.
func NewRetryPolicy(opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts:  3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     5 * time.Second,
		multiplier:   2.0,
		jitter:       true,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Execute runs a function with retry logic.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := fn(); err == nil {
			if attempt > 0 {
				p.logger.Debug("operation succeeded after retry",
					zap.Int("attempt", attempt+1),
					zap.Int("maxAttempts", p.maxAttempts))
			}
			return nil
		} else {
			lastErr = err
		}

		if attempt == p.maxAttempts-1 {
			break
		}

		delay := p.calculateDelay(attempt)
		p.logger.Debug("operation failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", p.maxAttempts),
			zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.logger.Error("operation failed after all retries",
		zap.Error(lastErr),
		zap.Int("attempts", p.maxAttempts))

	return lastErr
}

// calculateDelay computes the delay for the given attempt.
func (p *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt))

	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}

	if p.jitter {
		// Jitter between 0.5x and 1.5x the delay
		delay = delay * (0.5 + rand.Float64()) // #nosec G404 - jitter, not crypto
	}

	return time.Duration(delay)
}
