// Package retry implements exponential backoff with jitter for provider
// calls.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/llm"
)

// Policy configures the backoff retryer.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt (0 means
	// no retries).
	MaxRetries int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// Jitter adds +/-25% randomization to each delay to avoid thundering
	// herds.
	Jitter bool
	// IsRetryable decides whether an error should trigger a retry. When
	// nil, ProviderRetryable is used.
	IsRetryable func(err error) bool
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the policy used for LLM API calls.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// ProviderRetryable reports whether err is a retryable *llm.Error.
// Non-provider errors are treated as retryable transport failures.
func ProviderRetryable(err error) bool {
	if err == nil {
		return false
	}
	if llmErr, ok := err.(*llm.Error); ok {
		return llmErr.Retryable
	}
	return true
}

// Retryer runs functions under a retry policy.
type Retryer interface {
	// Do executes fn, retrying per policy on failure.
	Do(ctx context.Context, fn func() error) error

	// DoWithResult executes fn and returns its result, retrying per
	// policy on failure.
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffRetryer creates an exponential backoff retryer.
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 1 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if policy.IsRetryable == nil {
		policy.IsRetryable = ProviderRetryable
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &backoffRetryer{
		policy: policy,
		logger: logger,
	}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	var result any

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, lastErr = fn()

		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !r.policy.IsRetryable(lastErr) {
			r.logger.Debug("error is not retryable", zap.Error(lastErr))
			return nil, lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)

	return nil, fmt.Errorf("still failing after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// calculateDelay applies exponential backoff with optional jitter.
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))

	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}

	if r.policy.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}

	return time.Duration(delay)
}
