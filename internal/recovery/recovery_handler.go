package recovery

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
)

// BackoffStrategy defines different backoff strategies
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffFixed       BackoffStrategy = "fixed"
)

// Policy bounds how often and how long an operation is retried
type Policy struct {
	MaxAttempts    int             `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay      time.Duration   `json:"base_delay" yaml:"base_delay"`
	MaxDelay       time.Duration   `json:"max_delay" yaml:"max_delay"`
	RateLimitDelay time.Duration   `json:"rate_limit_delay" yaml:"rate_limit_delay"`
	Strategy       BackoffStrategy `json:"strategy" yaml:"strategy"`
	Multiplier     float64         `json:"multiplier" yaml:"multiplier"`
	Jitter         bool            `json:"jitter" yaml:"jitter"`
}

// DefaultPolicy retries three times with exponential backoff up to 10s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: 5 * time.Second,
		Strategy:       BackoffExponential,
		Multiplier:     2,
		Jitter:         true,
	}
}

// Delay returns the wait before retry number attempt (0-based)
func (p Policy) Delay(category errors.ErrorCategory, attempt int) time.Duration {
	base := p.BaseDelay
	if category == errors.ErrorCategoryRateLimit && p.RateLimitDelay > base {
		base = p.RateLimitDelay
	}

	var delay time.Duration
	switch p.Strategy {
	case BackoffLinear:
		delay = base * time.Duration(attempt+1)
	case BackoffFixed:
		delay = base
	default:
		multiplier := 1.0
		for i := 0; i < attempt; i++ {
			multiplier *= p.Multiplier
		}
		delay = time.Duration(float64(base) * multiplier)
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/10 + 1))
	}
	return delay
}

// Handler runs operations under a retry policy and keeps error statistics
type Handler struct {
	policy Policy
	stats  *errors.ErrorStats
	log    *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewHandler creates a handler. A nil logger discards output.
func NewHandler(policy Policy, log *logger.Logger) *Handler {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		policy: policy,
		stats:  errors.NewErrorStats(50),
		log:    log,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs fn until it succeeds, fails with a non-retryable error, or
// the attempts are exhausted. The returned error is the categorized last error.
func (h *Handler) Execute(ctx context.Context, component, operation string, fn func(ctx context.Context) error) error {
	var last *errors.BotError
	for attempt := 0; attempt < h.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				h.log.Info("%s.%s succeeded after %d attempts", component, operation, attempt+1)
			}
			return nil
		}

		last = errors.CategorizeError(err, component, operation)
		h.stats.RecordError(last)

		action := last.GetRecoveryAction()
		if action != errors.RecoveryActionRetry && action != errors.RecoveryActionWait {
			return last
		}
		if attempt+1 == h.policy.MaxAttempts {
			break
		}

		delay := h.policy.Delay(last.Category, attempt)
		h.log.LogWarning("recovery", "%s.%s attempt %d failed (%s), retrying in %v: %v",
			component, operation, attempt+1, last.Category, delay, last.Underlying)
		if err := h.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s.%s failed after %d attempts: %w", component, operation, h.policy.MaxAttempts, last)
}

// Stats returns the handler's error statistics
func (h *Handler) Stats() *errors.ErrorStats {
	return h.stats
}

// Retry runs fn under policy without logging
func Retry(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	return NewHandler(policy, nil).Execute(ctx, "", "retry", fn)
}
