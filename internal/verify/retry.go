package verify

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/worker"
)

// RetryPolicy bounds how long a prompt is retried while the backend rate limits it
type RetryPolicy struct {
	Attempts  int           // Total attempts, including the first
	BaseDelay time.Duration // Delay before the second attempt, doubled after each retry
	Jitter    time.Duration // Upper bound of the uniform random delay added to each backoff

	// Hooks for tests
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// DefaultRetryPolicy allows 5 attempts with 5s base delay and 1s jitter
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicyFromConfig(model.DefaultConfig().Retry)
}

// RetryPolicyFromConfig builds a policy from the retry section of the config
func RetryPolicyFromConfig(cfg model.RetryConfig) RetryPolicy {
	return RetryPolicy{
		Attempts:  cfg.QueryAttempts,
		BaseDelay: cfg.QueryBaseDelay,
		Jitter:    cfg.QueryJitter,
	}
}

// Backoff returns the pre-jitter delay after the zero-based attempt
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(int64(1)<<attempt)
}

// Delay returns the full delay after the zero-based attempt
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Backoff(attempt)
	if p.Jitter > 0 {
		random := p.Rand
		if random == nil {
			random = rand.Float64
		}
		d += time.Duration(random() * float64(p.Jitter))
	}
	return d
}

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return worker.Sleep(ctx, d)
}
