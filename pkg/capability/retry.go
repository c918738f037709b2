package capability

import (
	"context"
	"time"
)

// RetryPolicy bounds retries of transient capability failures.
// Backoff doubles per attempt, capped at MaxBackoff.
type RetryPolicy struct {
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// DefaultRetryPolicy retries twice with short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  2,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	}
}

// Do runs fn, retrying per the policy while transient reports the error
// as retryable. It returns the number of retries consumed. Context
// cancellation aborts the backoff wait immediately.
func (p RetryPolicy) Do(ctx context.Context, transient func(error) bool, fn func() error) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if !transient(err) || attempt == p.MaxRetries {
			return attempt, err
		}
		if err := sleepWithContext(ctx, p.backoff(attempt)); err != nil {
			return attempt, err
		}
	}
	return p.MaxRetries, lastErr
}

// Invoke calls the capability, retrying transient failures per the policy.
// It returns the results and the number of retries consumed. Non-transient
// failures abort immediately.
func (p RetryPolicy) Invoke(ctx context.Context, c Capability, input string) ([]Result, int, error) {
	var results []Result
	retries, err := p.Do(ctx, IsTransient, func() error {
		var invokeErr error
		results, invokeErr = c.Invoke(ctx, input)
		return invokeErr
	})
	if err != nil {
		return nil, retries, err
	}
	return results, retries, nil
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	backoff := p.BaseBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
