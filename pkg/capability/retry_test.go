package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky fails with a transient error until the remaining budget is spent.
type flaky struct {
	failures int
	calls    int
}

func (f *flaky) Name() string    { return "flaky" }
func (f *flaky) Available() bool { return true }

func (f *flaky) Invoke(_ context.Context, input string) ([]Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &Error{Kind: KindUnavailable, Capability: f.Name(), Temporary: true}
	}
	return []Result{{Content: "ok: " + input}}, nil
}

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestInvokeRetriesTransientFailures(t *testing.T) {
	f := &flaky{failures: 2}

	results, retries, err := fastPolicy(2).Invoke(context.Background(), f, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, f.calls)
	require.Len(t, results, 1)
	assert.Equal(t, "ok: AAPL", results[0].Content)
}

func TestInvokeGivesUpAfterBudget(t *testing.T) {
	f := &flaky{failures: 10}

	_, retries, err := fastPolicy(2).Invoke(context.Background(), f, "AAPL")
	require.Error(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, f.calls)
	assert.True(t, IsTransient(err))
}

func TestInvokeDoesNotRetryNonTransient(t *testing.T) {
	s := NewStatic("market_data", StaticError(InvalidInput("malformed symbol")))

	_, retries, err := fastPolicy(3).Invoke(context.Background(), s, "??")
	require.Error(t, err)
	assert.Zero(t, retries)
	assert.Len(t, s.Inputs(), 1)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestInvokeStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &flaky{failures: 10}
	_, _, err := RetryPolicy{MaxRetries: 3, BaseBackoff: time.Second, MaxBackoff: time.Second}.
		Invoke(ctx, f, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.calls)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{BaseBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.backoff(1))
	assert.Equal(t, 350*time.Millisecond, p.backoff(2))
	assert.Equal(t, 350*time.Millisecond, p.backoff(5))
}
