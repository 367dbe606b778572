package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantRetrier(cfg RetryConfig) (*Retrier, *[]time.Duration) {
	r := NewStatTrackingRetrier(cfg)
	var waits []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return r, &waits
}

func TestExecuteEventualSuccess(t *testing.T) {
	r, waits := instantRetrier(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second})
	calls := 0
	out, err := Execute(r, context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", NewLLMError(ProviderGitHub, ErrorTypeServerError, "502")
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)

	st := r.Stats()
	assert.Equal(t, 1, st.Successful)
	assert.Equal(t, 2, st.ErrorTypes[string(ErrorTypeServerError)])
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	r, waits := instantRetrier(RetryConfig{MaxRetries: 3})
	calls := 0
	_, err := Execute(r, context.Background(), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, NewLLMError(ProviderGitHub, ErrorTypeAuthentication, "bad token")
	})
	require.Error(t, err)
	assert.True(t, IsAuthenticationError(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestExecuteExhaustsBudget(t *testing.T) {
	r, _ := instantRetrier(RetryConfig{MaxRetries: 2})
	_, err := Execute(r, context.Background(), func(ctx context.Context, attempt int) (int, error) {
		return 0, NewLLMError(ProviderGitHub, ErrorTypeRateLimit, "429")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.True(t, IsRateLimitError(err))
	assert.Equal(t, 1, r.Stats().Failed)
}

func TestExecuteMatchesConfiguredMessages(t *testing.T) {
	r, _ := instantRetrier(RetryConfig{MaxRetries: 1, RetryableErrors: []string{"timeout"}})
	calls := 0
	_ = r.ExecuteSimple(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("dial tcp: i/o Timeout")
	})
	assert.Equal(t, 2, calls)
}

func TestExecuteHonoursCancellation(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxRetries: 5, InitialDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Execute(r, ctx, func(ctx context.Context, attempt int) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayRespectsBoundsAndRetryAfter(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxRetries: 10, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2})
	for attempt := 0; attempt < 8; attempt++ {
		d := r.delay(attempt, errors.New("x"))
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
	e := NewLLMError(ProviderGitHub, ErrorTypeRateLimit, "429")
	e.RetryAfter = 7
	assert.Equal(t, 7*time.Second, r.delay(0, e))
}
