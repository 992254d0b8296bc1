package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach/internal/domain"
)

// flakyBackend fails a fixed number of times before succeeding.
type flakyBackend struct {
	failures int
	calls    int
	block    time.Duration
}

func (f *flakyBackend) Name() string { return "flaky" }

func (f *flakyBackend) Generate(ctx context.Context, _, _ string, _ []domain.Turn) (string, error) {
	f.calls++
	if f.block > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.block):
		}
	}
	if f.calls <= f.failures {
		return "", errors.New("transient failure")
	}
	return "coached reply", nil
}

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		Timeout:         100 * time.Millisecond,
		InitialInterval: time.Millisecond,
		MaxInterval:     4 * time.Millisecond,
	}
}

func TestWithRetryFirstAttemptSucceeds(t *testing.T) {
	inner := &flakyBackend{}
	b := WithRetry(inner, fastRetryConfig(2), nil)

	reply, err := b.Generate(context.Background(), "sys", "msg", nil)
	require.NoError(t, err)
	assert.Equal(t, "coached reply", reply)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "flaky", b.Name())
}

func TestWithRetryRecoversAfterTransientFailure(t *testing.T) {
	inner := &flakyBackend{failures: 2}
	b := WithRetry(inner, fastRetryConfig(2), nil)

	reply, err := b.Generate(context.Background(), "sys", "msg", nil)
	require.NoError(t, err)
	assert.Equal(t, "coached reply", reply)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryExhaustedWrapsGenerationUnavailable(t *testing.T) {
	inner := &flakyBackend{failures: 10}
	b := WithRetry(inner, fastRetryConfig(2), nil)

	_, err := b.Generate(context.Background(), "sys", "msg", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryPerAttemptTimeout(t *testing.T) {
	inner := &flakyBackend{block: time.Second}
	cfg := fastRetryConfig(1)
	cfg.Timeout = 10 * time.Millisecond
	b := WithRetry(inner, cfg, nil)

	start := time.Now()
	_, err := b.Generate(context.Background(), "sys", "msg", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Equal(t, 2, inner.calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	inner := &flakyBackend{failures: 10}
	b := WithRetry(inner, fastRetryConfig(5), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Generate(ctx, "sys", "msg", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	// The cancelled parent stops the loop after the first attempt.
	assert.Equal(t, 1, inner.calls)
}
