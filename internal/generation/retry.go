package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coach/internal/domain"
)

// RetryConfig configures the timeout and retry behavior for backend calls.
type RetryConfig struct {
	MaxRetries      int           // retries after the first attempt
	Timeout         time.Duration // per-attempt timeout
	InitialInterval time.Duration // initial backoff interval
	MaxInterval     time.Duration // backoff cap
}

// DefaultRetryConfig returns the single-retry-then-degrade policy used for
// generation calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      1,
		Timeout:         60 * time.Second,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

type retryBackend struct {
	inner  domain.GenerationBackend
	cfg    RetryConfig
	logger *slog.Logger
}

// WithRetry wraps a backend with per-attempt timeouts and bounded retry.
// A timeout counts as a backend failure; the final error wraps
// domain.ErrGenerationUnavailable so callers can degrade the turn instead of
// failing the session.
func WithRetry(inner domain.GenerationBackend, cfg RetryConfig, logger *slog.Logger) domain.GenerationBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRetryConfig().Timeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultRetryConfig().InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultRetryConfig().MaxInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryBackend{inner: inner, cfg: cfg, logger: logger}
}

func (b *retryBackend) Name() string { return b.inner.Name() }

func (b *retryBackend) Generate(ctx context.Context, systemPrompt, userMessage string, history []domain.Turn) (string, error) {
	var lastErr error
	delay := b.cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
		reply, err := b.inner.Generate(attemptCtx, systemPrompt, userMessage, history)
		cancel()
		if err == nil {
			b.logger.Debug("generation succeeded",
				"backend", b.inner.Name(),
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return reply, nil
		}
		lastErr = err

		// The session was cancelled; abandon instead of retrying.
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, ctx.Err())
		}
		if attempt == b.cfg.MaxRetries {
			break
		}

		b.logger.Debug("retrying generation",
			"backend", b.inner.Name(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, b.cfg.MaxInterval)
		}
	}

	return "", fmt.Errorf("%w: after %d attempts: %v",
		domain.ErrGenerationUnavailable, b.cfg.MaxRetries+1, lastErr)
}
