package llm

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/4sgupta828/oats/pkg/config"
)

// retryingClient wraps a provider client with a per-call timeout and
// jittered exponential backoff on transient failures. Non-transient errors
// (auth, bad request, context cancellation) fail immediately.
type retryingClient struct {
	inner       Client
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
}

func newRetryingClient(inner Client, cfg config.LLMConfig) *retryingClient {
	c := &retryingClient{
		inner:       inner,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.RetryBaseDelay,
	}
	if c.timeout <= 0 {
		c.timeout = config.DefaultOracleTimeout
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.baseDelay <= 0 {
		c.baseDelay = config.DefaultRetryBaseDelay
	}
	return c
}

// Complete implements Client.
func (c *retryingClient) Complete(ctx context.Context, req *Request) (string, error) {
	var reply string

	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		text, err := c.inner.Complete(callCtx, req)
		if err == nil {
			reply = text
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		slog.Warn("transient oracle failure, will retry", "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return reply, nil
}

// isTransient classifies an oracle error as retryable: network failures,
// timeouts, 5xx, and 429 rate limiting. Everything else (4xx, invalid key,
// caller cancellation) is permanent.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) {
		return anthErr.StatusCode >= 500 || anthErr.StatusCode == 429 || anthErr.StatusCode == 408
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return oaiErr.HTTPStatusCode >= 500 || oaiErr.HTTPStatusCode == 429 || oaiErr.HTTPStatusCode == 408
	}

	// Unclassifiable errors (connection reset wrapped in fmt, etc.) are
	// treated as transient — the attempt bound keeps this safe.
	return true
}
