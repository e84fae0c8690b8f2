package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// retryLLM retries transient failures with exponential backoff and jitter.
// Permanent failures (authentication, bad request) are not retried.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries failed requests up to
// maxRetries times with exponential backoff between baseDelay and maxDelay.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest executes the request, retrying retryable provider errors until
// the attempt budget is exhausted or the context is done.
func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil || !retryable(err) {
			break
		}
		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after retries: %w", lastErr)
}

// retryable consults the provider error classification; unclassified errors
// are retried on the assumption they are transient.
func retryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable()
	}
	return true
}

func (r *retryLLM) delay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := time.Duration(float64(r.baseDelay) * float64(int64(1)<<uint(attempt)))

	// Jitter of ±25% avoids synchronized retry bursts across a batch.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
