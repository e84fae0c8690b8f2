package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedLLM paces requests with a token bucket so concurrent judge
// batches stay within provider rate limits.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware enforcing a sustained requests-per-
// second limit with the given burst allowance. All requests through the
// wrapped client share one bucket.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

// DoRequest blocks until a token is available, then forwards the request.
func (r *rateLimitedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

// GetModel returns the model name from the wrapped implementation.
func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
