package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the circuit breaker is rejecting
// requests after repeated failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// circuitBreakerLLM stops sending requests to a failing provider for a
// cooldown period instead of hammering it with an entire item batch.
type circuitBreakerLLM struct {
	next CoreLLM

	mu          sync.Mutex
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	open        bool
}

// CircuitBreakerMiddleware creates middleware that opens after maxFailures
// consecutive errors and allows a trial request again after cooldown.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{
			next:        next,
			maxFailures: maxFailures,
			cooldown:    cooldown,
		}
	}
}

// DoRequest rejects immediately while the circuit is open, otherwise
// forwards the request and updates the failure count.
func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := c.allow(); err != nil {
		return "", 0, 0, err
	}

	response, tokensIn, tokensOut, err := c.next.DoRequest(ctx, prompt, opts)
	c.record(err)
	return response, tokensIn, tokensOut, err
}

func (c *circuitBreakerLLM) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	if time.Since(c.openedAt) >= c.cooldown {
		// Half-open: let one request through to probe recovery.
		c.open = false
		c.failures = c.maxFailures - 1
		return nil
	}
	return ErrCircuitOpen
}

func (c *circuitBreakerLLM) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.failures = 0
		return
	}
	c.failures++
	if c.failures >= c.maxFailures {
		c.open = true
		c.openedAt = time.Now()
	}
}

// GetModel returns the model name from the wrapped implementation.
func (c *circuitBreakerLLM) GetModel() string { return c.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
