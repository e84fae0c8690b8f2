package llm

import (
	"context"
	"time"
)

// timeoutLLM bounds individual request duration.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware creates middleware enforcing a per-request timeout so a
// slow judge call cannot stall a whole batch slot indefinitely.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

// DoRequest executes the request under a deadline-bound context.
func (t *timeoutLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
