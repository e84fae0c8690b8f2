package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM is a CoreLLM returning canned results in sequence. Once the
// script is exhausted the last entry repeats.
type scriptedLLM struct {
	mu      sync.Mutex
	script  []scriptStep
	calls   int
	model   string
	lastOpt map[string]any
}

type scriptStep struct {
	response string
	err      error
}

func (s *scriptedLLM) DoRequest(_ context.Context, _ string, opts map[string]any) (string, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOpt = opts
	step := s.script[min(s.calls, len(s.script)-1)]
	s.calls++
	return step.response, 10, 5, step.err
}

func (s *scriptedLLM) GetModel() string { return s.model }

func (s *scriptedLLM) SetModel(m string) { s.model = m }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// TestRetryMiddleware verifies retry behavior for transient, permanent, and
// circuit-open failures.
func TestRetryMiddleware(t *testing.T) {
	transient := wrapProviderError("test", 500, errors.New("server error"))
	permanent := wrapProviderError("test", 401, errors.New("unauthorized"))

	t.Run("succeeds after transient failures", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{
			{err: transient},
			{err: transient},
			{response: "4"},
		}}
		wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(core)

		response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
		assert.Equal(t, "4", response)
		assert.Equal(t, 3, core.callCount())
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{{err: transient}}}
		wrapped := RetryMiddleware(2, time.Millisecond, 10*time.Millisecond)(core)

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, core.callCount())
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{{err: permanent}}}
		wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(core)

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.Error(t, err)
		assert.Equal(t, 1, core.callCount())
	})

	t.Run("does not retry an open circuit", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{{err: ErrCircuitOpen}}}
		wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(core)

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, 1, core.callCount())
	})

	t.Run("retries unclassified errors", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{
			{err: errors.New("connection reset")},
			{response: "ok"},
		}}
		wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(core)

		response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", response)
	})
}

// TestCircuitBreakerMiddleware verifies opening, rejection, and half-open
// recovery.
func TestCircuitBreakerMiddleware(t *testing.T) {
	failure := errors.New("provider down")

	t.Run("opens after consecutive failures", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{{err: failure}}}
		wrapped := CircuitBreakerMiddleware(2, time.Minute)(core)

		for i := 0; i < 2; i++ {
			_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
			assert.ErrorIs(t, err, failure)
		}

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, 2, core.callCount())
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{
			{err: failure},
			{response: "ok"},
			{err: failure},
			{response: "ok"},
		}}
		wrapped := CircuitBreakerMiddleware(2, time.Minute)(core)

		for i := 0; i < 4; i++ {
			wrapped.DoRequest(context.Background(), "p", nil)
		}
		// Never two consecutive failures, so the circuit stays closed.
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("half-open probe after cooldown", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{
			{err: failure},
			{err: failure},
			{response: "recovered"},
		}}
		wrapped := CircuitBreakerMiddleware(2, 10*time.Millisecond)(core)

		wrapped.DoRequest(context.Background(), "p", nil)
		wrapped.DoRequest(context.Background(), "p", nil)
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.ErrorIs(t, err, ErrCircuitOpen)

		time.Sleep(20 * time.Millisecond)

		response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
		assert.Equal(t, "recovered", response)
	})
}

// TestRateLimitMiddleware verifies pacing and context cancellation.
func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allows requests within the burst", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{{response: "ok"}}}
		wrapped := RateLimitMiddleware(1, 3)(core)

		for i := 0; i < 3; i++ {
			_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
			require.NoError(t, err)
		}
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		core := &scriptedLLM{script: []scriptStep{{response: "ok"}}}
		// Burst of 1; the second request must wait a full second.
		wrapped := RateLimitMiddleware(1, 1)(core)

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
		assert.Error(t, err)
		assert.Equal(t, 1, core.callCount())
	})
}

// TestTimeoutMiddleware verifies that slow requests are cut off.
func TestTimeoutMiddleware(t *testing.T) {
	slow := coreFunc(func(ctx context.Context) (string, int, int, error) {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(time.Second):
			return "too late", 0, 0, nil
		}
	})
	wrapped := TimeoutMiddleware(10 * time.Millisecond)(slow)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// coreFunc adapts a function to CoreLLM for timeout testing.
type coreFunc func(ctx context.Context) (string, int, int, error)

func (f coreFunc) DoRequest(ctx context.Context, _ string, _ map[string]any) (string, int, int, error) {
	return f(ctx)
}

func (f coreFunc) GetModel() string { return "test-model" }

func (f coreFunc) SetModel(string) {}

// TestMiddlewareOrdering verifies that the first configured middleware is
// outermost.
func TestMiddlewareOrdering(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return coreFunc(func(ctx context.Context) (string, int, int, error) {
				order = append(order, name)
				return next.DoRequest(ctx, "", nil)
			})
		}
	}

	core := &scriptedLLM{script: []scriptStep{{response: "ok"}}}
	RegisterProviderFactory("ordering-test", func(ClientConfig) (CoreLLM, error) {
		return core, nil
	})

	client, err := NewClient("ordering-test", ClientConfig{
		APIKey:     "key",
		Middleware: []Middleware{tag("outer"), tag("inner")},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}
