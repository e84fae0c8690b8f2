package llm

import (
	"context"
	"errors"
	"time"

	"github.com/jasher4994/judgesync/internal/ports"
)

// metricsLLM records request latency, counts, and token usage.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	provider  string
}

// MetricsMiddleware creates middleware reporting per-request metrics to the
// given collector with provider and model labels.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector, provider: provider}
	}
}

// DoRequest executes the request while recording latency, outcome, and
// token counters.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   "success",
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrCircuitOpen):
		labels["status"] = "circuit_open"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		labels["status"] = "timeout"
	default:
		labels["status"] = "error"
	}

	if m.collector != nil {
		m.collector.RecordHistogram("judge_llm_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("judge_llm_requests_total", 1, labels)
		if err == nil {
			m.collector.RecordCounter("judge_llm_tokens_total", float64(tokensIn+tokensOut), labels)
		}
	}

	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
