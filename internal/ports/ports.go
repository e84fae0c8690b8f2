// Package ports defines the interfaces through which the alignment core
// talks to its collaborators. Implementations live under infrastructure/;
// the core depends only on these abstractions.
package ports

import (
	"context"
	"time"

	"github.com/jasher4994/judgesync/internal/domain"
)

// JudgeExecutor obtains a judge score for a single evaluation item under a
// given configuration. The core calls it once per item per configuration
// and must tolerate both latency and failure without corrupting other
// items' state. Retry and rate-limit policy belong to the implementation,
// not to the core.
type JudgeExecutor interface {
	// Evaluate scores one question/response pair. The returned score must
	// lie within the score range the executor was built with; out-of-range
	// responses are an error, not clamped.
	Evaluate(ctx context.Context, question, response string, config domain.JudgeConfig) (float64, error)
}

// DataLoader reads human-scored evaluation items from an external source
// such as a CSV file. Rows that fail to parse a numeric human score are a
// load-time error, never deferred to metrics time.
type DataLoader interface {
	// Load parses the source and returns items with human scores set.
	Load(ctx context.Context, source string) ([]domain.EvaluationItem, error)
}

// LLMClient is the provider-facing completion interface the judge executor
// is built on. Implementations handle authentication, request formatting,
// and response parsing for a specific provider.
type LLMClient interface {
	// Complete sends a completion request and returns the generated text.
	// Common options include "temperature" (float64), "max_tokens" (int),
	// "model" (string), and "system" (string).
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens approximates the token count of text for cost and
	// rate-limit accounting.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier the client is configured with.
	GetModel() string
}

// MetricsCollector records operational metrics from the LLM middleware and
// the alignment runs. Implementations integrate with Prometheus or similar.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
