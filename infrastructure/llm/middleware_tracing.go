package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedLLM emits an OpenTelemetry span per request.
type tracedLLM struct {
	next   CoreLLM
	tracer trace.Tracer
}

// TracingMiddleware creates middleware wrapping each request in a span
// named "llm.complete" under the given service name.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, tracer: tracer}
	}
}

// DoRequest executes the request inside a span carrying model and token
// attributes.
func (t *tracedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "llm.complete",
		trace.WithAttributes(
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(prompt)),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, tokensIn, tokensOut, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", tokensIn),
		attribute.Int("llm.tokens.output", tokensOut),
	)
	return response, tokensIn, tokensOut, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
