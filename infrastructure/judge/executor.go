// Package judge implements the LLM-backed judge executor: it renders
// evaluation prompts, calls a provider through ports.LLMClient, and parses
// the numeric score out of the completion.
package judge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jasher4994/judgesync/internal/domain"
	"github.com/jasher4994/judgesync/internal/ports"
)

// scoreInstruction is appended to every judge prompt so the model answers
// with a bare number instead of prose.
const scoreInstruction = "You must respond with ONLY a number between %g and %g."

// Executor scores question/response pairs with an LLM judge. It is safe for
// concurrent use; all per-call state lives on the stack.
type Executor struct {
	client ports.LLMClient
	rng    domain.ScoreRange
}

var _ ports.JudgeExecutor = (*Executor)(nil)

// NewExecutor creates an executor that validates judge scores against rng.
func NewExecutor(client ports.LLMClient, rng domain.ScoreRange) (*Executor, error) {
	if client == nil {
		return nil, fmt.Errorf("judge executor requires an LLM client")
	}
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("judge executor score range: %w", err)
	}
	return &Executor{client: client, rng: rng}, nil
}

// Evaluate scores one question/response pair under config. The returned
// score is guaranteed to lie within the executor's range; out-of-range or
// non-numeric completions are errors, never clamped.
func (e *Executor) Evaluate(ctx context.Context, question, response string, config domain.JudgeConfig) (float64, error) {
	opts := map[string]any{
		"system":      SystemPrompt(config, e.rng),
		"temperature": config.Temperature,
	}
	if config.Model != "" {
		opts["model"] = config.Model
	}

	completion, err := e.client.Complete(ctx, UserPrompt(question, response), opts)
	if err != nil {
		return 0, fmt.Errorf("judge completion: %w", err)
	}

	score, err := ParseScore(completion)
	if err != nil {
		return 0, err
	}
	if !e.rng.Contains(score) {
		return 0, fmt.Errorf("%w: judge returned %g outside %s",
			domain.ErrScoreRange, score, e.rng)
	}
	return score, nil
}

// SystemPrompt renders the judge's system prompt: the configured rubric
// followed by the numeric-only response instruction for rng.
func SystemPrompt(config domain.JudgeConfig, rng domain.ScoreRange) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(config.Prompt))
	b.WriteString("\n")
	fmt.Fprintf(&b, scoreInstruction, rng.Min, rng.Max)
	return b.String()
}

// UserPrompt renders the per-item user message.
func UserPrompt(question, response string) string {
	return fmt.Sprintf("Question: %s\n\nResponse: %s", question, response)
}

// ParseScore extracts a numeric score from a judge completion. The first
// whitespace-delimited token is tried first so trailing rationale does not
// break parsing; if that fails the whole trimmed completion is tried.
func ParseScore(completion string) (float64, error) {
	trimmed := strings.TrimSpace(completion)
	if trimmed == "" {
		return 0, fmt.Errorf("judge returned an empty completion")
	}
	if fields := strings.Fields(trimmed); len(fields) > 0 {
		if score, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return score, nil
		}
	}
	score, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("judge returned a non-numeric completion %q", truncate(trimmed, 80))
	}
	return score, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
