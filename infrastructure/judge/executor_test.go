package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasher4994/judgesync/internal/domain"
)

// fakeClient is a scriptable ports.LLMClient capturing the last request.
type fakeClient struct {
	response string
	err      error

	lastPrompt  string
	lastOptions map[string]any
}

func (f *fakeClient) Complete(_ context.Context, prompt string, options map[string]any) (string, error) {
	f.lastPrompt = prompt
	f.lastOptions = options
	return f.response, f.err
}

func (f *fakeClient) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }

func (f *fakeClient) GetModel() string { return "fake-model" }

func newTestExecutor(t *testing.T, client *fakeClient) *Executor {
	t.Helper()
	exec, err := NewExecutor(client, domain.FivePointRange())
	require.NoError(t, err)
	return exec
}

// TestNewExecutor verifies construction validation.
func TestNewExecutor(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		_, err := NewExecutor(nil, domain.FivePointRange())
		assert.Error(t, err)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := NewExecutor(&fakeClient{}, domain.ScoreRange{})
		assert.ErrorIs(t, err, domain.ErrScoreRange)
	})
}

// TestEvaluatePromptConstruction verifies the system and user messages sent
// to the provider.
func TestEvaluatePromptConstruction(t *testing.T) {
	client := &fakeClient{response: "4"}
	exec := newTestExecutor(t, client)
	cfg := domain.JudgeConfig{
		Name:        "strict",
		Prompt:      "You are a strict evaluator.",
		Model:       "gpt-4o",
		Temperature: 0.2,
	}

	score, err := exec.Evaluate(context.Background(), "What is 2+2?", "4", cfg)
	require.NoError(t, err)
	assert.Equal(t, 4.0, score)

	assert.Equal(t, "Question: What is 2+2?\n\nResponse: 4", client.lastPrompt)
	assert.Equal(t,
		"You are a strict evaluator.\nYou must respond with ONLY a number between 1 and 5.",
		client.lastOptions["system"])
	assert.Equal(t, 0.2, client.lastOptions["temperature"])
	assert.Equal(t, "gpt-4o", client.lastOptions["model"])
}

// TestEvaluateModelDefault verifies that an empty config model leaves the
// client's default in place.
func TestEvaluateModelDefault(t *testing.T) {
	client := &fakeClient{response: "3"}
	exec := newTestExecutor(t, client)

	_, err := exec.Evaluate(context.Background(), "q", "r", domain.JudgeConfig{Name: "j", Prompt: "p"})
	require.NoError(t, err)
	_, hasModel := client.lastOptions["model"]
	assert.False(t, hasModel)
}

// TestEvaluateScoreValidation verifies out-of-range and failure handling.
func TestEvaluateScoreValidation(t *testing.T) {
	cfg := domain.JudgeConfig{Name: "j", Prompt: "p"}

	t.Run("out-of-range score is an error", func(t *testing.T) {
		exec := newTestExecutor(t, &fakeClient{response: "7"})
		_, err := exec.Evaluate(context.Background(), "q", "r", cfg)
		assert.ErrorIs(t, err, domain.ErrScoreRange)
	})

	t.Run("provider error propagates", func(t *testing.T) {
		providerErr := errors.New("rate limited")
		exec := newTestExecutor(t, &fakeClient{err: providerErr})
		_, err := exec.Evaluate(context.Background(), "q", "r", cfg)
		assert.ErrorIs(t, err, providerErr)
	})
}

// TestParseScore verifies score extraction from judge completions.
func TestParseScore(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       float64
		wantErr    bool
	}{
		{"bare integer", "4", 4, false},
		{"bare float", "3.5", 3.5, false},
		{"surrounding whitespace", "  4  \n", 4, false},
		{"score with trailing rationale", "4 because the answer is correct", 4, false},
		{"score on first line", "5\nThe response is complete.", 5, false},
		{"empty completion", "", 0, true},
		{"whitespace only", "   \n\t", 0, true},
		{"no number", "the answer looks good", 0, true},
		{"leading prose", "Score: 4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := ParseScore(tt.completion)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, score)
		})
	}
}
