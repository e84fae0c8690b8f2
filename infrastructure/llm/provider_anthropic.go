package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// AnthropicDefaultModel is used when no model is configured.
	AnthropicDefaultModel = "claude-3-5-sonnet-20241022"
)

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM for Anthropic's Messages API.
type anthropicProvider struct {
	BaseProvider
	client       anthropic.Client
	tokenCounter *TokenCounter
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &anthropicProvider{
		BaseProvider: BaseProvider{model: model},
		client:       anthropic.NewClient(opts...),
		tokenCounter: NewTokenCounter(),
	}, nil
}

// DoRequest sends a message request and returns the response text with
// token usage.
func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
	}
	if options.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.System}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}
	content := text.String()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := p.tokenCounter.GetTokenCount(int(message.Usage.InputTokens), prompt)
	tokensOut := p.tokenCounter.GetTokenCount(int(message.Usage.OutputTokens), content)
	return content, tokensIn, tokensOut, nil
}

// wrapError normalizes Anthropic SDK errors into ProviderError.
func (p *anthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return wrapProviderError("anthropic", apiErr.StatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Type: ErrorTypeTimeout, Provider: "anthropic", Err: err}
	}
	return &ProviderError{Type: ErrorTypeNetwork, Provider: "anthropic", Err: err}
}
