package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// OpenAIDefaultModel is used when no model is configured.
	OpenAIDefaultModel = "gpt-4o-mini"
)

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
	RegisterProviderFactory("azure", newAzureOpenAIProvider)
}

// openAIProvider implements CoreLLM for the OpenAI API and, through the
// Azure factory, for Azure OpenAI deployments.
type openAIProvider struct {
	BaseProvider
	client       *openai.Client
	providerName string
	tokenCounter *TokenCounter
}

// newOpenAIProvider creates a provider against the public OpenAI API.
func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	applyTimeout(&clientConfig, config)

	return &openAIProvider{
		BaseProvider: BaseProvider{model: model},
		client:       openai.NewClientWithConfig(clientConfig),
		providerName: "openai",
		tokenCounter: NewTokenCounter(),
	}, nil
}

// newAzureOpenAIProvider creates a provider against an Azure OpenAI
// resource. The configured model is the Azure deployment name.
func newAzureOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.AzureEndpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("azure deployment name is required")
	}

	clientConfig := openai.DefaultAzureConfig(config.APIKey, config.AzureEndpoint)
	if config.AzureAPIVersion != "" {
		clientConfig.APIVersion = config.AzureAPIVersion
	}
	applyTimeout(&clientConfig, config)

	return &openAIProvider{
		BaseProvider: BaseProvider{model: config.Model},
		client:       openai.NewClientWithConfig(clientConfig),
		providerName: "azure",
		tokenCounter: NewTokenCounter(),
	}, nil
}

func applyTimeout(clientConfig *openai.ClientConfig, config ClientConfig) {
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
}

// DoRequest sends a chat completion request and returns the response text
// with token usage.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	req := openai.ChatCompletionRequest{
		Model:     options.Model,
		MaxTokens: options.MaxTokens,
		Messages:  buildChatMessages(prompt, options.System),
	}
	if options.Temperature != nil {
		req.Temperature = float32(*options.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	tokensIn := p.tokenCounter.GetTokenCount(resp.Usage.PromptTokens, prompt)
	tokensOut := p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, content)
	return content, tokensIn, tokensOut, nil
}

// buildChatMessages assembles the message slice, prepending a system
// message when a system prompt is set.
func buildChatMessages(prompt, system string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}

// wrapError normalizes go-openai errors into ProviderError.
func (p *openAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrapProviderError(p.providerName, apiErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Type: ErrorTypeTimeout, Provider: p.providerName, Err: err}
	}
	return &ProviderError{Type: ErrorTypeNetwork, Provider: p.providerName, Err: err}
}
