package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const (
	// GoogleDefaultModel is used when no model is configured.
	GoogleDefaultModel = "gemini-2.0-flash"
)

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for Google's Gemini API.
type googleProvider struct {
	BaseProvider
	client       *genai.Client
	tokenCounter *TokenCounter
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider: BaseProvider{model: model},
		client:       client,
		tokenCounter: NewTokenCounter(),
	}, nil
}

// DoRequest sends a content generation request and returns the response
// text with token usage. Gemini has no separate system role, so a system
// prompt is prepended to the user prompt.
func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	finalPrompt := prompt
	if options.System != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", options.System, prompt)
	}
	contents := []*genai.Content{genai.NewContentFromText(finalPrompt, genai.RoleUser)}

	genConfig := &genai.GenerateContentConfig{}
	if options.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*options.Temperature))
	}
	if options.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(options.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, genConfig)
	if err != nil {
		return "", 0, 0, p.wrapError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn := p.tokenCounter.EstimateTokens(finalPrompt)
	tokensOut := p.tokenCounter.EstimateTokens(content)
	if usage := resp.UsageMetadata; usage != nil {
		if usage.PromptTokenCount > 0 {
			tokensIn = int(usage.PromptTokenCount)
		}
		if usage.CandidatesTokenCount > 0 {
			tokensOut = int(usage.CandidatesTokenCount)
		}
	}

	return content, tokensIn, tokensOut, nil
}

// wrapError normalizes Google API errors into ProviderError.
func (p *googleProvider) wrapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return wrapProviderError("google", apiErr.Code, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Type: ErrorTypeTimeout, Provider: "google", Err: err}
	}
	return &ProviderError{Type: ErrorTypeNetwork, Provider: "google", Err: err}
}
