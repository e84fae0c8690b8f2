// Package llm provides the provider clients the judge executor is built on,
// behind a single completion interface with middleware for rate limiting,
// retries, timeouts, circuit breaking, metrics, and tracing.
//
// Azure OpenAI is the backend judgesync grew up on; OpenAI, Anthropic, and
// Google Gemini are supported through the same interface so judge
// configurations can be compared across providers without touching the
// alignment core.
//
// Basic usage:
//
//	client, err := llm.NewClient("azure", llm.ClientConfig{
//	    APIKey:        os.Getenv("AZURE_OPENAI_API_KEY"),
//	    AzureEndpoint: os.Getenv("AZURE_OPENAI_ENDPOINT"),
//	    Model:         "gpt-4o-deployment",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(10, 20),
//	        llm.RetryMiddleware(3, 500*time.Millisecond, 10*time.Second),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/jasher4994/judgesync/internal/ports"
)

// CoreLLM is the minimal surface a provider must implement. Middleware
// wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider and returns the response
	// text along with input and output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model for subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts when the provider does not
// report them.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// Middleware wraps a CoreLLM to add cross-cutting behavior. Middleware
// composes; the first entry in ClientConfig.Middleware is outermost.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds the settings for creating an LLM client. Credentials
// are passed explicitly; nothing here reads the process environment.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the model name, or the deployment name for Azure.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// AzureEndpoint is the Azure OpenAI resource endpoint. Required by the
	// "azure" provider, ignored by the others.
	AzureEndpoint string

	// AzureAPIVersion overrides the Azure API version. Empty uses the
	// provider default.
	AzureAPIVersion string

	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration

	// TokenEstimator overrides the default character-based estimator.
	TokenEstimator TokenEstimator

	// Middleware is applied in order, first entry outermost.
	Middleware []Middleware
}

// Client implements ports.LLMClient over a middleware-wrapped CoreLLM.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient assembles a provider client with its middleware chain.
// Registered provider types: "openai", "azure", "anthropic", "google".
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	// Apply middleware in reverse so the first configured entry wraps the rest.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewTokenCounter()
	}

	return &Client{core: core, estimator: estimator}, nil
}

// Complete sends a prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and additionally returns input and output
// token counts.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens approximates the token count of text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory builds a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom provider type. The built-in
// providers register themselves in their init functions.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
