package llm

// options.go contains the shared parsing of the generic option maps passed
// through ports.LLMClient into provider requests.

// RequestOptions is the standardized set of request parameters shared
// across providers.
type RequestOptions struct {
	// MaxTokens caps the generated response length.
	MaxTokens int

	// Model overrides the client's configured model for this request.
	Model string

	// Temperature controls sampling randomness. Nil uses the provider
	// default.
	Temperature *float64

	// System is the system prompt, handled per provider convention.
	System string
}

// DefaultMaxTokens bounds judge responses. Judges reply with a single
// number, so the default is deliberately small.
const DefaultMaxTokens = 64

// ParseRequestOptions extracts standardized parameters from an option map,
// substituting defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens),
		Model:     extractString(opts, "model", defaultModel),
		System:    extractString(opts, "system", ""),
	}
	if temp, ok := extractFloat(opts, "temperature"); ok && temp >= 0 && temp <= 2 {
		options.Temperature = &temp
	}
	return options
}

func extractInt(opts map[string]any, key string, defaultVal int) int {
	if v, ok := opts[key].(int); ok && v > 0 {
		return v
	}
	return defaultVal
}

func extractString(opts map[string]any, key, defaultVal string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

func extractFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// TokenCounter estimates token counts from text length when the provider
// does not report usage.
type TokenCounter struct {
	// CharactersPerToken is the assumed average; 4 is a reasonable
	// approximation for English text.
	CharactersPerToken float64
}

// NewTokenCounter returns a TokenCounter with the default ratio.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens approximates the token count of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount prefers the provider-reported count, falling back to
// estimation when it is absent.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
