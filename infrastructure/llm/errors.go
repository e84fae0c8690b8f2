package llm

import (
	"errors"
	"fmt"
)

// Common errors returned by the LLM client and providers.
var (
	// ErrEmptyAPIKey indicates a required API key was not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyResponse indicates the provider returned an empty body.
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrNoResponseChoice indicates the response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorType categorizes provider errors for standardized handling, such as
// deciding retryability.
type ErrorType int

// Provider error categories.
const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeNetwork
	ErrorTypeTimeout
)

// ProviderError normalizes provider-specific failures into a common shape.
type ProviderError struct {
	// Type classifies the error.
	Type ErrorType

	// Provider names the LLM provider that produced the error.
	Provider string

	// StatusCode holds the HTTP status from the provider, when applicable.
	StatusCode int

	// Err is the underlying provider error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %v (status %d)", e.Provider, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the error category is worth retrying.
// Authentication and bad-request failures are permanent.
func (e *ProviderError) Retryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an error category.
func classifyStatus(status int) ErrorType {
	switch {
	case status == 401 || status == 403:
		return ErrorTypeAuthentication
	case status == 404:
		return ErrorTypeNotFound
	case status == 429:
		return ErrorTypeRateLimit
	case status >= 500:
		return ErrorTypeServerError
	case status >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

// wrapProviderError builds a ProviderError from a status code, or an
// unknown-category error when no status is available.
func wrapProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{
		Type:       classifyStatus(status),
		Provider:   provider,
		StatusCode: status,
		Err:        err,
	}
}
