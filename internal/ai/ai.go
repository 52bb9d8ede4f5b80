// Package ai turns reading requests into prompts, sends them to a language
// model provider and parses the answers into domain results.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider sends one prompt to a language model and returns the raw text answer.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete performs a single request. Implementations do not retry.
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// Completion is the raw answer of a provider.
type Completion struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string // AI model used
	InputTokens  int    // Tokens in the request
	OutputTokens int    // Tokens in the response
	CostCents    int    // Estimated cost in cents, zero when unknown
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIBadResponse indicates the provider answered with something unusable
	EAIBadResponse = errors.New("ai provider returned an unusable response")
)

// ErrorStatus classifies an error for metrics labels.
func ErrorStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, EAIRateLimit):
		return "rate_limited"
	case errors.Is(err, EAITimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, EAIUnavailable):
		return "unavailable"
	case errors.Is(err, EAIUnauthorized):
		return "unauthorized"
	case errors.Is(err, EAIBadResponse):
		return "bad_response"
	}
	return "error"
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
