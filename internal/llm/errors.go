// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when a cloud provider has no API key.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrEmptyResponse is returned when a provider answers without content.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrUnreachable is returned by CheckHealth when the model server does
	// not answer.
	ErrUnreachable = errors.New("model server not reachable")
)

// UnsupportedProviderError reports an unknown provider name.
type UnsupportedProviderError struct {
	Provider string
}

func (e UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %q (use ollama, groq, or openai)", e.Provider)
}
