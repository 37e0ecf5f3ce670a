// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides chat completion clients for the pipelines: a local
// Ollama server and OpenAI-compatible cloud endpoints such as Groq. Callers
// depend on the narrow Completer interface so tests can script replies.
package llm

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Provider names accepted by NewProvider.
const (
	ProviderOllama = "ollama"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

// Default models per provider.
const (
	DefaultOllamaModel = "gemma3:27b"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
)

const defaultTimeout = 120 * time.Second

// Options tunes a single completion call.
type Options struct {
	// Model overrides the provider's configured model when non-empty.
	Model string

	// Temperature is the sampling temperature.
	Temperature float64
}

// Completer sends a conversation to a model and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, messages []types.Message, opts Options) (string, error)
}

// Streamer is implemented by providers that can emit the reply
// incrementally. Stream writes tokens to w as they arrive and returns the
// complete text.
type Streamer interface {
	Completer
	Stream(ctx context.Context, messages []types.Message, opts Options, w io.Writer) (string, error)
}

// Prompt runs a single-turn completion: an optional system instruction and
// one user message.
func Prompt(ctx context.Context, c Completer, system, user string, opts Options) (string, error) {
	var msgs []types.Message
	if system != "" {
		msgs = append(msgs, types.SystemMessage(system))
	}
	msgs = append(msgs, types.UserMessage(user))
	return c.Complete(ctx, msgs, opts)
}

// Respond streams the reply to w when c supports streaming and otherwise
// completes it in one call and writes it. A nil w disables output.
func Respond(ctx context.Context, c Completer, messages []types.Message, opts Options, w io.Writer) (string, error) {
	if w == nil {
		return c.Complete(ctx, messages, opts)
	}
	if s, ok := c.(Streamer); ok {
		return s.Stream(ctx, messages, opts, w)
	}
	text, err := c.Complete(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	fmt.Fprint(w, text)
	return text, nil
}

// NewProvider builds the provider named by cfg.Provider. When
// cfg.BreakerFailures is set the provider is wrapped in a circuit breaker.
func NewProvider(cfg types.LLMConfig, logger *zap.Logger) (Completer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var c Completer
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		c = NewOllamaProvider(OllamaConfig{
			Host:    cfg.BaseURL,
			Model:   defaultIfEmpty(cfg.Model, DefaultOllamaModel),
			Timeout: timeout,
		})
	case ProviderGroq:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("groq: %w (set GROQ_API_KEY)", ErrMissingAPIKey)
		}
		c = NewOpenAIProvider(OpenAIConfig{
			Name:    ProviderGroq,
			APIKey:  cfg.APIKey,
			Model:   defaultIfEmpty(cfg.Model, DefaultGroqModel),
			BaseURL: defaultIfEmpty(cfg.BaseURL, GroqBaseURL),
			Timeout: timeout,
		})
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrMissingAPIKey)
		}
		c = NewOpenAIProvider(OpenAIConfig{
			Name:    ProviderOpenAI,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	default:
		return nil, UnsupportedProviderError{Provider: cfg.Provider}
	}

	if cfg.BreakerFailures > 0 {
		c = NewBreakerProvider(c, BreakerConfig{
			Name:        defaultIfEmpty(cfg.Provider, ProviderOllama),
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerTimeout,
		}, logger)
	}
	return c, nil
}

// HealthChecker is implemented by providers that can check their server
// without running a completion.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
	Model() string
}

// CheckHealth checks c, looking through wrappers such as BreakerProvider.
// It returns ErrUnreachable when the provider can check its server and the
// server does not answer, and nil for providers that cannot be checked.
func CheckHealth(ctx context.Context, c Completer) error {
	for c != nil {
		if hc, ok := c.(HealthChecker); ok {
			if !hc.IsHealthy(ctx) {
				return fmt.Errorf("%w (model %s)", ErrUnreachable, hc.Model())
			}
			return nil
		}
		w, ok := c.(interface{ Unwrap() Completer })
		if !ok {
			return nil
		}
		c = w.Unwrap()
	}
	return nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> reasoning blocks that some local
// models prepend to their answers, and trims surrounding whitespace.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
