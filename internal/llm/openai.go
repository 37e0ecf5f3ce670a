// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	// Name labels errors and logs (e.g. "groq").
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIProvider calls any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	Client  *http.Client
}

// NewOpenAIProvider returns a provider for cfg.BaseURL (default OpenAI).
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIProvider{
		name:    defaultIfEmpty(cfg.Name, ProviderOpenAI),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(defaultIfEmpty(cfg.BaseURL, openAIBaseURL), "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type chatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message types.Message `json:"message"`
		Delta   types.Message `json:"delta"`
	} `json:"choices"`
}

// Complete posts a non-streamed chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []types.Message, opts Options) (string, error) {
	resp, err := p.post(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", p.name, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream posts a streamed chat completion and copies each server-sent delta
// to w.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []types.Message, opts Options, w io.Writer) (string, error) {
	resp, err := p.post(ctx, messages, opts, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}
		var chunk chatCompletionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return full.String(), fmt.Errorf("decoding %s stream: %w", p.name, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if tok := chunk.Choices[0].Delta.Content; tok != "" {
			full.WriteString(tok)
			fmt.Fprint(w, tok)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("reading %s stream: %w", p.name, err)
	}
	if strings.TrimSpace(full.String()) == "" {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}

func (p *OpenAIProvider) post(ctx context.Context, messages []types.Message, opts Options, stream bool) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", p.name, ErrMissingAPIKey)
	}
	model := defaultIfEmpty(opts.Model, p.model)
	if model == "" {
		return nil, errors.New(p.name + ": missing model")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", p.name, err)
	}
	if err := httputil.CheckStatus(p.name, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

var _ Streamer = (*OpenAIProvider)(nil)
