// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// DefaultOllamaHost is the address of a locally running Ollama server.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaConfig configures an OllamaProvider.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// OllamaProvider talks to the native Ollama chat API.
type OllamaProvider struct {
	host   string
	model  string
	Client *http.Client
}

// NewOllamaProvider returns a provider for cfg.Host (default localhost).
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaProvider{
		host:   strings.TrimRight(defaultIfEmpty(cfg.Host, DefaultOllamaHost), "/"),
		model:  defaultIfEmpty(cfg.Model, DefaultOllamaModel),
		Client: &http.Client{Timeout: timeout},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []types.Message `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// ollamaChatChunk is both the non-streamed reply and one streamed NDJSON line.
type ollamaChatChunk struct {
	Message types.Message `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Complete sends messages to /api/chat with streaming disabled.
func (p *OllamaProvider) Complete(ctx context.Context, messages []types.Message, opts Options) (string, error) {
	resp, err := p.post(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out ollamaChatChunk
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	if strings.TrimSpace(out.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Message.Content, nil
}

// Stream sends messages to /api/chat and copies each streamed token to w.
func (p *OllamaProvider) Stream(ctx context.Context, messages []types.Message, opts Options, w io.Writer) (string, error) {
	resp, err := p.post(ctx, messages, opts, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return full.String(), fmt.Errorf("decoding ollama stream: %w", err)
		}
		if chunk.Error != "" {
			return full.String(), fmt.Errorf("ollama: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			fmt.Fprint(w, chunk.Message.Content)
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("reading ollama stream: %w", err)
	}
	if strings.TrimSpace(full.String()) == "" {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}

func (p *OllamaProvider) post(ctx context.Context, messages []types.Message, opts Options, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    defaultIfEmpty(opts.Model, p.model),
		Messages: messages,
		Stream:   stream,
		Options:  ollamaOptions{Temperature: opts.Temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama at %s: %w", p.host, err)
	}
	if err := httputil.CheckStatus("ollama", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// IsHealthy reports whether the server answers /api/tags.
func (p *OllamaProvider) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Model returns the default model name.
func (p *OllamaProvider) Model() string { return p.model }

var _ Streamer = (*OllamaProvider)(nil)
