// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/search-agent/internal/llm"
	"github.com/pdiddy/search-agent/internal/pipeline"
	"github.com/pdiddy/search-agent/internal/research"
	"github.com/pdiddy/search-agent/pkg/types"
)

func TestRepl(t *testing.T) {
	in := strings.NewReader("hello\n\n   \nfail\nexit\nnever reached\n")
	var out strings.Builder
	var seen []string

	err := repl(context.Background(), in, &out, func(ctx context.Context, input string) error {
		seen = append(seen, input)
		if input == "fail" {
			return errors.New("model unavailable")
		}
		out.WriteString("reply to " + input)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "fail"}, seen)
	assert.Contains(t, out.String(), "USER: ASSISTANT: reply to hello\n\n")
	assert.Contains(t, out.String(), "error: model unavailable")
	assert.NotContains(t, out.String(), "never reached")
}

func TestReplEndOfInput(t *testing.T) {
	var out strings.Builder
	calls := 0
	err := repl(context.Background(), strings.NewReader("one question"), &out, func(ctx context.Context, input string) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, strings.HasSuffix(out.String(), "USER: \n"))
}

func TestReplQuitIsCaseInsensitive(t *testing.T) {
	var out strings.Builder
	err := repl(context.Background(), strings.NewReader("QUIT\n"), &out, func(ctx context.Context, input string) error {
		t.Fatalf("unexpected turn %q", input)
		return nil
	})
	require.NoError(t, err)
}

func TestReplStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var out strings.Builder
	calls := 0
	err := repl(ctx, strings.NewReader("first\nsecond\n"), &out, func(ctx context.Context, input string) error {
		calls++
		cancel()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NotContains(t, out.String(), "error:")
}

// constantLLM answers every prompt with the same reply. "False" makes the
// pipeline skip the web search.
type constantLLM struct{ reply string }

func (c constantLLM) Complete(ctx context.Context, messages []types.Message, opts llm.Options) (string, error) {
	return c.reply, nil
}

func TestChatLoopReset(t *testing.T) {
	var out strings.Builder
	p := pipeline.New(constantLLM{reply: "False"}, nil, nil, types.PipelineConfig{}, pipeline.WithOutput(&out))

	err := chatLoop(context.Background(), p, strings.NewReader("hello\n/reset\nquit\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "ASSISTANT: False\n\n")
	assert.Contains(t, out.String(), "(conversation cleared)")
	assert.Equal(t, 1, p.Conversation().Len())
}

func TestWarnIfUnreachable(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	var out strings.Builder
	warnIfUnreachable(&out, llm.NewOllamaProvider(llm.OllamaConfig{Host: down.URL}))
	assert.Contains(t, out.String(), "warning: model server not reachable")

	out.Reset()
	warnIfUnreachable(&out, constantLLM{reply: "ok"})
	assert.Empty(t, out.String())
}

func TestWriteReport(t *testing.T) {
	report := research.Report{
		Markdown: "# Heading",
		Sources:  []types.SearchResult{{ID: 0, Title: "Example", URL: "https://example.com"}},
		Failures: []research.Failure{{URL: "https://paywalled.example", Reason: "the site returned HTTP 500"}},
	}
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "out", "report.json")
		require.NoError(t, writeReport(path, report))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got research.Report
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, report, got)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "report.yaml")
		require.NoError(t, writeReport(path, report))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got research.Report
		require.NoError(t, yaml.Unmarshal(data, &got))
		assert.Equal(t, report.Sources, got.Sources)
		assert.Equal(t, report.Failures, got.Failures)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short text", truncate("short   text", 20))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
