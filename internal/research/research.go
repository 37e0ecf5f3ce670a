// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research runs one-shot web research tasks: an article on a topic
// grounded in a single source, a short news digest, and a multi-page
// summary. Each task searches, reads pages, and asks the model to write
// Markdown. Missing results and unreadable pages are reported in the output
// rather than returned as errors; model failures are returned.
package research

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/internal/llm"
	"github.com/pdiddy/search-agent/internal/scrape"
	"github.com/pdiddy/search-agent/internal/search"
	"github.com/pdiddy/search-agent/pkg/types"
)

// Report is the outcome of a research task.
type Report struct {
	// Markdown is the text written to the output.
	Markdown string `json:"markdown" yaml:"markdown"`

	// Sources lists the results the report drew on, in the order read.
	Sources []types.SearchResult `json:"sources" yaml:"sources"`

	// Failures lists pages or searches that could not be used.
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Failure records a source that could not be used and why.
type Failure struct {
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// Researcher runs research tasks against one model, search provider, and
// page fetcher.
type Researcher struct {
	llm    llm.Completer
	search search.Provider
	fetch  scrape.Fetcher
	cfg    types.ResearchConfig
	logger *zap.Logger

	// Now returns the date added to instructions. Tests replace it.
	Now func() time.Time
}

// New returns a Researcher. A nil logger discards log output.
func New(c llm.Completer, s search.Provider, f scrape.Fetcher, cfg types.ResearchConfig, logger *zap.Logger) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{
		llm:    c,
		search: s,
		fetch:  f,
		cfg:    cfg.WithDefaults(),
		logger: logger,
		Now:    time.Now,
	}
}

func (r *Researcher) date() string {
	return r.Now().Format("Monday, January 2, 2006")
}

// write sends text to w verbatim and returns it as a report body.
func write(w io.Writer, text string) (string, error) {
	if w != nil {
		if _, err := io.WriteString(w, text); err != nil {
			return "", err
		}
	}
	return text, nil
}

// generate asks the model for the report body, streaming it to w.
func (r *Researcher) generate(ctx context.Context, system, user string, w io.Writer) (string, error) {
	msgs := []types.Message{types.SystemMessage(system), types.UserMessage(user)}
	text, err := llm.Respond(ctx, r.llm, msgs, llm.Options{Temperature: r.cfg.Temperature}, w)
	if err != nil {
		return "", fmt.Errorf("generating report: %w", err)
	}
	return llm.StripThinking(text), nil
}

// readFailure explains why a page could not be read in terms a reader can
// act on.
func readFailure(err error) string {
	var se *httputil.StatusError
	switch {
	case errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusPaymentRequired || se.Code == http.StatusForbidden):
		return fmt.Sprintf("the site refused access (HTTP %d); the page might be behind a paywall", se.Code)
	case errors.As(err, &se):
		return fmt.Sprintf("the site returned HTTP %d", se.Code)
	case errors.Is(err, scrape.ErrNoContent), errors.Is(err, scrape.ErrUnsupportedContent):
		return "the page is not a standard article format"
	case errors.Is(err, context.DeadlineExceeded):
		return "the page took too long to load"
	default:
		return "a network error occurred: " + err.Error()
	}
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
