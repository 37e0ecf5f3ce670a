// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scrape fetches a web page and reduces it to its main plain text.
// Fetches are single attempts: a failure is reported to the caller, which
// decides how to continue without the page.
package scrape

import (
	"context"
	"errors"
	"strings"

	"github.com/pdiddy/search-agent/pkg/types"
)

var (
	// ErrNoContent is returned when a page yields no readable text.
	ErrNoContent = errors.New("no readable content on page")

	// ErrUnsupportedContent is returned for responses that are neither HTML
	// nor plain text.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Fetcher retrieves the main text of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (types.Document, error)
}

// New returns a headless-browser fetcher when cfg.Browser is set and a plain
// HTTP fetcher otherwise.
func New(cfg types.ScrapeConfig) Fetcher {
	if cfg.Browser {
		return NewBrowserFetcher(cfg)
	}
	return NewHTTPFetcher(cfg)
}

// Truncate cuts text to at most n runes and appends "..." when it did.
// n <= 0 leaves text unchanged.
func Truncate(text string, n int) (string, bool) {
	if n <= 0 {
		return text, false
	}
	r := []rune(text)
	if len(r) <= n {
		return text, false
	}
	return string(r[:n]) + "...", true
}

// normalizeText trims every line, collapses inner runs of spaces, and drops
// empty lines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if l := strings.Join(strings.Fields(line), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// document builds a Document from extracted text, applying the size limit.
func document(url, title, text string, maxChars int) (types.Document, error) {
	text = normalizeText(text)
	if text == "" {
		return types.Document{}, ErrNoContent
	}
	text, truncated := Truncate(text, maxChars)
	return types.Document{
		URL:       url,
		Title:     strings.TrimSpace(title),
		Text:      text,
		Truncated: truncated,
	}, nil
}
