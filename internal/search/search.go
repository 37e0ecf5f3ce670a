// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries web search providers and returns results in the
// provider's own order. The package does not re-rank or paginate; each
// provider call is a single request (plus throttling retries).
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/search-agent/pkg/types"
)

// ErrEmptyQuery is returned when Search is called with a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

// Provider searches the web through a single service. Each provider
// (DuckDuckGo, Google, Brave, Tavily) implements this interface.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// New builds the provider named by cfg.Provider.
func New(cfg types.SearchConfig) (Provider, error) {
	cfg = cfg.WithDefaults()
	switch strings.ToLower(cfg.Provider) {
	case "duckduckgo", "ddg":
		return NewDuckDuckGo(cfg), nil
	case "google":
		return NewGoogle(cfg)
	case "brave":
		return NewBrave(cfg)
	case "tavily":
		return NewTavily(cfg)
	default:
		return nil, fmt.Errorf("unknown search provider %q: use duckduckgo, google, brave, or tavily", cfg.Provider)
	}
}

// newLimiter returns a limiter allowing perSecond requests, or nil when
// limiting is disabled.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

// finalize caps results at max and numbers them in order.
func finalize(results []types.SearchResult, max int, source string) []types.SearchResult {
	if max > 0 && len(results) > max {
		results = results[:max]
	}
	for i := range results {
		results[i].ID = i
		results[i].Source = source
	}
	return results
}

// Dedupe drops results whose normalized URL was already seen, keeping the
// first occurrence, and renumbers the survivors. It returns the number of
// results removed. The chat pipeline never dedupes; research tasks that
// merge lists do.
func Dedupe(results []types.SearchResult) ([]types.SearchResult, int) {
	seen := make(map[string]bool, len(results))
	var out []types.SearchResult
	for _, r := range results {
		key := normalizeURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		r.ID = len(out)
		out = append(out, r)
	}
	return out, len(results) - len(out)
}

// normalizeURL lowercases the host, drops the scheme, "www.", fragment, and
// trailing slash.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// FormatTable writes results as a human-readable table to w.
func FormatTable(results []types.SearchResult, w io.Writer) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-3s  %-50s  %-50s  %s\n", "ID", "Title", "URL", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, r := range results {
		fmt.Fprintf(w, "%-3d  %-50s  %-50s  %s\n",
			r.ID, truncate(r.Title, 50), truncate(r.URL, 50), r.Source)
	}

	fmt.Fprintf(w, "\n%d results\n", len(results))
}

// FormatJSON writes results as indented JSON to w.
func FormatJSON(results []types.SearchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if results == nil {
		results = []types.SearchResult{}
	}
	return enc.Encode(results)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
