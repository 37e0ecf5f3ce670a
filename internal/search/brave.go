// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// braveSearchBase is the Brave web search endpoint. Declared as a var so
// tests can substitute an httptest server.
var braveSearchBase = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search API. The free tier allows one request per
// second, which the limiter enforces.
type Brave struct {
	Client     *http.Client
	apiKey     string
	maxResults int
	limiter    *rate.Limiter
}

// NewBrave returns a Brave provider. An API key is required.
func NewBrave(cfg types.SearchConfig) (*Brave, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, errors.New("brave search requires BRAVE_API_KEY")
	}
	return &Brave{
		Client:     httputil.NewClient(cfg.HTTPConfig),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		limiter:    newLimiter(cfg.RatePerSecond),
	}, nil
}

// Name returns the provider identifier.
func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs one Brave web search request.
func (b *Brave) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := wait(ctx, b.limiter); err != nil {
		return nil, err
	}

	params := url.Values{"q": {query}, "count": {strconv.Itoa(b.maxResults)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("brave request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("brave", resp); err != nil {
		return nil, err
	}

	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("parsing brave response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(br.Web.Results))
	for _, it := range br.Web.Results {
		if it.URL == "" {
			continue
		}
		snippet := stripTags(it.Description)
		if snippet == "" {
			snippet = defaultSnippet
		}
		results = append(results, types.SearchResult{Title: stripTags(it.Title), URL: it.URL, Snippet: snippet})
	}
	return finalize(results, b.maxResults, b.Name()), nil
}

// stripTags removes the <strong> highlighting Brave puts in titles and
// descriptions.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return collapseSpace(b.String())
}
