// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// tavilySearchBase is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilySearchBase = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	Client     *http.Client
	apiKey     string
	depth      string
	maxResults int
}

// NewTavily returns a Tavily provider. An API key is required.
func NewTavily(cfg types.SearchConfig) (*Tavily, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, errors.New("tavily search requires TAVILY_API_KEY")
	}
	depth := cfg.Depth
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{
		Client:     httputil.NewClient(cfg.HTTPConfig),
		apiKey:     cfg.APIKey,
		depth:      depth,
		maxResults: cfg.MaxResults,
	}, nil
}

// Name returns the provider identifier.
func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query       string `json:"query"`
	APIKey      string `json:"api_key"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search posts one query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:       query,
		APIKey:      t.apiKey,
		SearchDepth: t.depth,
		MaxResults:  t.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilySearchBase, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, t.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("tavily", resp); err != nil {
		return nil, err
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parsing tavily response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(tr.Results))
	for _, it := range tr.Results {
		if it.URL == "" {
			continue
		}
		snippet := collapseSpace(it.Content)
		if snippet == "" {
			snippet = defaultSnippet
		}
		results = append(results, types.SearchResult{Title: it.Title, URL: it.URL, Snippet: truncate(snippet, 300)})
	}
	return finalize(results, t.maxResults, t.Name()), nil
}
