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

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// googleSearchBase is the Custom Search JSON API endpoint. Declared as a var
// so tests can substitute an httptest server.
var googleSearchBase = "https://www.googleapis.com/customsearch/v1"

// googleMaxNum is the largest page size the API accepts.
const googleMaxNum = 10

// Google queries the Programmable Search Engine JSON API.
type Google struct {
	Client     *http.Client
	apiKey     string
	engineID   string
	maxResults int
}

// NewGoogle returns a Google provider. Both an API key and an engine ID (cx)
// are required.
func NewGoogle(cfg types.SearchConfig) (*Google, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, errors.New("google search requires GOOGLE_API_KEY and GOOGLE_CSE_ID")
	}
	return &Google{
		Client:     httputil.NewClient(cfg.HTTPConfig),
		apiKey:     cfg.APIKey,
		engineID:   cfg.EngineID,
		maxResults: cfg.MaxResults,
	}, nil
}

// Name returns the provider identifier.
func (g *Google) Name() string { return "google" }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search runs one Custom Search request.
func (g *Google) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	num := g.maxResults
	if num <= 0 || num > googleMaxNum {
		num = googleMaxNum
	}
	params := url.Values{
		"key": {g.apiKey},
		"cx":  {g.engineID},
		"q":   {query},
		"num": {strconv.Itoa(num)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, g.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("google search request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("google search", resp); err != nil {
		return nil, err
	}

	var gr googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("parsing google response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(gr.Items))
	for _, it := range gr.Items {
		if it.Link == "" {
			continue
		}
		snippet := collapseSpace(it.Snippet)
		if snippet == "" {
			snippet = defaultSnippet
		}
		results = append(results, types.SearchResult{Title: it.Title, URL: it.Link, Snippet: snippet})
	}
	return finalize(results, g.maxResults, g.Name()), nil
}
