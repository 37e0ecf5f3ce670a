// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func testCfg() types.SearchConfig {
	return types.SearchConfig{
		HTTPConfig:    types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
		MaxResults:    5,
		APIKey:        "key",
		EngineID:      "cx",
		RatePerSecond: -1,
	}
}

// withBase points a package endpoint at url for the duration of the test.
func withBase(t *testing.T, base *string, url string) {
	t.Helper()
	old := *base
	*base = url
	t.Cleanup(func() { *base = old })
}

// --- factory ---

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"", "duckduckgo", false},
		{"ddg", "duckduckgo", false},
		{"google", "google", false},
		{"Brave", "brave", false},
		{"tavily", "tavily", false},
		{"bing", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testCfg()
			cfg.Provider = tt.provider
			p, err := New(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestKeyedProvidersRequireCredentials(t *testing.T) {
	cfg := types.SearchConfig{}
	_, err := NewGoogle(cfg)
	assert.Error(t, err)
	_, err = NewBrave(cfg)
	assert.Error(t, err)
	_, err = NewTavily(cfg)
	assert.Error(t, err)
}

// --- DuckDuckGo ---

const ddgPage = `<html><body>
<div class="result results_links results_links_deep web-result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fweather.com%2Fistanbul&amp;rut=abc">Istanbul <b>Weather</b> Today</a></h2>
  <a class="result__snippet" href="#">Current conditions: <b>22°C</b>, clear.</a>
</div>
<div class="result result--ad">
  <a class="result__a" href="https://ads.example.com">Sponsored</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://example.org/forecast">Forecast</a>
</div>
<div class="result results_links">
  <a class="result__a" href="">No link</a>
</div>
</body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, ddgPage)
	}))
	defer ts.Close()
	withBase(t, &duckDuckGoHTMLBase, ts.URL+"/html/")

	d := NewDuckDuckGo(testCfg())
	results, err := d.Search(context.Background(), "  Istanbul weather today ")
	require.NoError(t, err)

	assert.Equal(t, "Istanbul weather today", gotQuery)
	assert.Equal(t, "test/0.1", gotUA)
	require.Len(t, results, 2)

	assert.Equal(t, types.SearchResult{
		ID: 0, Title: "Istanbul Weather Today", URL: "https://weather.com/istanbul",
		Snippet: "Current conditions: 22°C, clear.", Source: "duckduckgo",
	}, results[0])
	assert.Equal(t, 1, results[1].ID)
	assert.Equal(t, defaultSnippet, results[1].Snippet)
}

func TestDuckDuckGoMaxResults(t *testing.T) {
	var page strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&page, `<div class="result"><a class="result__a" href="https://site%d.example">Site %d</a></div>`, i, i)
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page.String())
	}))
	defer ts.Close()
	withBase(t, &duckDuckGoHTMLBase, ts.URL)

	results, err := NewDuckDuckGo(testCfg()).Search(context.Background(), "sites")
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.ID)
		assert.Equal(t, fmt.Sprintf("https://site%d.example", i), r.URL, "provider order must be kept")
	}
}

func TestDuckDuckGoNoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><div class="no-results">No results.</div></body></html>`)
	}))
	defer ts.Close()
	withBase(t, &duckDuckGoHTMLBase, ts.URL)

	results, err := NewDuckDuckGo(testCfg()).Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDuckDuckGoErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()
	withBase(t, &duckDuckGoHTMLBase, ts.URL)

	d := NewDuckDuckGo(testCfg())
	_, err := d.Search(context.Background(), "q")
	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)

	_, err = d.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestDuckDuckGoRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, ddgPage)
	}))
	defer ts.Close()
	withBase(t, &duckDuckGoHTMLBase, ts.URL)

	cfg := testCfg()
	cfg.RatePerSecond = 10
	d := NewDuckDuckGo(cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := d.Search(context.Background(), "q")
		require.NoError(t, err)
	}
	// Burst of 1 at 10/s: the second and third calls wait ~100ms each.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc&rut=x", "https://go.dev/doc"},
		{"https://duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com", "https://example.com"},
		{"https://example.com/page", "https://example.com/page"},
		{"//duckduckgo.com/y.js?ad=1", "https://duckduckgo.com/y.js?ad=1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unwrapRedirect(tt.in), tt.in)
	}
}

// --- Google ---

func TestGoogleSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx", q.Get("cx"))
		assert.Equal(t, "llm news", q.Get("q"))
		assert.Equal(t, "5", q.Get("num"))
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "LLM roundup", "link": "https://news.example/llm", "snippet": "This  week\nin LLMs"},
				{"title": "No link"},
				{"title": "Bare", "link": "https://bare.example"},
			},
		})
	}))
	defer ts.Close()
	withBase(t, &googleSearchBase, ts.URL)

	g, err := NewGoogle(testCfg())
	require.NoError(t, err)
	results, err := g.Search(context.Background(), "llm news")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "This week in LLMs", results[0].Snippet)
	assert.Equal(t, 1, results[1].ID)
	assert.Equal(t, defaultSnippet, results[1].Snippet)
	assert.Equal(t, "google", results[1].Source)
}

// --- Brave ---

func TestBraveSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Subscription-Token"))
		fmt.Fprint(w, `{"web":{"results":[{"title":"<strong>Go</strong> release","url":"https://go.dev/blog","description":"The <strong>Go</strong> team announces"}]}}`)
	}))
	defer ts.Close()
	withBase(t, &braveSearchBase, ts.URL)

	b, err := NewBrave(testCfg())
	require.NoError(t, err)
	results, err := b.Search(context.Background(), "go release")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "Go release", results[0].Title)
	assert.Equal(t, "The Go team announces", results[0].Snippet)
}

// --- Tavily ---

func TestTavilySearch(t *testing.T) {
	var got tavilyRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"results":[{"title":"AI ethics","url":"https://ethics.example","content":"Regulators met this month."}]}`)
	}))
	defer ts.Close()
	withBase(t, &tavilySearchBase, ts.URL)

	tv, err := NewTavily(testCfg())
	require.NoError(t, err)
	results, err := tv.Search(context.Background(), "ai ethics")
	require.NoError(t, err)

	assert.Equal(t, "ai ethics", got.Query)
	assert.Equal(t, "basic", got.SearchDepth)
	assert.Equal(t, 5, got.MaxResults)
	require.Len(t, results, 1)
	assert.Equal(t, "Regulators met this month.", results[0].Snippet)
}

// --- Dedupe / formatting ---

func TestDedupe(t *testing.T) {
	in := []types.SearchResult{
		{ID: 0, URL: "https://www.Example.com/a/"},
		{ID: 1, URL: "http://example.com/a#top"},
		{ID: 2, URL: "https://example.com/b"},
		{ID: 3, URL: ""},
	}
	out, removed := Dedupe(in)
	assert.Equal(t, 2, removed)
	require.Len(t, out, 2)
	assert.Equal(t, "https://www.Example.com/a/", out[0].URL)
	assert.Equal(t, 1, out[1].ID)
	assert.Equal(t, "https://example.com/b", out[1].URL)
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(nil, &buf)
	assert.Equal(t, "No results found.\n", buf.String())

	buf.Reset()
	FormatTable([]types.SearchResult{{ID: 0, Title: strings.Repeat("t", 80), URL: "https://a.example", Source: "duckduckgo"}}, &buf)
	out := buf.String()
	assert.Contains(t, out, strings.Repeat("t", 47)+"...")
	assert.Contains(t, out, "1 results")
}

func TestFormatJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(nil, &buf))
	assert.Equal(t, "[]\n", buf.String())
}
