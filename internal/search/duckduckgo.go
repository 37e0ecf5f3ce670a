// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// duckDuckGoHTMLBase is the DuckDuckGo HTML endpoint. Declared as a var so
// tests can substitute an httptest server.
var duckDuckGoHTMLBase = "https://html.duckduckgo.com/html/"

// defaultSnippet stands in for results the page shows without a description.
const defaultSnippet = "No description available."

// DuckDuckGo scrapes the keyless DuckDuckGo HTML results page.
type DuckDuckGo struct {
	Client     *http.Client
	userAgent  string
	maxResults int
	limiter    *rate.Limiter
}

// NewDuckDuckGo returns a DuckDuckGo provider throttled to
// cfg.RatePerSecond.
func NewDuckDuckGo(cfg types.SearchConfig) *DuckDuckGo {
	cfg = cfg.WithDefaults()
	return &DuckDuckGo{
		Client:     httputil.NewClient(cfg.HTTPConfig),
		userAgent:  cfg.UserAgent,
		maxResults: cfg.MaxResults,
		limiter:    newLimiter(cfg.RatePerSecond),
	}
}

// Name returns the provider identifier.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search fetches the results page for query and parses up to maxResults
// entries in page order.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := wait(ctx, d.limiter); err != nil {
		return nil, err
	}

	reqURL := duckDuckGoHTMLBase + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := httputil.DoWithRetry(ctx, d.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("duckduckgo", resp); err != nil {
		return nil, err
	}

	results, err := parseDuckDuckGo(resp.Body)
	if err != nil {
		return nil, err
	}
	return finalize(results, d.maxResults, d.Name()), nil
}

// parseDuckDuckGo extracts results from the HTML page. Each result is a
// div.result holding an a.result__a title link and an optional
// .result__snippet description. Sponsored entries (result--ad) are skipped.
func parseDuckDuckGo(r io.Reader) ([]types.SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing duckduckgo page: %w", err)
	}

	var results []types.SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if res, ok := parseResult(n); ok {
				results = append(results, res)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func parseResult(n *html.Node) (types.SearchResult, bool) {
	link := findFirst(n, func(c *html.Node) bool {
		return c.Data == "a" && hasClass(c, "result__a")
	})
	if link == nil {
		return types.SearchResult{}, false
	}
	href := unwrapRedirect(attr(link, "href"))
	title := collapseSpace(textContent(link))
	if href == "" || title == "" {
		return types.SearchResult{}, false
	}

	snippet := defaultSnippet
	if s := findFirst(n, func(c *html.Node) bool { return hasClass(c, "result__snippet") }); s != nil {
		if text := collapseSpace(textContent(s)); text != "" {
			snippet = text
		}
	}

	return types.SearchResult{Title: title, URL: href, Snippet: snippet}, true
}

// unwrapRedirect turns DuckDuckGo's click-tracking links
// (//duckduckgo.com/l/?uddg=<target>) into the target URL.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

// --- HTML helpers shared with the parsers in this package ---

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findFirst returns the first element below n (depth-first) matching pred.
func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
