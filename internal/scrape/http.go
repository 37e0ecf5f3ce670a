// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// maxBodyBytes bounds how much of a page is downloaded.
const maxBodyBytes = 5 << 20

// HTTPFetcher downloads pages with a plain GET and extracts their main text.
type HTTPFetcher struct {
	Client    *http.Client
	userAgent string
	maxChars  int
}

// NewHTTPFetcher returns a fetcher using cfg's timeout, User-Agent, and
// text limit.
func NewHTTPFetcher(cfg types.ScrapeConfig) *HTTPFetcher {
	cfg.HTTPConfig = cfg.HTTPConfig.WithDefaults()
	return &HTTPFetcher{
		Client:    httputil.NewClient(cfg.HTTPConfig),
		userAgent: cfg.UserAgent,
		maxChars:  cfg.MaxChars,
	}
}

// Fetch downloads url and returns its main text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (types.Document, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return types.Document{}, errors.New("fetch url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.Document{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := f.Client.Do(req)
	if err != nil {
		return types.Document{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("fetch "+url, resp); err != nil {
		return types.Document{}, err
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	switch contentKind(resp.Header.Get("Content-Type")) {
	case "text":
		data, err := io.ReadAll(body)
		if err != nil {
			return types.Document{}, fmt.Errorf("reading %s: %w", url, err)
		}
		return document(url, "", string(data), f.maxChars)
	case "html":
		title, text, err := ExtractText(body)
		if err != nil {
			return types.Document{}, fmt.Errorf("extracting %s: %w", url, err)
		}
		return document(url, title, text, f.maxChars)
	default:
		return types.Document{}, fmt.Errorf("fetching %s: %w %q", url, ErrUnsupportedContent, resp.Header.Get("Content-Type"))
	}
}

// contentKind classifies a Content-Type header as "html", "text", or "".
// A missing header is treated as HTML.
func contentKind(header string) string {
	if header == "" {
		return "html"
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	switch {
	case mt == "text/html" || mt == "application/xhtml+xml":
		return "html"
	case mt == "text/plain":
		return "text"
	default:
		return ""
	}
}

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Nav: true, atom.Header: true, atom.Footer: true, atom.Aside: true,
	atom.Form: true, atom.Button: true, atom.Svg: true, atom.Iframe: true,
	atom.Head: true,
}

// blocks start a new line in the extracted text.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Main: true, atom.Blockquote: true,
	atom.Pre: true, atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Dd: true, atom.Dt: true,
	atom.Figcaption: true,
}

// ExtractText parses an HTML document and returns its title and main text.
// The main text comes from the first <article>, else <main>, else <body>,
// with navigation, chrome, and scripts removed.
func ExtractText(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	if t := findElement(doc, atom.Title); t != nil {
		title = strings.Join(strings.Fields(nodeText(t)), " ")
	}

	root := doc
	for _, a := range []atom.Atom{atom.Article, atom.Main, atom.Body} {
		if n := findElement(doc, a); n != nil {
			root = n
			break
		}
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(collapseWhitespace(n.Data))
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if blocks[n.DataAtom] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return title, b.String(), nil
}

// collapseWhitespace replaces every run of whitespace, newlines included,
// with one space. Line structure comes from block elements only.
func collapseWhitespace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
