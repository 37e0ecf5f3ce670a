// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/scrape"
	"github.com/pdiddy/search-agent/internal/search"
	"github.com/pdiddy/search-agent/pkg/types"
)

var digestSystemTmpl = template.Must(template.New("digest").Parse(`You are the lead of a web research team. A searcher found pages for the user's query and a scraper read them. Your goal is to provide a comprehensive summary for the query.

The current date is {{.Date}}.

Analyze all of the gathered page text and write a thoughtful, engaging, and well-structured summary of the findings in Markdown. Base the summary only on the pages that were read. Cite pages by title and URL.
{{- if .Short}}
The searcher returned fewer pages than requested; acknowledge this limitation.
{{- end}}
{{- if .Failed}}
Some pages could not be read; acknowledge this in the summary.
{{- end}}`))

var digestUserTmpl = template.Must(template.New("digest-user").Parse(`QUERY: {{.Query}}
{{range .Pages}}
---BEGIN PAGE---
Title: {{.Title}}
URL: {{.URL}}

{{.Text}}
---END PAGE---
{{end}}
{{- if .Failures}}
UNREADABLE PAGES:
{{- range .Failures}}
- {{.URL}}: {{.Reason}}
{{- end}}
{{end}}`))

type page struct {
	Title string
	URL   string
	Text  string
}

// Digest searches for the query, reads up to Links distinct pages, and
// summarizes what was read. Pages that fail to load are listed in the
// report and acknowledged in the summary.
func (r *Researcher) Digest(ctx context.Context, query string, w io.Writer) (Report, error) {
	log := r.logger.With(zap.String("task", "digest"), zap.String("query", query))

	results, err := r.search.Search(ctx, query)
	if err != nil {
		log.Warn("search failed", zap.Error(err))
		text, werr := write(w, fmt.Sprintf("I could not research %q because the web search failed.\n", query))
		return Report{Markdown: text, Failures: []Failure{{Reason: "search failed: " + err.Error()}}}, werr
	}
	results, _ = search.Dedupe(results)
	if len(results) > r.cfg.Links {
		results = results[:r.cfg.Links]
	}
	if len(results) == 0 {
		text, werr := write(w, fmt.Sprintf("I could not find any pages about %q, so there is nothing to summarize.\n", query))
		return Report{Markdown: text}, werr
	}

	var (
		pages    []page
		sources  []types.SearchResult
		failures []Failure
	)
	for _, res := range results {
		doc, err := r.fetch.Fetch(ctx, res.URL)
		if err != nil {
			if ctx.Err() != nil {
				return Report{}, ctx.Err()
			}
			log.Warn("reading page failed", zap.String("url", res.URL), zap.Error(err))
			failures = append(failures, Failure{URL: res.URL, Reason: readFailure(err)})
			continue
		}
		text, _ := scrape.Truncate(doc.Text, r.cfg.MaxPageChars)
		title := doc.Title
		if title == "" {
			title = res.Title
		}
		pages = append(pages, page{Title: title, URL: res.URL, Text: text})
		sources = append(sources, res)
	}
	log.Info("pages read", zap.Int("read", len(pages)), zap.Int("failed", len(failures)))

	if len(pages) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "I found %d pages about %q but could not read any of them:\n\n", len(results), query)
		for _, f := range failures {
			fmt.Fprintf(&b, "- %s: %s\n", f.URL, f.Reason)
		}
		text, werr := write(w, b.String())
		return Report{Markdown: text, Failures: failures}, werr
	}

	system, err := render(digestSystemTmpl, struct {
		Date          string
		Short, Failed bool
	}{r.date(), len(results) < r.cfg.Links, len(failures) > 0})
	if err != nil {
		return Report{}, err
	}
	user, err := render(digestUserTmpl, struct {
		Query    string
		Pages    []page
		Failures []Failure
	}{query, pages, failures})
	if err != nil {
		return Report{}, err
	}

	text, err := r.generate(ctx, system, user, w)
	if err != nil {
		return Report{}, err
	}
	return Report{Markdown: text, Sources: sources, Failures: failures}, nil
}
