// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/search"
	"github.com/pdiddy/search-agent/pkg/types"
)

var newsSystemTmpl = template.Must(template.New("news").Parse(`You are a web search agent specializing in the latest news.

The current date is {{.Date}}.

Given a topic and a list of search results, respond with the {{.Items}} latest and most relevant news items about that topic.
Select {{.Items}} distinct items; do not list rehashes of the same story from different outlets.
For each item give a concise summary, the source publication name, and the direct URL.
If fewer than {{.Items}} distinct and relevant items are available, report the ones you have and state that fewer items were available.
If none of the results are news about the topic, say that no recent news was found.
Write in English and present the items as a Markdown list.`))

var newsUserTmpl = template.Must(template.New("news-user").Parse(`TOPIC: {{.Topic}}

SEARCH_RESULTS:
{{.Results}}`))

// News reports the latest distinct news items on a topic.
func (r *Researcher) News(ctx context.Context, topic string, w io.Writer) (Report, error) {
	log := r.logger.With(zap.String("task", "news"), zap.String("topic", topic))

	results, err := r.search.Search(ctx, topic)
	if err != nil {
		log.Warn("search failed", zap.Error(err))
		text, werr := write(w, fmt.Sprintf("I was unable to find news on %q (search tool error).\n", topic))
		return Report{Markdown: text, Failures: []Failure{{Reason: "search failed: " + err.Error()}}}, werr
	}
	results, removed := search.Dedupe(results)
	if removed > 0 {
		log.Debug("duplicate results removed", zap.Int("removed", removed))
	}
	if len(results) == 0 {
		text, werr := write(w, fmt.Sprintf("No recent news found on %q.\n", topic))
		return Report{Markdown: text}, werr
	}

	system, err := render(newsSystemTmpl, struct {
		Date  string
		Items int
	}{r.date(), r.cfg.Items})
	if err != nil {
		return Report{}, err
	}
	user, err := render(newsUserTmpl, struct{ Topic, Results string }{topic, listResults(results)})
	if err != nil {
		return Report{}, err
	}

	text, err := r.generate(ctx, system, user, w)
	if err != nil {
		return Report{}, err
	}
	return Report{Markdown: text, Sources: results}, nil
}

// listResults renders search results as numbered blocks for a prompt.
func listResults(results []types.SearchResult) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "ID: %d\nTitle: %s\nLink: %s\nSnippet: %s\n---", res.ID, res.Title, res.URL, res.Snippet)
	}
	return b.String()
}
