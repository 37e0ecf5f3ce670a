// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/llm"
	"github.com/pdiddy/search-agent/internal/scrape"
	"github.com/pdiddy/search-agent/pkg/types"
)

// articleMaxChars caps the source text handed to the writer.
const articleMaxChars = 12000

const pickInstruction = `You pick the single most relevant and authoritative link for researching a topic. Prefer reputable news organizations and academic publications over blogs, forums, and shopping sites.

Respond only with the ID number of the chosen result.`

var articleSystemTmpl = template.Must(template.New("article").Parse(`You are a senior New York Times researcher writing an in-depth article on a topic by researching and analyzing a key web source.

The current date is {{.Date}}.

Analyze the source text thoroughly. Identify the key facts, arguments, perspectives, and notable quotes. Based solely on that text, write a comprehensive, well-structured, and engaging article worthy of the New York Times. Keep the tone objective and informative and do not add facts the source does not contain.

Format the article in Markdown and end it with a line crediting the source by title and URL.`))

var articleUserTmpl = template.Must(template.New("article-user").Parse(`TOPIC: {{.Topic}}

SOURCE: {{.Title}} ({{.URL}})

SOURCE_TEXT:
{{.Text}}`))

var pickUserTmpl = template.Must(template.New("pick").Parse(`TOPIC: {{.Topic}}

SEARCH_RESULTS:
{{.Results}}`))

// Article searches for the topic, reads the single most authoritative
// result, and writes a Markdown article based only on that page.
func (r *Researcher) Article(ctx context.Context, topic string, w io.Writer) (Report, error) {
	log := r.logger.With(zap.String("task", "article"), zap.String("topic", topic))

	results, err := r.search.Search(ctx, topic)
	if err != nil {
		log.Warn("search failed", zap.Error(err))
		text, werr := write(w, fmt.Sprintf("I couldn't find a primary source on %q because the web search failed, so I cannot write an article based on web research.\n", topic))
		return Report{Markdown: text, Failures: []Failure{{Reason: "search failed: " + err.Error()}}}, werr
	}
	if len(results) == 0 {
		text, werr := write(w, fmt.Sprintf("I couldn't find a primary source on %q: the search returned no results, so I cannot write an article based on web research.\n", topic))
		return Report{Markdown: text}, werr
	}

	source, err := r.pick(ctx, topic, results)
	if err != nil {
		return Report{}, err
	}
	log.Info("source selected", zap.String("url", source.URL))

	doc, err := r.fetch.Fetch(ctx, source.URL)
	if err != nil {
		reason := readFailure(err)
		log.Warn("reading source failed", zap.String("url", source.URL), zap.Error(err))
		text, werr := write(w, fmt.Sprintf("I found a source on %q but could not read it: %s.\n\nSource: [%s](%s)\n\nA comprehensive article cannot be produced without the source text.\n",
			topic, reason, source.Title, source.URL))
		return Report{
			Markdown: text,
			Failures: []Failure{{URL: source.URL, Reason: reason}},
		}, werr
	}

	system, err := render(articleSystemTmpl, struct{ Date string }{r.date()})
	if err != nil {
		return Report{}, err
	}
	body, _ := scrape.Truncate(doc.Text, articleMaxChars)
	title := doc.Title
	if title == "" {
		title = source.Title
	}
	user, err := render(articleUserTmpl, struct{ Topic, Title, URL, Text string }{topic, title, source.URL, body})
	if err != nil {
		return Report{}, err
	}

	text, err := r.generate(ctx, system, user, w)
	if err != nil {
		return Report{}, err
	}
	return Report{Markdown: text, Sources: []types.SearchResult{source}}, nil
}

var leadingID = regexp.MustCompile(`\d+`)

// pick asks the model for the most authoritative result. A reply that names
// no listed ID falls back to the first result.
func (r *Researcher) pick(ctx context.Context, topic string, results []types.SearchResult) (types.SearchResult, error) {
	if len(results) == 1 {
		return results[0], nil
	}
	user, err := render(pickUserTmpl, struct{ Topic, Results string }{topic, listResults(results)})
	if err != nil {
		return types.SearchResult{}, err
	}
	reply, err := llm.Prompt(ctx, r.llm, pickInstruction, user, llm.Options{Temperature: 0.1})
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("selecting source: %w", err)
	}
	if m := leadingID.FindString(llm.StripThinking(reply)); m != "" {
		id, _ := strconv.Atoi(m)
		for _, res := range results {
			if res.ID == id {
				return res, nil
			}
		}
	}
	r.logger.Debug("unusable source selection, using first result", zap.String("reply", reply))
	return results[0], nil
}
