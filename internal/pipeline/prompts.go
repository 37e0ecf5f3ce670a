// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/search-agent/pkg/types"
)

// decideInstruction asks for a yes/no judgment on whether the latest user
// message needs fresh web data.
const decideInstruction = `You are not an AI assistant that answers the user. You are a model that decides whether a web search is needed before the assistant replies to the user's latest message.

A search is needed when the message asks about current events, live data such as weather, prices, or scores, recent releases, or specific facts you cannot state reliably from memory. A search is not needed for greetings, arithmetic, general knowledge, writing help, or follow-ups that the conversation already answers.

Respond only with "True" if a search is needed or "False" if it is not. Do not explain.`

// queryInstruction asks for a single search-engine query.
const queryInstruction = `You are a web search query generator. Given the user's request, write the single best short search engine query that would find the information needed to answer it. Include names, places, and dates from the request when they matter.

Respond only with the query text. Do not add quotes, labels, or explanations.`

// selectInstruction asks for the ID of the most promising result.
const selectInstruction = `You select the single search result most likely to contain the information needed to answer the user's request. Each result has an ID, a title, a link, and a snippet.

Respond only with the ID number of the best result. If none of the results could help, respond with "none".`

// relevanceInstruction asks whether scraped page text answers the request.
const relevanceInstruction = `You judge whether the text of a web page contains information that helps answer the user's request. The page was found by the search query shown.

Respond only with "True" if the page is useful or "False" if it is not. Do not explain.`

var queryTmpl = template.Must(template.New("query").Parse(`CREATE A SEARCH QUERY FOR THIS PROMPT:
{{.Prompt}}`))

var selectTmpl = template.Must(template.New("select").Parse(`SEARCH_RESULTS:
{{.Results}}

USER_PROMPT: {{.Prompt}}

SEARCH_QUERY: {{.Query}}`))

var relevanceTmpl = template.Must(template.New("relevance").Parse(`PAGE_TEXT:
{{.Page}}

USER_PROMPT: {{.Prompt}}

SEARCH_QUERY: {{.Query}}`))

var groundedTmpl = template.Must(template.New("grounded").Parse(`Based on the following information: 
---BEGIN INFO---
Source: {{.Title}} ({{.URL}})

{{.Context}}
---END INFO---

Please answer this question or address this request: "{{.Prompt}}"`))

var notFoundTmpl = template.Must(template.New("notfound").Parse(`I tried to find information on the web to answer your request: "{{.Prompt}}", but I couldn't find relevant information or the search failed. Please answer based on your general knowledge, or state that you couldn't find the specific information.`))

var scrapeFailedTmpl = template.Must(template.New("scrapefailed").Parse(`I tried to find information on the web to answer your request: "{{.Prompt}}", but the page I selected could not be retrieved. Please answer based on your general knowledge, and say that the web source could not be read.`))

type promptData struct {
	Prompt  string
	Query   string
	Results string
	Page    string
	Context string
	Title   string
	URL     string
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// FormatResults renders results the way the selection prompt lists them.
func FormatResults(results []types.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("ID: %d\nTitle: %s\nLink: %s\nSnippet: %s\n---", r.ID, r.Title, r.URL, r.Snippet))
	}
	return strings.Join(blocks, "\n")
}
