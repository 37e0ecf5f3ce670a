// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the search-agent
// pipelines: search results, scraped documents, chat messages, knowledge
// chunks, and the per-stage configuration structs.
package types

// SearchResult is one entry returned by a web search provider. Results are
// kept in provider order; ID is the zero-based position in that order and is
// the value the selection stage answers with.
type SearchResult struct {
	// ID is the zero-based index of this result in the provider's list.
	ID int `json:"id" yaml:"id"`

	// Title is the page title as returned by the provider.
	Title string `json:"title" yaml:"title"`

	// URL is the absolute link to the result page.
	URL string `json:"url" yaml:"url"`

	// Snippet is the short description shown by the provider.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Source names the provider that returned this result (e.g. "duckduckgo").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Document is the plain-text content scraped from a single URL. It is
// consumed by the stage that requested it and never cached.
type Document struct {
	// URL is the address the document was fetched from.
	URL string `json:"url" yaml:"url"`

	// Title is the page title if the page declared one.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Text is the extracted main content.
	Text string `json:"text" yaml:"text"`

	// Truncated reports whether Text was cut to the configured limit.
	Truncated bool `json:"truncated" yaml:"truncated"`
}
