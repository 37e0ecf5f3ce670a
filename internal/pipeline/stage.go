// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Stage identifies a step of a chat turn.
type Stage int

const (
	StageStart Stage = iota
	StageDecide
	StageQuery
	StageSearch
	StageSelect
	StageScrape
	StageRelevance
	StageRespond
	StageDone
)

var stageNames = [...]string{
	StageStart:     "start",
	StageDecide:    "decide",
	StageQuery:     "query",
	StageSearch:    "search",
	StageSelect:    "select",
	StageScrape:    "scrape",
	StageRelevance: "relevance",
	StageRespond:   "respond",
	StageDone:      "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome records how a turn reached the response stage. It decides which
// instruction the responder receives.
type Outcome int

const (
	// OutcomePending means no terminal condition has been reached yet.
	OutcomePending Outcome = iota
	// OutcomeNoSearch means the model answered without searching.
	OutcomeNoSearch
	// OutcomeNoQuery means query formulation produced nothing usable.
	OutcomeNoQuery
	// OutcomeNoResults means the provider returned an empty list.
	OutcomeNoResults
	// OutcomeNoSelection means no result was chosen.
	OutcomeNoSelection
	// OutcomeScrapeFailed means the chosen page could not be read.
	OutcomeScrapeFailed
	// OutcomeIrrelevant means the page was read but judged unhelpful.
	OutcomeIrrelevant
	// OutcomeGrounded means the answer is based on the scraped page.
	OutcomeGrounded
)

var outcomeNames = [...]string{
	OutcomePending:      "pending",
	OutcomeNoSearch:     "no_search",
	OutcomeNoQuery:      "no_query",
	OutcomeNoResults:    "no_results",
	OutcomeNoSelection:  "no_selection",
	OutcomeScrapeFailed: "scrape_failed",
	OutcomeIrrelevant:   "irrelevant",
	OutcomeGrounded:     "grounded",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Turn is the transient state of one user turn. It is created when the
// user message arrives and discarded once the response is recorded.
type Turn struct {
	ID    string
	Input string
	Stage Stage

	NeedsSearch bool
	Query       string

	// Results holds the candidates not yet tried, in provider order. A
	// selected result is removed before it is scraped.
	Results []types.SearchResult

	// Budget is the number of scrapes still allowed this turn.
	Budget int

	Selected  *types.SearchResult
	Document  *types.Document
	ScrapeErr error
	Relevant  bool

	Outcome  Outcome
	Response string

	// Trace lists the stages executed, in order.
	Trace []Stage
}

// Next returns the stage that follows t.Stage given the state the current
// stage left behind. It does not modify t.
func Next(t *Turn) Stage {
	switch t.Stage {
	case StageStart:
		return StageDecide
	case StageDecide:
		if t.NeedsSearch {
			return StageQuery
		}
		return StageRespond
	case StageQuery:
		if t.Query != "" {
			return StageSearch
		}
		return StageRespond
	case StageSearch:
		if len(t.Results) > 0 {
			return StageSelect
		}
		return StageRespond
	case StageSelect:
		if t.Selected != nil {
			return StageScrape
		}
		return StageRespond
	case StageScrape:
		if t.Document != nil {
			return StageRelevance
		}
		return retryOrRespond(t)
	case StageRelevance:
		if t.Relevant {
			return StageRespond
		}
		return retryOrRespond(t)
	default:
		return StageDone
	}
}

// retryOrRespond returns to selection while candidates and scrape budget
// remain.
func retryOrRespond(t *Turn) Stage {
	if t.Budget > 0 && len(t.Results) > 0 {
		return StageSelect
	}
	return StageRespond
}
