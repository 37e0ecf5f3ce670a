// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one chat turn of the web-search agent as a chain of
// stages: decide whether to search, formulate a query, search, select a
// result, scrape it, judge its relevance, and respond. Each stage is a
// single model or network call; the transitions between them are computed
// by Next from the turn state alone.
package pipeline

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/llm"
	"github.com/pdiddy/search-agent/internal/scrape"
	"github.com/pdiddy/search-agent/internal/search"
	"github.com/pdiddy/search-agent/pkg/types"
)

// Result summarizes a completed turn.
type Result struct {
	TurnID   string
	Response string
	Outcome  Outcome
	Query    string

	// Source is the page the answer is grounded on. It is nil unless
	// Outcome is OutcomeGrounded.
	Source *types.SearchResult

	Trace []Stage
}

// Searched reports whether the turn reached the search provider.
func (r Result) Searched() bool {
	for _, s := range r.Trace {
		if s == StageSearch {
			return true
		}
	}
	return false
}

// Pipeline holds the collaborators and history of one chat session. It is
// not safe to run two turns concurrently on the same Pipeline.
type Pipeline struct {
	llm     llm.Completer
	search  search.Provider
	fetch   scrape.Fetcher
	cfg     types.PipelineConfig
	logger  *zap.Logger
	metrics *Metrics
	out     io.Writer
	history *Conversation
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for stage transitions.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records turn and stage counters.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithOutput streams the final response to w as it is generated.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithConversation continues an existing history instead of starting a
// new one.
func WithConversation(c *Conversation) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.history = c
		}
	}
}

// New returns a pipeline over the given model, search provider, and page
// fetcher.
func New(c llm.Completer, s search.Provider, f scrape.Fetcher, cfg types.PipelineConfig, opts ...Option) *Pipeline {
	cfg = cfg.WithDefaults()
	p := &Pipeline{
		llm:    c,
		search: s,
		fetch:  f,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.history == nil {
		p.history = NewConversation(cfg.SystemPrompt)
	}
	return p
}

// Conversation returns the session history.
func (p *Pipeline) Conversation() *Conversation { return p.history }

// Run executes one turn for the user's input. Model and search failures
// abort the turn with a *StageError and leave the history unchanged. A page
// that cannot be scraped does not abort the turn; the response stage is told
// the web source was unavailable.
func (p *Pipeline) Run(ctx context.Context, input string) (Result, error) {
	start := time.Now()
	t := &Turn{
		ID:     uuid.NewString(),
		Input:  input,
		Stage:  StageStart,
		Budget: p.cfg.Candidates,
	}
	log := p.logger.With(zap.String("turn", t.ID))
	log.Debug("turn started", zap.String("input", input))

	for t.Stage != StageDone {
		if err := p.step(ctx, t, log); err != nil {
			p.metrics.failed(t.Stage)
			log.Warn("turn aborted", zap.Stringer("stage", t.Stage), zap.Error(err))
			return Result{TurnID: t.ID, Query: t.Query, Trace: t.Trace}, &StageError{Stage: t.Stage, Err: err}
		}
		if t.Stage != StageStart {
			t.Trace = append(t.Trace, t.Stage)
			p.metrics.stage(t.Stage)
		}
		next := Next(t)
		log.Debug("stage complete",
			zap.Stringer("stage", t.Stage),
			zap.Stringer("next", next),
			zap.Stringer("outcome", t.Outcome))
		t.Stage = next
	}

	p.history.Add(t.Input, t.Response)
	p.metrics.completed(t.Outcome, time.Since(start))
	log.Info("turn complete",
		zap.Stringer("outcome", t.Outcome),
		zap.String("query", t.Query),
		zap.Duration("elapsed", time.Since(start)))

	res := Result{
		TurnID:   t.ID,
		Response: t.Response,
		Outcome:  t.Outcome,
		Query:    t.Query,
		Trace:    t.Trace,
	}
	if t.Outcome == OutcomeGrounded {
		res.Source = t.Selected
	}
	return res, nil
}

func (p *Pipeline) step(ctx context.Context, t *Turn, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch t.Stage {
	case StageStart:
		return nil
	case StageDecide:
		return p.decide(ctx, t)
	case StageQuery:
		return p.formulate(ctx, t)
	case StageSearch:
		return p.searchWeb(ctx, t, log)
	case StageSelect:
		return p.selectResult(ctx, t, log)
	case StageScrape:
		return p.scrapePage(ctx, t, log)
	case StageRelevance:
		return p.judge(ctx, t)
	case StageRespond:
		return p.respond(ctx, t)
	}
	return nil
}

// decide asks whether the latest message needs a web search.
func (p *Pipeline) decide(ctx context.Context, t *Turn) error {
	msgs := []types.Message{types.SystemMessage(decideInstruction)}
	if p.cfg.DecideWithHistory {
		msgs = append(msgs, p.history.LastExchange()...)
	}
	msgs = append(msgs, types.UserMessage(t.Input))

	reply, err := p.llm.Complete(ctx, msgs, llm.Options{Temperature: p.cfg.DecisionTemperature})
	if err != nil {
		return err
	}
	t.NeedsSearch = isTrue(reply)
	if !t.NeedsSearch {
		t.Outcome = OutcomeNoSearch
	}
	return nil
}

// formulate turns the user's message into a search query.
func (p *Pipeline) formulate(ctx context.Context, t *Turn) error {
	user, err := render(queryTmpl, promptData{Prompt: t.Input})
	if err != nil {
		return err
	}
	reply, err := llm.Prompt(ctx, p.llm, queryInstruction, user, llm.Options{Temperature: p.cfg.ChatTemperature})
	if err != nil {
		return err
	}
	t.Query = cleanQuery(reply)
	if t.Query == "" {
		t.Outcome = OutcomeNoQuery
	}
	return nil
}

func (p *Pipeline) searchWeb(ctx context.Context, t *Turn, log *zap.Logger) error {
	results, err := p.search.Search(ctx, t.Query)
	if err != nil {
		return err
	}
	log.Debug("search results", zap.String("provider", p.search.Name()), zap.Int("count", len(results)))
	t.Results = results
	if len(results) == 0 {
		t.Outcome = OutcomeNoResults
	}
	return nil
}

// selectResult asks the model to pick one of the remaining results by ID.
// An unparseable reply is asked again up to SelectAttempts times. A reply
// naming no listed ID counts as "none".
func (p *Pipeline) selectResult(ctx context.Context, t *Turn, log *zap.Logger) error {
	t.Selected, t.Document, t.Relevant = nil, nil, false
	if len(t.Results) == 0 {
		p.settle(t, OutcomeNoSelection)
		return nil
	}

	user, err := render(selectTmpl, promptData{
		Prompt:  t.Input,
		Query:   t.Query,
		Results: FormatResults(t.Results),
	})
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= p.cfg.SelectAttempts; attempt++ {
		reply, err := llm.Prompt(ctx, p.llm, selectInstruction, user, llm.Options{Temperature: p.cfg.ChatTemperature})
		if err != nil {
			return err
		}
		id, kind := parseSelection(reply)
		switch kind {
		case selectionNone:
			p.settle(t, OutcomeNoSelection)
			return nil
		case selectionID:
			if i := indexOf(t.Results, id); i >= 0 {
				r := t.Results[i]
				t.Results = append(t.Results[:i:i], t.Results[i+1:]...)
				t.Selected = &r
				return nil
			}
			log.Debug("selection out of range", zap.Int("id", id))
			p.settle(t, OutcomeNoSelection)
			return nil
		default:
			log.Debug("unparseable selection", zap.Int("attempt", attempt), zap.String("reply", reply))
		}
	}
	p.settle(t, OutcomeNoSelection)
	return nil
}

// scrapePage fetches the selected page. A fetch error is recorded on the
// turn rather than returned.
func (p *Pipeline) scrapePage(ctx context.Context, t *Turn, log *zap.Logger) error {
	t.Budget--
	doc, err := p.fetch.Fetch(ctx, t.Selected.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("scrape failed", zap.String("url", t.Selected.URL), zap.Error(err))
		t.ScrapeErr = err
		t.Outcome = OutcomeScrapeFailed
		return nil
	}
	t.Document = &doc
	return nil
}

// judge asks whether the scraped page helps answer the request.
func (p *Pipeline) judge(ctx context.Context, t *Turn) error {
	page, _ := scrape.Truncate(t.Document.Text, p.cfg.MaxContextChars)
	user, err := render(relevanceTmpl, promptData{Prompt: t.Input, Query: t.Query, Page: page})
	if err != nil {
		return err
	}
	reply, err := llm.Prompt(ctx, p.llm, relevanceInstruction, user, llm.Options{Temperature: p.cfg.DecisionTemperature})
	if err != nil {
		return err
	}
	t.Relevant = isTrue(reply)
	if t.Relevant {
		t.Outcome = OutcomeGrounded
	} else {
		t.Outcome = OutcomeIrrelevant
	}
	return nil
}

// respond generates the final answer from the history plus an instruction
// chosen by the turn's outcome.
func (p *Pipeline) respond(ctx context.Context, t *Turn) error {
	instruction, err := p.instruction(t)
	if err != nil {
		return err
	}
	msgs := append(p.history.Messages(), types.UserMessage(instruction))
	reply, err := llm.Respond(ctx, p.llm, msgs, llm.Options{Temperature: p.cfg.ResponseTemperature}, p.out)
	if err != nil {
		return err
	}
	t.Response = llm.StripThinking(reply)
	return nil
}

func (p *Pipeline) instruction(t *Turn) (string, error) {
	switch t.Outcome {
	case OutcomeNoSearch:
		return t.Input, nil
	case OutcomeGrounded:
		page, _ := scrape.Truncate(t.Document.Text, p.cfg.MaxContextChars)
		title := t.Document.Title
		if title == "" {
			title = t.Selected.Title
		}
		return render(groundedTmpl, promptData{
			Prompt:  t.Input,
			Context: page,
			Title:   title,
			URL:     t.Selected.URL,
		})
	case OutcomeScrapeFailed:
		return render(scrapeFailedTmpl, promptData{Prompt: t.Input})
	default:
		return render(notFoundTmpl, promptData{Prompt: t.Input})
	}
}

// settle sets the outcome unless an earlier candidate already set one.
func (p *Pipeline) settle(t *Turn, o Outcome) {
	if t.Outcome == OutcomePending {
		t.Outcome = o
	}
}

// isTrue reports whether a yes/no reply affirms.
func isTrue(reply string) bool {
	return strings.Contains(strings.ToLower(llm.StripThinking(reply)), "true")
}

// cleanQuery keeps the first non-empty line of the reply and strips
// surrounding quotes.
func cleanQuery(reply string) string {
	s := llm.StripThinking(reply)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.Trim(line, "\"'`"))
		return line
	}
	return ""
}

type selectionKind int

const (
	selectionInvalid selectionKind = iota
	selectionNone
	selectionID
)

var (
	firstInt = regexp.MustCompile(`-?\d+`)
	noneWord = regexp.MustCompile(`\bnone\b`)
)

// parseSelection reads an ID out of a selection reply. A bare integer is an
// ID. Otherwise the word "none" anywhere wins over digits in the text, so
// "none of results 0-2" selects nothing.
func parseSelection(reply string) (int, selectionKind) {
	s := strings.TrimSpace(strings.ToLower(llm.StripThinking(reply)))
	if s == "" {
		return 0, selectionInvalid
	}
	if id, err := strconv.Atoi(s); err == nil {
		return selectionOf(id)
	}
	if noneWord.MatchString(s) {
		return 0, selectionNone
	}
	m := firstInt.FindString(s)
	if m == "" {
		return 0, selectionInvalid
	}
	id, err := strconv.Atoi(m)
	if err != nil {
		return 0, selectionInvalid
	}
	return selectionOf(id)
}

func selectionOf(id int) (int, selectionKind) {
	if id < 0 {
		return 0, selectionNone
	}
	return id, selectionID
}

func indexOf(results []types.SearchResult, id int) int {
	for i, r := range results {
		if r.ID == id {
			return i
		}
	}
	return -1
}
