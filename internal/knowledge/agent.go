// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/llm"
	"github.com/pdiddy/search-agent/pkg/types"
)

const answerTemperature = 0.3

var agentSystemTmpl = template.Must(template.New("knowledge").Parse(`You are a helpful AI assistant. You answer questions based on the provided knowledge. If the information is not in the knowledge base, say so.

The current date is {{.Date}}.

Answer in the language of the question. Format the answer in Markdown.`))

var agentUserTmpl = template.Must(template.New("knowledge-user").Parse(`---BEGIN KNOWLEDGE---
{{- range $i, $m := .Matches}}
[{{$i}}] {{$m.Source}} #{{$m.Seq}}
{{$m.Content}}
{{end}}
{{- if not .Matches}}
(no matching passages)
{{end -}}
---END KNOWLEDGE---

QUESTION: {{.Question}}`))

// Retriever finds passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Match, error)
}

// Agent answers questions from a knowledge base.
type Agent struct {
	retriever Retriever
	llm       llm.Completer
	limit     int
	logger    *zap.Logger

	// Now returns the date added to instructions. Tests replace it.
	Now func() time.Time
}

// NewAgent returns an agent that retrieves cfg.MaxResults passages per
// question.
func NewAgent(r Retriever, c llm.Completer, cfg types.KnowledgeBaseConfig, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		retriever: r,
		llm:       c,
		limit:     cfg.WithDefaults().MaxResults,
		logger:    logger,
		Now:       time.Now,
	}
}

// Answer is the reply to a question and the passages it drew on.
type Answer struct {
	Text    string
	Matches []Match
}

// Ask retrieves passages for question and asks the model to answer from
// them, streaming the reply to w when w is non-nil.
func (a *Agent) Ask(ctx context.Context, question string, w io.Writer) (Answer, error) {
	matches, err := a.retriever.Retrieve(ctx, question, a.limit)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving passages: %w", err)
	}
	a.logger.Debug("passages retrieved", zap.String("question", question), zap.Int("count", len(matches)))

	var sys, user bytes.Buffer
	if err := agentSystemTmpl.Execute(&sys, struct{ Date string }{a.Now().Format("Monday, January 2, 2006")}); err != nil {
		return Answer{}, fmt.Errorf("rendering prompt: %w", err)
	}
	if err := agentUserTmpl.Execute(&user, struct {
		Matches  []Match
		Question string
	}{matches, question}); err != nil {
		return Answer{}, fmt.Errorf("rendering prompt: %w", err)
	}

	msgs := []types.Message{types.SystemMessage(sys.String()), types.UserMessage(user.String())}
	text, err := llm.Respond(ctx, a.llm, msgs, llm.Options{Temperature: answerTemperature}, w)
	if err != nil {
		return Answer{}, fmt.Errorf("answering: %w", err)
	}
	return Answer{Text: llm.StripThinking(text), Matches: matches}, nil
}
