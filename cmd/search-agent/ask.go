// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/search-agent/internal/pipeline"
	"github.com/pdiddy/search-agent/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question, searching the web if needed",
	Long: `Ask runs one chat turn for the question given as arguments and prints the
answer. With --json the answer is printed together with the search query,
the outcome of the turn, the page used, and the stages that ran.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// askOutput is the JSON form of a single turn.
type askOutput struct {
	TurnID   string              `json:"turn_id"`
	Question string              `json:"question"`
	Query    string              `json:"query,omitempty"`
	Outcome  pipeline.Outcome    `json:"outcome"`
	Source   *types.SearchResult `json:"source,omitempty"`
	Stages   []pipeline.Stage    `json:"stages"`
	Response string              `json:"response"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	question := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var out io.Writer = os.Stdout
	if jsonOutput {
		out = io.Discard
	}
	p, err := newPipeline(out, "")
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, question)
	if err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Println()
		return nil
	}

	o := askOutput{
		TurnID:   res.TurnID,
		Question: question,
		Query:    res.Query,
		Outcome:  res.Outcome,
		Source:   res.Source,
		Stages:   res.Trace,
		Response: res.Response,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

func init() {
	askCmd.Flags().Bool("json", false, "print the turn as JSON")
	rootCmd.AddCommand(askCmd)
}
