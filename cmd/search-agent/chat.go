// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/pipeline"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat that searches the web when needed",
	Long: `Chat reads messages from standard input. For each message the model
decides whether a web search would help; if so it searches, reads the most
promising page, and answers from it. Otherwise it answers from its own
knowledge. The conversation history is kept for the whole session.

Type "/reset" to forget the conversation so far, and "quit" or "exit" (or
send end of input) to stop.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, err := newPipeline(os.Stdout, viper.GetString("metrics.addr"))
	if err != nil {
		return err
	}
	return chatLoop(ctx, p, os.Stdin, os.Stdout)
}

// newPipeline wires the configured model, search provider, and fetcher.
// Final answers stream to out. A non-empty metricsAddr exposes the pipeline
// counters over HTTP.
func newPipeline(out io.Writer, metricsAddr string) (*pipeline.Pipeline, error) {
	c, err := newLLM()
	if err != nil {
		return nil, err
	}
	s, err := newSearch(searchConfig())
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithOutput(out),
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, pipeline.WithMetrics(pipeline.NewMetrics(reg)))
		startMetricsServer(metricsAddr, reg)
	}
	return pipeline.New(c, s, newFetcher(), pipelineConfig(), opts...), nil
}

// resetCommand clears the conversation history without leaving the chat.
const resetCommand = "/reset"

// chatLoop runs pipeline turns until quit, exit, end of input, or
// cancellation.
func chatLoop(ctx context.Context, p *pipeline.Pipeline, in io.Reader, out io.Writer) error {
	return repl(ctx, in, out, func(ctx context.Context, input string) error {
		if input == resetCommand {
			p.Conversation().Reset()
			fmt.Fprint(out, "(conversation cleared)")
			return nil
		}
		res, err := p.Run(ctx, input)
		if err != nil {
			return err
		}
		logger.Debug("turn complete",
			zap.String("turn", res.TurnID),
			zap.Stringer("outcome", res.Outcome),
			zap.String("query", res.Query),
		)
		return nil
	})
}

// repl prompts for input lines and hands each to turn, which streams its
// answer to out. Blank lines are skipped. A failed turn is reported and the
// loop continues.
func repl(ctx context.Context, in io.Reader, out io.Writer, turn func(ctx context.Context, input string) error) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, "USER: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		fmt.Fprint(out, "ASSISTANT: ")
		if err := turn(ctx, input); err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out)
				return nil
			}
			fmt.Fprintf(out, "\nerror: %v\n\n", err)
			continue
		}
		fmt.Fprint(out, "\n\n")
	}
}

func init() {
	chatCmd.Flags().Int("candidates", 1, "results to try per turn when a page cannot be read or is off topic")
	chatCmd.Flags().Bool("decide-with-history", false, "show the previous exchange to the search decision")
	chatCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics at this address (e.g. :9090)")

	bindFlags(chatCmd, map[string]string{
		"pipeline.candidates":          "candidates",
		"pipeline.decide_with_history": "decide-with-history",
		"metrics.addr":                 "metrics-addr",
	})

	rootCmd.AddCommand(chatCmd)
}
