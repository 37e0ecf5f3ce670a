// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/search-agent/internal/research"
	"github.com/pdiddy/search-agent/pkg/types"
)

// --- article ---

var articleCmd = &cobra.Command{
	Use:   "article <topic>",
	Short: "Write a news-style article from the best search result",
	Long: `Article searches for the topic, lets the model pick the most useful
result, reads that page, and writes an article from it in the style of a
newspaper piece.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResearch(cmd, args, (*research.Researcher).Article, 0)
	},
}

// --- news ---

var newsCmd = &cobra.Command{
	Use:   "news <topic>",
	Short: "Summarize the most recent news on a topic from search snippets",
	Long: `News searches for recent coverage of the topic and summarizes the top
items from the result titles and snippets. No pages are read.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResearch(cmd, args, (*research.Researcher).News, 0)
	},
}

// --- digest ---

var digestCmd = &cobra.Command{
	Use:   "digest <query>",
	Short: "Read several result pages and summarize them together",
	Long: `Digest searches for the query, reads the first few distinct result pages,
and writes a combined summary that cites each page. Pages that cannot be
read are listed with the reason.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Ask for a couple of spare results so duplicates do not leave the
		// digest short.
		return runResearch(cmd, args, (*research.Researcher).Digest, researchConfig().Links+2)
	},
}

type researchTask func(r *research.Researcher, ctx context.Context, topic string, w io.Writer) (research.Report, error)

// runResearch builds a Researcher and runs task on the joined arguments.
// maxResults overrides the search result count when positive.
func runResearch(cmd *cobra.Command, args []string, task researchTask, maxResults int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := newLLM()
	if err != nil {
		return err
	}
	scfg := searchConfig()
	if maxResults > 0 {
		scfg.MaxResults = maxResults
	}
	s, err := newSearch(scfg)
	if err != nil {
		return err
	}

	rcfg := researchConfig()
	if cmd.Flags().Changed("temperature") {
		rcfg.Temperature, _ = cmd.Flags().GetFloat64("temperature")
	}
	r := research.New(c, s, newFetcher(), rcfg, logger)
	report, err := task(r, ctx, strings.Join(args, " "), os.Stdout)
	if err != nil {
		return err
	}
	fmt.Println()

	reportPath, _ := cmd.Flags().GetString("report")
	if reportPath == "" {
		return nil
	}
	if err := writeReport(reportPath, report); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", reportPath)
	return nil
}

// writeReport saves the report as JSON when path ends in .json and as YAML
// otherwise.
func writeReport(path string, report research.Report) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func init() {
	for _, cmd := range []*cobra.Command{articleCmd, newsCmd, digestCmd} {
		cmd.Flags().String("report", "", "also save sources and failures to this file (.yaml or .json)")
		cmd.Flags().Float64("temperature", types.ResearchConfig{}.WithDefaults().Temperature, "sampling temperature for the writing step")
		rootCmd.AddCommand(cmd)
	}
	newsCmd.Flags().Int("items", 2, "number of news items to report")
	digestCmd.Flags().Int("links", 3, "number of result pages to read")
	digestCmd.Flags().Int("max-page-chars", 2000, "characters kept from each page")

	bindFlags(newsCmd, map[string]string{"research.items": "items"})
	bindFlags(digestCmd, map[string]string{
		"research.links":          "links",
		"research.max_page_chars": "max-page-chars",
	})
}
