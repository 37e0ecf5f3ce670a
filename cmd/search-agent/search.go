// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/search-agent/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a web search and print the results",
	Long: `Search sends the query to the configured search provider and prints the
numbered results: title, link, and snippet. Use --dedupe to drop results that
point at the same page and --json for machine-readable output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		dedupe, _ := cmd.Flags().GetBool("dedupe")

		p, err := newSearch(searchConfig())
		if err != nil {
			return err
		}

		results, err := p.Search(context.Background(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if dedupe {
			var dropped int
			results, dropped = search.Dedupe(results)
			if dropped > 0 {
				fmt.Fprintf(os.Stderr, "dropped %d duplicate result(s)\n", dropped)
			}
		}

		if jsonOutput {
			return search.FormatJSON(results, os.Stdout)
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}
		search.FormatTable(results, os.Stdout)
		return nil
	},
}

func init() {
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("dedupe", false, "drop results that point at the same page")

	rootCmd.AddCommand(searchCmd)
}
