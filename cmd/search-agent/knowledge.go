// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/search-agent/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Answer questions from a local text file (load, ask, retrieve, export)",
	Long: `Knowledge manages a local SQLite knowledge base built from a plain-text
file. The file is split into overlapping chunks indexed with FTS5 full-text
search and, when --embed-model is set, Ollama embeddings for semantic
ranking. Unchanged files are skipped on subsequent loads.`,
}

// --- load subcommand ---

var knowledgeLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Index a text file into the knowledge base",
	Long: `Load splits the --source file into chunks and indexes them. A file that
has not changed since it was last indexed is skipped. --recreate clears the
whole index first.`,
	RunE: runKnowledgeLoad,
}

func runKnowledgeLoad(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	recreate, _ := cmd.Flags().GetBool("recreate")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Load(context.Background(), source, recreate, os.Stdout)
	return err
}

// --- ask subcommand ---

var knowledgeAskCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the knowledge base",
	Long: `Ask retrieves the passages most relevant to the question and has the
model answer from them; the model says so when the answer is not in the
knowledge base. Without a question, ask reads questions interactively.

With --source the file is loaded first (skipped when unchanged).`,
	RunE: runKnowledgeAsk,
}

func runKnowledgeAsk(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if source != "" {
		if _, err := store.Load(ctx, source, false, os.Stderr); err != nil {
			return err
		}
	}

	c, err := newLLM()
	if err != nil {
		return err
	}
	agent := knowledge.NewAgent(store, c, knowledgeConfig(), logger)

	if len(args) == 0 {
		return repl(ctx, os.Stdin, os.Stdout, func(ctx context.Context, question string) error {
			_, err := agent.Ask(ctx, question, os.Stdout)
			return err
		})
	}

	if _, err := agent.Ask(ctx, strings.Join(args, " "), os.Stdout); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

// --- retrieve subcommand ---

var knowledgeRetrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Show the passages the knowledge base returns for a query",
	Long: `Retrieve runs the same ranking the ask command uses and prints the
matching passages with their source, position, and score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKnowledgeRetrieve,
}

func runKnowledgeRetrieve(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	matches, err := store.Retrieve(context.Background(), strings.Join(args, " "), viper.GetInt("knowledge.max_results"))
	if err != nil {
		return err
	}
	return formatRetrieveOutput(matches, jsonOutput)
}

func formatRetrieveOutput(matches []knowledge.Match, jsonOutput bool) error {
	if jsonOutput {
		if matches == nil {
			matches = []knowledge.Match{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("%d. %s #%d  (score %.3f)\n", i+1, m.Source, m.Seq, m.Score)
		fmt.Printf("   %s\n\n", truncate(m.Content, 300))
	}
	fmt.Printf("%d result(s)\n", len(matches))
	return nil
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the knowledge base to YAML or JSON",
	Long: `Export writes every indexed source and chunk to
<knowledge-dir>/index/export.yaml or export.json. With --stdout the export
is printed instead.`,
	RunE: runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	toStdout, _ := cmd.Flags().GetBool("stdout")

	format = strings.ToLower(format)
	switch format {
	case knowledge.FormatYAML, knowledge.FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if toStdout {
		return store.Export(context.Background(), os.Stdout, format)
	}
	path, err := store.ExportFile(context.Background(), format)
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

// openStore opens the knowledge base, with an Ollama embedder when an
// embedding model is configured.
func openStore() (*knowledge.Store, error) {
	cfg := knowledgeConfig()

	var embedder knowledge.Embedder
	if cfg.EmbedModel != "" {
		embedder = knowledge.NewOllamaEmbedder(ollamaHost(), cfg.EmbedModel, viper.GetDuration("llm.timeout"))
	}
	return knowledge.NewStore(cfg, embedder)
}

func init() {
	pf := knowledgeCmd.PersistentFlags()
	pf.String("knowledge-dir", "knowledge", "base directory for the knowledge base (contains index/)")
	pf.Int("limit", 5, "passages retrieved per question")
	pf.Int("chunk-size", 800, "target chunk length in characters")
	pf.Int("chunk-overlap", 100, "characters repeated at the start of the next chunk")
	pf.String("embed-model", "", "Ollama embedding model, e.g. "+knowledge.DefaultEmbedModel+" (empty: full-text ranking only)")

	bindFlags(knowledgeCmd, map[string]string{
		"knowledge.dir":           "knowledge-dir",
		"knowledge.max_results":   "limit",
		"knowledge.chunk_size":    "chunk-size",
		"knowledge.chunk_overlap": "chunk-overlap",
		"knowledge.embed_model":   "embed-model",
	})

	knowledgeLoadCmd.Flags().String("source", "air.txt", "text file to index")
	knowledgeLoadCmd.Flags().Bool("recreate", false, "clear the index before loading")

	knowledgeAskCmd.Flags().String("source", "", "load this text file before answering")

	knowledgeRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	knowledgeExportCmd.Flags().String("format", knowledge.FormatYAML, "export format: yaml or json")
	knowledgeExportCmd.Flags().Bool("stdout", false, "print the export instead of writing a file")

	knowledgeCmd.AddCommand(knowledgeLoadCmd)
	knowledgeCmd.AddCommand(knowledgeAskCmd)
	knowledgeCmd.AddCommand(knowledgeRetrieveCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
