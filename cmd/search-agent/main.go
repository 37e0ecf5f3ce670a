// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the search-agent CLI: an interactive
// chat that searches the web when a question needs fresh information, plus
// one-shot research tasks and a local knowledge base.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/logging"
	"github.com/pdiddy/search-agent/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// logger is built from --log-level and --log-format before any command runs.
var logger = zap.NewNop()

// rootCmd is the base command for the search-agent CLI.
var rootCmd = &cobra.Command{
	Use:   "search-agent",
	Short: "A chat assistant that searches the web when it needs to",
	Long: `search-agent answers questions with a local or hosted language model. For
each message the model first decides whether a web search is needed; if so it
writes a query, picks the most promising result, reads the page, checks that
the page is relevant, and answers from it.

Beyond the chat, research commands write an article, a news digest, or a
multi-page summary on a topic, and the knowledge commands answer questions
from a local text file.

API keys are read from the environment (a .env file is loaded when present)
or from files in .secrets/ named groq-api-key, google-api-key, and so on.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		l, err := logging.New(viper.GetString("log.level"), viper.GetString("log.format"))
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			sort.Strings(keys)
			logger.Info("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./search-agent.yaml or ~/.config/search-agent/config.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default warn)")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("secrets-dir", ".secrets", "directory of API key files")

	pf.String("provider", "ollama", "LLM provider: ollama, groq, or openai")
	pf.String("model", "", "model name (default depends on provider)")
	pf.String("llm-url", "", "override the LLM endpoint URL")
	pf.Duration("llm-timeout", 0, "timeout for a single model call (default 2m)")
	pf.Uint32("breaker-failures", 5, "consecutive model failures that open the circuit breaker (0 disables)")

	pf.String("search", "duckduckgo", "search provider: duckduckgo, google, brave, or tavily")
	pf.Int("max-results", 5, "search results requested per query")
	pf.Bool("browser", false, "read pages with headless Chrome instead of plain HTTP")
	pf.Duration("http-timeout", 0, "timeout for search and page requests (default 10s)")

	bindFlags(rootCmd, map[string]string{
		"log.level":            "log-level",
		"log.format":           "log-format",
		"secrets_dir":          "secrets-dir",
		"llm.provider":         "provider",
		"llm.model":            "model",
		"llm.base_url":         "llm-url",
		"llm.timeout":          "llm-timeout",
		"llm.breaker_failures": "breaker-failures",
		"search.provider":      "search",
		"search.max_results":   "max-results",
		"scrape.browser":       "browser",
		"http.timeout":         "http-timeout",
	})
}

// bindFlags ties viper keys to flags of cmd so config file values and
// SEARCH_AGENT_* environment variables fill in flags that were not set.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("search-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "search-agent"))
		}
	}

	viper.SetEnvPrefix("SEARCH_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
