// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/search-agent/internal/llm"
	"github.com/pdiddy/search-agent/internal/scrape"
	"github.com/pdiddy/search-agent/internal/search"
	"github.com/pdiddy/search-agent/pkg/types"
)

// Secret file names consulted for provider credentials.
const (
	groqKeyFile   = "groq-api-key"
	openAIKeyFile = "openai-api-key"
	googleKeyFile = "google-api-key"
	googleCSEFile = "google-cse-id"
	braveKeyFile  = "brave-api-key"
	tavilyKeyFile = "tavily-api-key"
)

func httpConfig() types.HTTPConfig {
	return types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}.WithDefaults()
}

// llmConfig resolves the model provider settings. The Groq model may also
// come from GROQ_MODEL_ID.
func llmConfig() types.LLMConfig {
	cfg := types.LLMConfig{
		Provider:        strings.ToLower(viper.GetString("llm.provider")),
		Model:           viper.GetString("llm.model"),
		BaseURL:         viper.GetString("llm.base_url"),
		Timeout:         viper.GetDuration("llm.timeout"),
		BreakerFailures: viper.GetUint32("llm.breaker_failures"),
		BreakerTimeout:  viper.GetDuration("llm.breaker_timeout"),
	}
	switch cfg.Provider {
	case "", llm.ProviderOllama:
		cfg.BaseURL = ollamaHost()
	case llm.ProviderGroq:
		cfg.APIKey = loadedSecrets.Get(groqKeyFile)
		if cfg.Model == "" {
			cfg.Model = os.Getenv("GROQ_MODEL_ID")
		}
	case llm.ProviderOpenAI:
		cfg.APIKey = loadedSecrets.Get(openAIKeyFile)
	}
	return cfg
}

// ollamaHost returns the Ollama server: --llm-url when the provider is
// Ollama, then OLLAMA_HOST, then the local default.
func ollamaHost() string {
	provider := strings.ToLower(viper.GetString("llm.provider"))
	if url := viper.GetString("llm.base_url"); url != "" && (provider == "" || provider == llm.ProviderOllama) {
		return url
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		return host
	}
	return llm.DefaultOllamaHost
}

// healthTimeout bounds the startup health check of a local model server.
const healthTimeout = 3 * time.Second

func newLLM() (llm.Completer, error) {
	c, err := llm.NewProvider(llmConfig(), logger)
	if err != nil {
		return nil, err
	}
	warnIfUnreachable(os.Stderr, c)
	return c, nil
}

// warnIfUnreachable prints a warning when the model server does not answer
// a health check. Commands still run; the first model call reports the
// actual failure.
func warnIfUnreachable(w io.Writer, c llm.Completer) {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()
	if err := llm.CheckHealth(ctx, c); err != nil {
		logger.Warn("model server health check failed", zap.Error(err))
		fmt.Fprintf(w, "warning: %v; is the server running at %s?\n", err, ollamaHost())
	}
}

func searchConfig() types.SearchConfig {
	cfg := types.SearchConfig{
		HTTPConfig:    httpConfig(),
		Provider:      strings.ToLower(viper.GetString("search.provider")),
		MaxResults:    viper.GetInt("search.max_results"),
		Depth:         viper.GetString("search.depth"),
		RatePerSecond: viper.GetFloat64("search.rate_per_second"),
	}
	switch cfg.Provider {
	case "google":
		cfg.APIKey = loadedSecrets.Get(googleKeyFile)
		cfg.EngineID = loadedSecrets.Get(googleCSEFile)
	case "brave":
		cfg.APIKey = loadedSecrets.Get(braveKeyFile)
	case "tavily":
		cfg.APIKey = loadedSecrets.Get(tavilyKeyFile)
	}
	return cfg.WithDefaults()
}

func newSearch(cfg types.SearchConfig) (search.Provider, error) {
	return search.New(cfg)
}

func scrapeConfig() types.ScrapeConfig {
	return types.ScrapeConfig{
		HTTPConfig: httpConfig(),
		MaxChars:   viper.GetInt("scrape.max_chars"),
		Browser:    viper.GetBool("scrape.browser"),
	}
}

func newFetcher() scrape.Fetcher {
	return scrape.New(scrapeConfig())
}

// pipelineConfig reads the chat pipeline tunables. Unset values take the
// pipeline defaults.
func pipelineConfig() types.PipelineConfig {
	return types.PipelineConfig{
		SystemPrompt:        viper.GetString("pipeline.system_prompt"),
		DecisionTemperature: viper.GetFloat64("pipeline.decision_temperature"),
		ChatTemperature:     viper.GetFloat64("pipeline.chat_temperature"),
		ResponseTemperature: viper.GetFloat64("pipeline.response_temperature"),
		SelectAttempts:      viper.GetInt("pipeline.select_attempts"),
		Candidates:          viper.GetInt("pipeline.candidates"),
		MaxContextChars:     viper.GetInt("pipeline.max_context_chars"),
		DecideWithHistory:   viper.GetBool("pipeline.decide_with_history"),
	}.WithDefaults()
}

func researchConfig() types.ResearchConfig {
	return types.ResearchConfig{
		Items:        viper.GetInt("research.items"),
		Links:        viper.GetInt("research.links"),
		MaxPageChars: viper.GetInt("research.max_page_chars"),
		Temperature:  viper.GetFloat64("research.temperature"),
	}.WithDefaults()
}

func knowledgeConfig() types.KnowledgeBaseConfig {
	return types.KnowledgeBaseConfig{
		KnowledgeDir: viper.GetString("knowledge.dir"),
		MaxResults:   viper.GetInt("knowledge.max_results"),
		ChunkSize:    viper.GetInt("knowledge.chunk_size"),
		ChunkOverlap: viper.GetInt("knowledge.chunk_overlap"),
		EmbedModel:   viper.GetString("knowledge.embed_model"),
	}.WithDefaults()
}
