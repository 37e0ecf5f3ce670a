// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DefaultUserAgent is a desktop browser User-Agent. Search result pages and
// many news sites serve reduced or blocked content to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout (default 10s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// WithDefaults fills zero fields with their defaults.
func (c HTTPConfig) WithDefaults() HTTPConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// LLMConfig selects and configures a chat completion provider.
type LLMConfig struct {
	// Provider is one of "ollama", "groq", or "openai".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "gemma3:27b", "llama-3.3-70b-versatile").
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the provider endpoint. Empty uses the provider default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey authenticates against cloud providers. Ollama ignores it.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds a single completion request (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker. Zero disables the breaker.
	BreakerFailures uint32 `json:"breaker_failures" yaml:"breaker_failures"`

	// BreakerTimeout is how long an open breaker waits before probing (default 30s).
	BreakerTimeout time.Duration `json:"breaker_timeout" yaml:"breaker_timeout"`
}

// SearchConfig holds settings for the web search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider is one of "duckduckgo", "google", "brave", or "tavily".
	Provider string `json:"provider" yaml:"provider"`

	// MaxResults caps the number of results kept from the provider (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// APIKey authenticates against keyed providers (Google, Brave, Tavily).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// EngineID is the Google Programmable Search engine identifier (cx).
	EngineID string `json:"engine_id,omitempty" yaml:"engine_id,omitempty"`

	// Depth is the Tavily search depth: "basic" or "advanced".
	Depth string `json:"depth,omitempty" yaml:"depth,omitempty"`

	// RatePerSecond limits outgoing requests to keyless or throttled
	// providers (default 1). Negative disables limiting.
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
}

// WithDefaults fills zero fields with their defaults.
func (c SearchConfig) WithDefaults() SearchConfig {
	c.HTTPConfig = c.HTTPConfig.WithDefaults()
	if c.Provider == "" {
		c.Provider = "duckduckgo"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = 1
	}
	return c
}

// ScrapeConfig holds settings for page fetching and text extraction.
type ScrapeConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxChars truncates extracted text. Zero keeps the full text.
	MaxChars int `json:"max_chars" yaml:"max_chars"`

	// Browser renders pages in headless Chrome instead of plain HTTP.
	Browser bool `json:"browser" yaml:"browser"`
}

// PipelineConfig holds the tunables of the web-search chat pipeline.
type PipelineConfig struct {
	// SystemPrompt opens every conversation.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`

	// DecisionTemperature is used for the yes/no stages (default 0.1).
	DecisionTemperature float64 `json:"decision_temperature" yaml:"decision_temperature"`

	// ChatTemperature is used for query formulation and selection (default 0.3).
	ChatTemperature float64 `json:"chat_temperature" yaml:"chat_temperature"`

	// ResponseTemperature is used for the final answer (default 0.7).
	ResponseTemperature float64 `json:"response_temperature" yaml:"response_temperature"`

	// SelectAttempts bounds re-asking when the selection reply cannot be
	// parsed (default 3).
	SelectAttempts int `json:"select_attempts" yaml:"select_attempts"`

	// Candidates is how many results may be scraped in one turn before giving
	// up (default 1). Values above 1 return to selection when a page fails to
	// scrape or is judged irrelevant.
	Candidates int `json:"candidates" yaml:"candidates"`

	// MaxContextChars truncates page text before the relevance judgment and
	// the grounded answer (default 8000).
	MaxContextChars int `json:"max_context_chars" yaml:"max_context_chars"`

	// DecideWithHistory includes the previous exchange in the decision prompt.
	DecideWithHistory bool `json:"decide_with_history" yaml:"decide_with_history"`
}

// DefaultSystemPrompt is the opening assistant instruction of a chat.
const DefaultSystemPrompt = "You are a helpful AI assistant. You can search the web to answer questions about current events or specific information."

// WithDefaults fills zero fields with their defaults.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.DecisionTemperature <= 0 {
		c.DecisionTemperature = 0.1
	}
	if c.ChatTemperature <= 0 {
		c.ChatTemperature = 0.3
	}
	if c.ResponseTemperature <= 0 {
		c.ResponseTemperature = 0.7
	}
	if c.SelectAttempts <= 0 {
		c.SelectAttempts = 3
	}
	if c.Candidates <= 0 {
		c.Candidates = 1
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 8000
	}
	return c
}

// KnowledgeBaseConfig holds settings for the single-file knowledge base.
type KnowledgeBaseConfig struct {
	// KnowledgeDir is the base directory for the index (contains index/).
	KnowledgeDir string `json:"knowledge_dir" yaml:"knowledge_dir"`

	// MaxResults is the default number of chunks retrieved per question (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// ChunkSize is the target chunk length in characters (default 800).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// ChunkOverlap is the number of trailing characters repeated at the start
	// of the next chunk (default 100).
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// EmbedModel is the Ollama embedding model. Empty disables embeddings
	// and retrieval uses full-text ranking only.
	EmbedModel string `json:"embed_model,omitempty" yaml:"embed_model,omitempty"`
}

// WithDefaults fills zero fields with their defaults.
func (c KnowledgeBaseConfig) WithDefaults() KnowledgeBaseConfig {
	if c.KnowledgeDir == "" {
		c.KnowledgeDir = "knowledge"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap == 0 && c.ChunkSize > 100 {
		c.ChunkOverlap = 100
	}
	return c
}

// ResearchConfig holds settings for the one-shot research tasks.
type ResearchConfig struct {
	// Items is the number of news items to report (default 2).
	Items int `json:"items" yaml:"items"`

	// Links is the number of pages the digest task reads (default 3).
	Links int `json:"links" yaml:"links"`

	// MaxPageChars caps the text kept per page in the digest task (default 2000).
	MaxPageChars int `json:"max_page_chars" yaml:"max_page_chars"`

	// Temperature is used for the writing step (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// WithDefaults fills zero fields with their defaults.
func (c ResearchConfig) WithDefaults() ResearchConfig {
	if c.Items <= 0 {
		c.Items = 2
	}
	if c.Links <= 0 {
		c.Links = 3
	}
	if c.MaxPageChars <= 0 {
		c.MaxPageChars = 2000
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	return c
}
