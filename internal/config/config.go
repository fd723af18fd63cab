// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all environment variable overrides,
// e.g. REAGENT_LLM_API_KEY maps to llm.api_key.
const EnvPrefix = "REAGENT"

// Config holds the entire application configuration. Fields are exported so
// viper can unmarshal into them; access still goes through the struct
// directly since nothing here is mutated after load.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding" yaml:"embedding"`
	Agent      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	Reflection ReflectionConfig `mapstructure:"reflection" yaml:"reflection"`
	Planner    PlannerConfig    `mapstructure:"planner" yaml:"planner"`
	Memory     MemoryConfig     `mapstructure:"memory" yaml:"memory"`
	Tools      ToolsConfig      `mapstructure:"tools" yaml:"tools"`
}

// LoggerConfig defines the logging setup for the application.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMConfig configures the reasoning model client.
type LLMConfig struct {
	Provider LLMProvider `mapstructure:"provider" yaml:"provider"`
	// APIKey is normally supplied via REAGENT_LLM_API_KEY or GEMINI_API_KEY.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// Endpoint overrides the provider base URL. Empty means the provider default.
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel     string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// EmbeddingConfig configures the query embedding service.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model"`
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions"`
	TaskType   string `mapstructure:"task_type" yaml:"task_type"`
}

// AgentConfig tunes the reasoning loop.
type AgentConfig struct {
	MaxIterations    int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	Temperature      float64       `mapstructure:"temperature" yaml:"temperature"`
	EnableReflection bool          `mapstructure:"enable_reflection" yaml:"enable_reflection"`
	StopSequences    []string      `mapstructure:"stop_sequences" yaml:"stop_sequences"`
	RunTimeout       time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// ReflectionConfig tunes answer evaluation and refinement.
type ReflectionConfig struct {
	// Evaluator selects the scoring backend: "llm" or "heuristic".
	Evaluator      string  `mapstructure:"evaluator" yaml:"evaluator"`
	Threshold      float64 `mapstructure:"threshold" yaml:"threshold"`
	MaxRefinements int     `mapstructure:"max_refinements" yaml:"max_refinements"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
}

// PlannerConfig tunes query decomposition and plan execution.
type PlannerConfig struct {
	Temperature   float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxSubQueries int     `mapstructure:"max_sub_queries" yaml:"max_sub_queries"`
	Concurrency   int     `mapstructure:"concurrency" yaml:"concurrency"`
}

// MemoryConfig selects and configures the conversation store.
type MemoryConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// DSN is the Postgres connection string, normally via REAGENT_MEMORY_DSN.
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	MaxMessages int    `mapstructure:"max_messages" yaml:"max_messages"`
}

// ToolsConfig holds settings shared by the built-in tools.
type ToolsConfig struct {
	DefaultCollection string        `mapstructure:"default_collection" yaml:"default_collection"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	ScoreThreshold    float64       `mapstructure:"score_threshold" yaml:"score_threshold"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxFetchBytes     int64         `mapstructure:"max_fetch_bytes" yaml:"max_fetch_bytes"`
	// WebSearchEndpoint points web_search at a real search API. Empty keeps
	// the tool in placeholder mode.
	WebSearchEndpoint string `mapstructure:"web_search_endpoint" yaml:"web_search_endpoint"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "reagent")
	v.SetDefault("logger.log_file", "reagent.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.powerful_model", "gemini-2.5-pro")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.max_retries", 4)
	v.SetDefault("llm.requests_per_minute", 60.0)
	v.SetDefault("llm.max_tokens", 0)

	// -- Embedding --
	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.task_type", "RETRIEVAL_QUERY")

	// -- Agent --
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.temperature", 0.7)
	v.SetDefault("agent.enable_reflection", true)
	v.SetDefault("agent.stop_sequences", []string{"\nObservation:", "\n\nObservation:"})
	v.SetDefault("agent.run_timeout", "0s")

	// -- Reflection --
	v.SetDefault("reflection.evaluator", "llm")
	v.SetDefault("reflection.threshold", 0.7)
	v.SetDefault("reflection.max_refinements", 2)
	v.SetDefault("reflection.temperature", 0.3)

	// -- Planner --
	v.SetDefault("planner.temperature", 0.3)
	v.SetDefault("planner.max_sub_queries", 10)
	v.SetDefault("planner.concurrency", 4)

	// -- Memory --
	v.SetDefault("memory.backend", "memory")
	v.SetDefault("memory.max_messages", 100)

	// -- Tools --
	v.SetDefault("tools.default_collection", "documents")
	v.SetDefault("tools.top_k", 5)
	v.SetDefault("tools.score_threshold", 0.0)
	v.SetDefault("tools.http_timeout", "20s")
	v.SetDefault("tools.user_agent", "reagent/1.0")
	v.SetDefault("tools.max_fetch_bytes", 2*1024*1024)
	v.SetDefault("tools.web_search_endpoint", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("llm.api_key", "REAGENT_LLM_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("memory.dsn", "REAGENT_MEMORY_DSN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.LLM.APIKey == "" {
		if key := os.Getenv("REAGENT_LLM_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		} else {
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.Reflection.Validate(); err != nil {
		return fmt.Errorf("reflection configuration invalid: %w", err)
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner configuration invalid: %w", err)
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory configuration invalid: %w", err)
	}
	if c.LLM.APITimeout <= 0 {
		return fmt.Errorf("llm.api_timeout must be a positive duration")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	if c.Tools.TopK <= 0 {
		return fmt.Errorf("tools.top_k must be a positive integer")
	}
	return nil
}

// Validate checks the reasoning loop settings.
func (a *AgentConfig) Validate() error {
	if a.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be greater than 0")
	}
	if a.Temperature < 0.0 || a.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}

// Validate checks the reflection settings.
func (r *ReflectionConfig) Validate() error {
	if r.Evaluator != "llm" && r.Evaluator != "heuristic" {
		return fmt.Errorf("evaluator must be %q or %q", "llm", "heuristic")
	}
	if r.Threshold < 0.0 || r.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0")
	}
	if r.MaxRefinements < 0 {
		return fmt.Errorf("max_refinements must not be negative")
	}
	return nil
}

// Validate checks the planner settings.
func (p *PlannerConfig) Validate() error {
	if p.MaxSubQueries <= 0 {
		return fmt.Errorf("max_sub_queries must be a positive integer")
	}
	if p.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	return nil
}

// Validate checks the conversation store settings.
func (m *MemoryConfig) Validate() error {
	switch m.Backend {
	case "memory":
	case "postgres":
		if m.DSN == "" {
			return fmt.Errorf("memory.dsn is required when backend is %q. Set REAGENT_MEMORY_DSN", "postgres")
		}
	default:
		return fmt.Errorf("backend must be %q or %q", "memory", "postgres")
	}
	if m.MaxMessages <= 0 {
		return fmt.Errorf("max_messages must be a positive integer")
	}
	return nil
}
