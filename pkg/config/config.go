package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openresearch/deepsearch/pkg/domain"
)

// Config represents the complete application configuration
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Search        SearchConfig        `yaml:"search"`
	Research      ResearchConfig      `yaml:"research"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LLMConfig contains generation provider configuration
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "deepseek", "openai", "ollama"
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// SearchConfig contains web search provider configuration
type SearchConfig struct {
	Provider         string `yaml:"provider"` // "tavily"
	APIKey           string `yaml:"api_key,omitempty"`
	MaxResults       int    `yaml:"max_results"`
	MaxContentLength int    `yaml:"max_content_length"`
	Timeout          string `yaml:"timeout"`
	Retries          int    `yaml:"retries"`
}

// ResearchConfig contains research workflow configuration.
// MaxReflections is a pointer so an explicit zero in the file is
// distinguishable from an omitted field.
type ResearchConfig struct {
	MaxParagraphs  int  `yaml:"max_paragraphs"`
	MaxReflections *int `yaml:"max_reflections"`
	MaxConcurrency int  `yaml:"max_concurrency"`
}

// defaultMaxReflections is the reflection budget used when the field
// is omitted from both the file and the environment.
const defaultMaxReflections = 2

// ReflectionBudget returns the configured reflection budget, falling
// back to the default when the field was never set.
func (c ResearchConfig) ReflectionBudget() int {
	if c.MaxReflections == nil {
		return defaultMaxReflections
	}
	return *c.MaxReflections
}

// StorageConfig contains checkpoint storage configuration
type StorageConfig struct {
	Type            string `yaml:"type"` // "memory", "file"
	Dir             string `yaml:"dir,omitempty"`
	SaveCheckpoints bool   `yaml:"save_checkpoints"`
}

// ObservabilityConfig contains observability configuration
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "text"
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	config.overrideFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file, falling back to the
// defaults (plus environment overrides) when the file is absent or
// unreadable.
func LoadOrDefault(path string) *Config {
	config, err := Load(path)
	if err != nil {
		config = Default()
		config.overrideFromEnv()
	}
	return config
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "deepseek",
			Model:       "deepseek-chat",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     "2m",
		},
		Search: SearchConfig{
			Provider:         "tavily",
			MaxResults:       3,
			MaxContentLength: 20000,
			Timeout:          "4m",
			Retries:          2,
		},
		Research: ResearchConfig{
			MaxParagraphs:  5,
			MaxReflections: intPtr(defaultMaxReflections),
			MaxConcurrency: 1,
		},
		Storage: StorageConfig{
			Type:            "file",
			Dir:             "./data/runs",
			SaveCheckpoints: true,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      false,
				Endpoint:     "localhost:4318",
				SamplingRate: 1.0,
				Insecure:     true,
			},
			Metrics: MetricsConfig{
				Enabled: false,
				Port:    2223,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
		},
	}
}

// applyDefaults applies default values to missing fields
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.LLM.Provider == "" {
		c.LLM.Provider = defaults.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaults.LLM.Model
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = defaults.LLM.Temperature
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = defaults.LLM.Timeout
	}

	if c.Search.Provider == "" {
		c.Search.Provider = defaults.Search.Provider
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = defaults.Search.MaxResults
	}
	if c.Search.MaxContentLength == 0 {
		c.Search.MaxContentLength = defaults.Search.MaxContentLength
	}
	if c.Search.Timeout == "" {
		c.Search.Timeout = defaults.Search.Timeout
	}
	if c.Search.Retries == 0 {
		c.Search.Retries = defaults.Search.Retries
	}

	if c.Research.MaxParagraphs == 0 {
		c.Research.MaxParagraphs = defaults.Research.MaxParagraphs
	}
	if c.Research.MaxReflections == nil {
		c.Research.MaxReflections = defaults.Research.MaxReflections
	}
	if c.Research.MaxConcurrency == 0 {
		c.Research.MaxConcurrency = defaults.Research.MaxConcurrency
	}

	if c.Storage.Type == "" {
		c.Storage.Type = defaults.Storage.Type
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = defaults.Storage.Dir
	}

	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = defaults.Observability.Logging.Level
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = defaults.Observability.Logging.Format
	}
	if c.Observability.Tracing.Endpoint == "" {
		c.Observability.Tracing.Endpoint = defaults.Observability.Tracing.Endpoint
	}
	if c.Observability.Metrics.Port == 0 {
		c.Observability.Metrics.Port = defaults.Observability.Metrics.Port
	}
}

// overrideFromEnv overrides configuration from environment variables
func (c *Config) overrideFromEnv() {
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" && c.LLM.Provider == "deepseek" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" && c.LLM.Provider == "ollama" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		c.Search.APIKey = key
	}

	if v := os.Getenv("MAX_PARAGRAPHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Research.MaxParagraphs = n
		}
	}
	if v := os.Getenv("MAX_REFLECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Research.MaxReflections = &n
		}
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Observability.Tracing.Endpoint = endpoint
		c.Observability.Tracing.Enabled = true
	}
}

// Validate checks the configuration. Every violation is reported as a
// ConfigError naming the offending field; validation happens once, at
// startup, so a bad value never surfaces mid-run.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "deepseek", "openai", "ollama":
	default:
		return &domain.ConfigError{Field: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", c.LLM.Provider)}
	}
	if c.LLM.Model == "" {
		return &domain.ConfigError{Field: "llm.model", Reason: "model is required"}
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return &domain.ConfigError{Field: "llm.api_key", Reason: "api key is required for provider " + c.LLM.Provider}
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return &domain.ConfigError{Field: "llm.timeout", Reason: err.Error()}
	}

	if c.Search.Provider != "tavily" {
		return &domain.ConfigError{Field: "search.provider", Reason: fmt.Sprintf("unknown provider %q", c.Search.Provider)}
	}
	if c.Search.APIKey == "" {
		return &domain.ConfigError{Field: "search.api_key", Reason: "api key is required"}
	}
	if c.Search.MaxResults < 1 {
		return &domain.ConfigError{Field: "search.max_results", Reason: "must be at least 1"}
	}
	if c.Search.MaxContentLength < 1 {
		return &domain.ConfigError{Field: "search.max_content_length", Reason: "must be at least 1"}
	}
	if c.Search.Retries < 0 {
		return &domain.ConfigError{Field: "search.retries", Reason: "must not be negative"}
	}
	if _, err := time.ParseDuration(c.Search.Timeout); err != nil {
		return &domain.ConfigError{Field: "search.timeout", Reason: err.Error()}
	}

	if c.Research.MaxParagraphs < 1 {
		return &domain.ConfigError{Field: "research.max_paragraphs", Reason: "must be at least 1"}
	}
	if c.Research.MaxReflections != nil && *c.Research.MaxReflections < 0 {
		return &domain.ConfigError{Field: "research.max_reflections", Reason: "must not be negative"}
	}
	if c.Research.MaxConcurrency < 1 {
		return &domain.ConfigError{Field: "research.max_concurrency", Reason: "must be at least 1"}
	}

	switch c.Storage.Type {
	case "memory", "file":
	default:
		return &domain.ConfigError{Field: "storage.type", Reason: fmt.Sprintf("unknown type %q", c.Storage.Type)}
	}
	if c.Storage.Type == "file" && c.Storage.Dir == "" {
		return &domain.ConfigError{Field: "storage.dir", Reason: "directory is required for file storage"}
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func intPtr(v int) *int { return &v }

// TimeoutDuration returns the generation request timeout as a duration.
// Validate guarantees the string parses.
func (c LLMConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// TimeoutDuration returns the per-search timeout as a duration.
func (c SearchConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}
