package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override, e.g. PATHREAD_AI_API_KEY.
const EnvPrefix = "PATHREAD"

// Supported model providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderOllama: "llama3.1",
	ProviderGemini: "gemini-2.0-flash",
}

type Config struct {
	Server  ServerConfig  `yaml:"server" split_words:"true"`
	AI      AIConfig      `yaml:"ai" split_words:"true"`
	Story   StoryConfig   `yaml:"story" split_words:"true"`
	Hooks   HooksConfig   `yaml:"hooks" split_words:"true"`
	Logging LoggingConfig `yaml:"logging" split_words:"true"`
	Metrics MetricsConfig `yaml:"metrics" split_words:"true"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowed_origins" split_words:"true"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type AIConfig struct {
	Provider     string        `yaml:"provider" split_words:"true"`
	BaseURL      string        `yaml:"base_url" split_words:"true"`
	APIKey       string        `yaml:"api_key" split_words:"true"`
	Model        string        `yaml:"model" split_words:"true"`
	MaxTokens    int           `yaml:"max_tokens" split_words:"true"`
	Temperature  float64       `yaml:"temperature" split_words:"true"`
	Timeout      time.Duration `yaml:"timeout" split_words:"true"`
	MaxRetries   int           `yaml:"max_retries" split_words:"true"`
	RetryDelay   time.Duration `yaml:"retry_delay" split_words:"true"`
	SystemPrompt string        `yaml:"system_prompt" split_words:"true"`
}

type StoryConfig struct {
	Defaults       StoryDefaults `yaml:"defaults" split_words:"true"`
	ContextEntries int           `yaml:"context_entries" split_words:"true"`
	// TemplatesDir holds *.json prompt templates that replace built-ins by name.
	TemplatesDir   string        `yaml:"templates_dir" split_words:"true"`
}

// StoryDefaults fill style facets a continuation request leaves empty.
type StoryDefaults struct {
	Genre       string `yaml:"genre" split_words:"true"`
	Tone        string `yaml:"tone" split_words:"true"`
	Perspective string `yaml:"perspective" split_words:"true"`
	Difficulty  string `yaml:"difficulty" split_words:"true"`
}

type HooksConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" split_words:"true"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" split_words:"true"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" split_words:"true"`
	Format     string `yaml:"format" split_words:"true"`
	Output     string `yaml:"output" split_words:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb" split_words:"true"`
	MaxBackups int    `yaml:"max_backups" split_words:"true"`
	MaxAgeDays int    `yaml:"max_age_days" split_words:"true"`
	Compress   bool   `yaml:"compress" split_words:"true"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		AI: AIConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.8,
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			RetryDelay:  time.Second,
		},
		Story: StoryConfig{
			Defaults: StoryDefaults{
				Genre:       "fantasy",
				Tone:        "engaging",
				Perspective: "second-person",
				Difficulty:  "intermediate",
			},
			ContextEntries: 5,
		},
		Hooks: HooksConfig{
			CacheTTL:        30 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads configuration from a YAML file layered over Default, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	applyProviderEnv(&cfg.AI)
	cfg.AI.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProviderEnv fills AI settings the config left empty from the
// provider's conventional environment variables.
func applyProviderEnv(ai *AIConfig) {
	ai.Provider = strings.ToLower(strings.TrimSpace(ai.Provider))

	switch ai.Provider {
	case ProviderOpenAI:
		fillFromEnv(&ai.APIKey, "OPENAI_API_KEY")
		fillFromEnv(&ai.Model, "OPENAI_MODEL")
		if ai.MaxTokens == 0 {
			if n, err := strconv.Atoi(os.Getenv("OPENAI_MAX_TOKENS")); err == nil && n > 0 {
				ai.MaxTokens = n
			}
		}
	case ProviderGemini:
		fillFromEnv(&ai.APIKey, "GEMINI_API_KEY")
	case ProviderOllama:
		fillFromEnv(&ai.BaseURL, "OLLAMA_HOST")
	}
}

func fillFromEnv(field *string, key string) {
	if *field != "" {
		return
	}
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*field = v
	}
}

func (ai *AIConfig) applyDefaults() {
	if ai.Model == "" {
		ai.Model = defaultModels[ai.Provider]
	}
	if ai.MaxTokens == 0 {
		ai.MaxTokens = 1500
	}
}

// Validate checks structural settings. A missing API key is not an error: the
// server starts and reports itself misconfigured on generation requests.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, ok := defaultModels[c.AI.Provider]; !ok {
		errs = append(errs, fmt.Errorf("ai.provider %q is not one of openai, ollama, gemini", c.AI.Provider))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, errors.New("ai.timeout must be positive"))
	}
	if c.AI.MaxRetries < 1 {
		errs = append(errs, errors.New("ai.max_retries must be at least 1"))
	}
	if c.AI.RetryDelay < 0 {
		errs = append(errs, errors.New("ai.retry_delay must not be negative"))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ai.temperature %.2f out of range [0, 2]", c.AI.Temperature))
	}
	if c.Story.ContextEntries < 1 {
		errs = append(errs, errors.New("story.context_entries must be at least 1"))
	}
	if c.Hooks.CacheTTL < 0 {
		errs = append(errs, errors.New("hooks.cache_ttl must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
