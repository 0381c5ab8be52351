package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// LLMProvider selects which completion backend the worker calls.
type LLMProvider string

// Supported oracle providers.
const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
)

// Oracle defaults.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultTemperature    = 0.2
	DefaultMaxTokens      = 4096
	DefaultOracleTimeout  = 60 * time.Second
	DefaultOracleRetries  = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultPromptVersion  = "v2"
)

// ErrNoOracleCredentials is returned when neither ANTHROPIC_API_KEY nor
// OPENAI_API_KEY is set in the worker environment.
var ErrNoOracleCredentials = errors.New("no oracle credentials: set ANTHROPIC_API_KEY or OPENAI_API_KEY")

// LLMConfig configures the oracle client.
type LLMConfig struct {
	Provider    LLMProvider
	Model       string
	Temperature float32
	MaxTokens   int

	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Timeout bounds a single completion call.
	Timeout time.Duration

	// MaxAttempts is the total attempt count for transient failures.
	MaxAttempts int

	// RetryBaseDelay is the base for jittered exponential backoff.
	RetryBaseDelay time.Duration

	// PromptVersion selects the system preamble revision.
	PromptVersion string
}

// loadLLMConfig reads the UFFLOW_* oracle settings. It never fails: absent
// values get defaults and credential presence is validated separately by
// Validate, so the server can load this without any keys in its own env.
func loadLLMConfig() LLMConfig {
	cfg := LLMConfig{
		Model:           os.Getenv("UFFLOW_LLM_MODEL"),
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		Timeout:         DefaultOracleTimeout,
		MaxAttempts:     DefaultOracleRetries,
		RetryBaseDelay:  DefaultRetryBaseDelay,
		PromptVersion:   getEnv("UFFLOW_PROMPT_VERSION", DefaultPromptVersion),
	}

	switch LLMProvider(os.Getenv("UFFLOW_LLM_PROVIDER")) {
	case ProviderOpenAI:
		cfg.Provider = ProviderOpenAI
	case ProviderAnthropic:
		cfg.Provider = ProviderAnthropic
	default:
		// Provider unset: infer from whichever key is present, preferring
		// Anthropic when both are.
		if cfg.AnthropicAPIKey != "" || cfg.OpenAIAPIKey == "" {
			cfg.Provider = ProviderAnthropic
		} else {
			cfg.Provider = ProviderOpenAI
		}
	}

	if cfg.Model == "" {
		if cfg.Provider == ProviderOpenAI {
			cfg.Model = DefaultOpenAIModel
		} else {
			cfg.Model = DefaultAnthropicModel
		}
	}

	if v := os.Getenv("UFFLOW_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Temperature = float32(t)
		}
	}
	if v := os.Getenv("UFFLOW_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}

	return cfg
}

// Validate checks that the configured provider has a credential. At least
// one of the two keys must be present in a worker environment.
func (c *LLMConfig) Validate() error {
	if c.AnthropicAPIKey == "" && c.OpenAIAPIKey == "" {
		return ErrNoOracleCredentials
	}
	if c.Provider == ProviderAnthropic && c.AnthropicAPIKey == "" {
		// Fall back to the key that is actually present.
		c.Provider = ProviderOpenAI
		if c.Model == DefaultAnthropicModel {
			c.Model = DefaultOpenAIModel
		}
	}
	if c.Provider == ProviderOpenAI && c.OpenAIAPIKey == "" {
		c.Provider = ProviderAnthropic
		if c.Model == DefaultOpenAIModel {
			c.Model = DefaultAnthropicModel
		}
	}
	return nil
}
