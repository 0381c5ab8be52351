// Package llm is the oracle client: a thin, synchronous wrapper over the
// Anthropic and OpenAI completion APIs with retry on transient failures.
// The rest of the system treats it as an opaque request/response oracle.
package llm

import (
	"context"
	"fmt"

	"github.com/4sgupta828/oats/pkg/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation message.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion request. The reply length cap is not set
// per request; each provider client applies its configured max tokens.
type Request struct {
	System   string
	Messages []Message
}

// Client is the oracle interface the reasoning engine depends on. The
// production implementation is provider-backed with retry; tests use a
// scripted fake.
type Client interface {
	// Complete returns the oracle's text reply for the request, or an
	// error once transient-failure retries are exhausted.
	Complete(ctx context.Context, req *Request) (string, error)
}

// New constructs a provider-backed client from config, wrapped with the
// retry policy (jittered exponential backoff, bounded attempts).
func New(cfg config.LLMConfig) (Client, error) {
	var inner Client
	switch cfg.Provider {
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but ANTHROPIC_API_KEY is empty")
		}
		inner = newAnthropicClient(cfg)
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY is empty")
		}
		inner = newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	return newRetryingClient(inner, cfg), nil
}
