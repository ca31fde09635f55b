// Package llm provides a provider-agnostic LLM adapter for tradar.
// Used by text variant expansion and prompt interpretation.
// Zero external dependencies — uses net/http directly.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "google/gemini-2.5-flash").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // Max tokens to generate (0 = provider default)
	Temperature float64 // 0.0-2.0 (0 = deterministic)
	Model       string  // Override model for this request (empty = use provider default)
	Format      string  // "json" for structured output, empty for plain text
	System      string  // System prompt (optional)
}

// Config holds provider configuration.
type Config struct {
	Provider string // "google", "openrouter"
	Model    string // e.g., "gemini-2.5-flash", "openai/gpt-4o-mini"
	APIKey   string // API key (empty = read from env)
	BaseURL  string // Optional URL override
}

// providerDefaults describes how a provider resolves its key, model, and endpoint.
type providerDefaults struct {
	envKeys []string
	model   string
	baseURL string
}

var knownProviders = map[string]providerDefaults{
	"google": {
		envKeys: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		model:   "gemini-2.5-flash",
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
	},
	"openrouter": {
		envKeys: []string{"OPENROUTER_API_KEY"},
		model:   "openai/gpt-4o-mini",
		baseURL: "https://openrouter.ai/api/v1",
	},
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	name := strings.ToLower(cfg.Provider)
	def, ok := knownProviders[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: google, openrouter)", cfg.Provider)
	}

	key := cfg.APIKey
	for _, env := range def.envKeys {
		if key != "" {
			break
		}
		key = os.Getenv(env)
	}
	if key == "" {
		return nil, fmt.Errorf("%s provider requires %s env var", name, strings.Join(def.envKeys, " or "))
	}

	model := cfg.Model
	if model == "" {
		model = def.model
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = def.baseURL
	}

	switch name {
	case "google":
		return &googleProvider{apiKey: key, model: model, baseURL: baseURL}, nil
	default:
		return &openrouterProvider{apiKey: key, model: model, baseURL: baseURL}, nil
	}
}

// ParseLLMFlag parses a --llm flag value into a Config.
// Format: "provider/model" e.g., "google/gemini-2.5-flash", "openrouter/openai/gpt-4o-mini".
// An empty flag falls back to TRADAR_LLM, then to the default google model.
func ParseLLMFlag(flag string) (Config, error) {
	if flag == "" {
		flag = os.Getenv("TRADAR_LLM")
	}
	if flag == "" {
		return Config{Provider: "google", Model: "gemini-2.5-flash"}, nil
	}

	prov, model, ok := strings.Cut(flag, "/")
	if !ok {
		return Config{}, fmt.Errorf("invalid --llm format %q: expected provider/model (e.g., google/gemini-2.5-flash)", flag)
	}

	prov = strings.ToLower(prov)
	if _, known := knownProviders[prov]; !known {
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: google, openrouter)", prov)
	}
	return Config{Provider: prov, Model: model}, nil
}
