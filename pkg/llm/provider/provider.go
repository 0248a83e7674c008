// Package provider builds llm.Generator implementations from configuration.
package provider

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/insurag/pkg/credentials"
	"github.com/papercomputeco/insurag/pkg/llm"
	"github.com/papercomputeco/insurag/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/insurag/pkg/llm/provider/ollama"
	"github.com/papercomputeco/insurag/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama}
}

// Config holds configuration for creating a Generator.
type Config struct {
	Provider    string               // "openai", "anthropic", or "ollama"
	Model       string               // provider default when empty
	APIKey      string               // explicit API key (highest priority)
	BaseURL     string               // override base URL
	Temperature *float64             // provider default when nil
	MaxTokens   int                  // provider default when zero
	CredMgr     *credentials.Manager // keys stored by `insurag auth`
	Logger      *slog.Logger
}

// NewGenerator creates a Generator. API keys resolve explicit > stored
// credentials > environment. A hosted provider with no key falls back to
// Ollama so a fresh checkout can answer questions against a local model.
func NewGenerator(cfg Config) (llm.Generator, error) {
	name := strings.ToLower(cfg.Provider)
	if name == "" {
		name = Ollama
	}

	apiKey := ""
	if name != Ollama {
		apiKey = credentials.ResolveKey(cfg.CredMgr, name, cfg.APIKey)
		if apiKey == "" {
			if cfg.Logger != nil {
				cfg.Logger.Warn("no API key found, falling back to ollama", "provider", name)
			}
			name = Ollama
			cfg.Model = ""
			cfg.BaseURL = ""
		}
	}

	switch name {
	case OpenAI:
		return openai.New(openai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case Anthropic:
		return anthropic.New(anthropic.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case Ollama:
		return ollama.New(ollama.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q (supported: %v)", cfg.Provider, SupportedProviders())
	}
}
