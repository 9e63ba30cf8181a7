package provider

import (
	"context"
	"errors"

	"github.com/agente-films/moviepitch/config"
	openai_provider "github.com/agente-films/moviepitch/provider/openai"
)

// Provider is the completion gateway every LLM backend must satisfy.
// A call carries the agent's persona instruction plus the rendered input
// and returns generated text, or an error the caller is expected to absorb.
type Provider interface {
	Complete(ctx context.Context, model string, instruction string, input string) (string, error)
}

// NewProvider creates an LLM client from the configured providers.
// The first configured provider wins; "litellm" speaks the same wire
// format as "openai" and differs only in base URL.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no LLM providers configured")
	}
	for _, p := range cfg.Providers {
		switch p.Type {
		case "openai", "litellm":
			return openai_provider.NewClient(p.APIKey, p.BaseURL, p.Temperature, p.MaxTokens, p.Timeout), nil
		default:
			return nil, errors.New("unsupported LLM provider type: " + p.Type)
		}
	}
	return nil, errors.New("no valid LLM providers found")
}
