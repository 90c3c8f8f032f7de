package provider

import (
	"fmt"

	"tcode/model"
)

// NewProvider creates a provider based on configuration.
//
// Supported provider types:
//   - ProviderTypeOllama: local Ollama server
//   - ProviderTypeOpenAI: OpenAI API
//   - ProviderTypeOpenRouter: OpenRouter (OpenAI-compatible)
//   - ProviderTypeAnthropic: Anthropic API
//   - ProviderTypeGemini: Google Gemini API
//
// Returns an error if the type is unknown or the provider-specific
// constructor fails (missing API key, invalid URL).
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return newProvider(NewOllamaProvider(cfg.name(), cfg.BaseURL, cfg.Model))
	case ProviderTypeOpenRouter:
		return newProvider(NewOpenRouterProvider(cfg.name(), cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderTypeOpenAI:
		return newProvider(NewOpenAIProvider(cfg.name(), cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderTypeAnthropic:
		return newProvider(NewAnthropicProvider(cfg.name(), cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderTypeGemini:
		return newProvider(NewGeminiProvider(cfg.name(), cfg.APIKey, cfg.Model))
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// newProvider returns a nil interface, not a typed nil, on error.
func newProvider[P model.Provider](p P, err error) (model.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MapProviderIDToType converts a config provider ID to a factory ProviderType.
//
// For unknown IDs, returns the ID cast as ProviderType (factory will error).
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	case "gemini", "google":
		return ProviderTypeGemini
	default:
		return ProviderType(id)
	}
}
