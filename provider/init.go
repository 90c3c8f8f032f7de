package provider

import (
	"fmt"

	"go.uber.org/zap"

	"tcode/config"
	"tcode/model"
)

// Builder constructs the backend registered under a configured provider id.
type Builder func(id string) (model.Provider, error)

// NewBuilder returns a Builder that resolves provider ids against cfg.
//
// It handles:
//   - Loading API keys from the credential store (with env fallback)
//   - Mapping provider IDs to provider types
//   - Falling back to the [ollama] section for the ollama provider's
//     host and model when the provider entry does not set them
//
// A provider id with no [[providers]] entry is still buildable when its
// type is known, so `provider_order = ["ollama"]` works on its own.
func NewBuilder(cfg *config.Config) Builder {
	return func(id string) (model.Provider, error) {
		providerCfg, _ := cfg.Provider(id)

		providerType := MapProviderIDToType(id)

		apiKey := ""
		if cfg.CredentialStore != nil {
			apiKey = cfg.CredentialStore.Get(id)
		}

		pc := Config{
			Type:    providerType,
			Name:    id,
			BaseURL: providerCfg.BaseURL,
			Model:   providerCfg.Model,
			APIKey:  apiKey,
		}

		if providerType == ProviderTypeOllama {
			if pc.BaseURL == "" {
				pc.BaseURL = cfg.OllamaURL()
			}
			if pc.Model == "" {
				pc.Model = cfg.Model()
			}
		}

		p, err := NewProvider(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}

		config.DebugLog.Debug("built provider",
			zap.String("provider", id),
			zap.String("type", string(providerType)),
			zap.String("model", p.GetModel()))

		return p, nil
	}
}
