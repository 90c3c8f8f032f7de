package config

import (
	"fmt"
	"slices"
)

// knownProviders lists the backend ids the provider factory can build.
var knownProviders = []string{"anthropic", "openai", "openrouter", "ollama", "gemini"}

// IsKnownProvider reports whether id names a supported backend.
func IsKnownProvider(id string) bool {
	return slices.Contains(knownProviders, id)
}

// SetProviderEnabled enables or disables a backend in the user config,
// adding it with default settings when it is not listed yet.
func SetProviderEnabled(dataDir, providerID string, enabled bool) error {
	if !IsKnownProvider(providerID) {
		return fmt.Errorf("unknown provider: %s", providerID)
	}

	cfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	updateProviderEnabled(cfg, providerID, enabled)

	if err := SaveUserConfig(cfg, dataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// SetProviderOrder replaces the ranked provider list.
func SetProviderOrder(dataDir string, order []string) error {
	for _, id := range order {
		if !IsKnownProvider(id) {
			return fmt.Errorf("unknown provider: %s", id)
		}
	}

	cfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ProviderOrder = order

	if err := SaveUserConfig(cfg, dataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// SetAPIKey stores an API key in credentials.toml.
func SetAPIKey(dataDir, providerID, apiKey string) error {
	if !IsKnownProvider(providerID) {
		return fmt.Errorf("unknown provider: %s", providerID)
	}

	store := NewCredentialStore()
	if err := store.Load(dataDir); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if err := store.Set(providerID, apiKey); err != nil {
		return fmt.Errorf("failed to set API key: %w", err)
	}

	if err := store.Save(dataDir); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	return nil
}

// updateProviderEnabled updates the enabled status of a provider
func updateProviderEnabled(cfg *UserConfig, providerID string, enabled bool) {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == providerID {
			cfg.Providers[i].Enabled = enabled
			return
		}
	}

	// If provider not in list, add it
	cfg.Providers = append(cfg.Providers, ProviderConfig{
		ID:      providerID,
		Name:    getProviderDisplayName(providerID),
		Enabled: enabled,
		BaseURL: getProviderDefaultBaseURL(providerID),
	})
}

// getProviderDisplayName returns the display name for a provider
func getProviderDisplayName(providerID string) string {
	switch providerID {
	case "ollama":
		return "Ollama"
	case "openrouter":
		return "OpenRouter"
	case "anthropic":
		return "Anthropic"
	case "openai":
		return "OpenAI"
	case "gemini":
		return "Gemini"
	default:
		return providerID
	}
}

// getProviderDefaultBaseURL returns the default base URL for a provider
func getProviderDefaultBaseURL(providerID string) string {
	switch providerID {
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	case "anthropic":
		return "https://api.anthropic.com"
	case "openai":
		return "https://api.openai.com/v1"
	case "ollama":
		return "http://localhost:11434"
	default:
		return ""
	}
}
