package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tcode/config"
)

// Validate builds a provider from the given settings and checks that it
// initializes and answers a health check. Used before storing an API key.
func Validate(ctx context.Context, providerID, baseURL, apiKey string) error {
	p, err := NewProvider(Config{
		Type:    MapProviderIDToType(providerID),
		Name:    providerID,
		BaseURL: baseURL,
		APIKey:  apiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}

	if !p.HealthCheck(ctx) {
		return fmt.Errorf("connection to %s failed", providerID)
	}

	config.DebugLog.Debug("provider validated", zap.String("provider", providerID))
	return nil
}
