// Package provider implements model.Provider for every supported backend.
//
// Each backend adapter translates the provider-agnostic request and
// response shapes of the model package to a vendor SDK and back. Adapters
// never retry or fail over; that is the orchestrator's job.
//
// # Type Conversions
//
// Conversions live next to the code that needs them:
//   - conversions.go: model.Message to vendor message formats, including
//     replay of assistant tool calls and tool results
//   - tool_converter.go: mcp tool schemas to vendor tool declarations
//   - errors.go: vendor errors to *model.ProviderError
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    Name:    "ollama",
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	})
//	if err != nil {
//	    // handle error
//	}
//	resp, err := p.Send(ctx, messages, tools.Schemas(), model.SendOptions{})
package provider

// Note: The Provider interface lives in the model package (model/provider.go)
// to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeGemini     ProviderType = "gemini"
)

// Config holds provider-specific configuration.
type Config struct {
	Type ProviderType
	// Name is the configured id reported by Provider.Name. Defaults to Type.
	Name    string
	BaseURL string
	Model   string
	APIKey  string // Unused for Ollama
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Type)
}

// defaultMaxTokens is used when a request does not set SendOptions.MaxTokens.
const defaultMaxTokens = 4096
