package model

import (
	"context"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts a model backend (Anthropic, OpenAI, OpenRouter, Ollama,
// Gemini) using the provider-agnostic types of this package.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the orchestrator and
// engine use the interface without importing the provider package.
type Provider interface {
	// Name returns the backend's configured name ("anthropic", "ollama", ...).
	Name() string

	// Initialize prepares the backend for use. A backend whose Initialize
	// fails is left out of the orchestrator's ranked list.
	Initialize(ctx context.Context) error

	// Send performs one model call. Vendor errors that carry an HTTP status are
	// reported as a Response with Success=false; transport failures are
	// returned as errors.
	Send(ctx context.Context, messages []Message, tools []mcptypes.Tool, opts SendOptions) (*Response, error)

	// HealthCheck is a lightweight reachability check.
	HealthCheck(ctx context.Context) bool

	// Capabilities describes what the backend supports.
	Capabilities() Capabilities

	// GetModel returns the currently selected model name.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)
}

// StreamCallback is called for each chunk of streamed response.
type StreamCallback func(chunk string, toolCalls []ToolCall) error

// SendOptions tunes a single Send call.
type SendOptions struct {
	MaxTokens int
	OnChunk   StreamCallback
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// ResponseMetadata carries per-call bookkeeping.
type ResponseMetadata struct {
	RequestID string
	Latency   time.Duration
}

// Response is the normalised result of a backend call.
type Response struct {
	Success   bool
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
	Provider  string
	Model     string
	Metadata  ResponseMetadata
	Error     *ProviderError
}

// Capabilities describes a backend.
type Capabilities struct {
	Streaming       bool
	MaxTokens       int
	SupportedModels []string
	Features        []string
}
