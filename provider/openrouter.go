package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"tcode/config"
	"tcode/model"
)

// OpenRouterProvider implements model.Provider against OpenRouter's
// OpenAI-compatible API using the OpenAI Go SDK.
type OpenRouterProvider struct {
	name    string
	client  openai.Client
	model   string
	baseURL string
}

// NewOpenRouterProvider creates a new OpenRouter provider instance.
//
// Parameters:
//   - name: configured provider id
//   - baseURL: OpenRouter API base URL ("https://openrouter.ai/api/v1")
//   - apiKey: OpenRouter API key (required)
//   - model: Initial model to use (can be changed with SetModel)
func NewOpenRouterProvider(name, baseURL, apiKey, model string) (*OpenRouterProvider, error) {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if model == "" {
		model = "qwen/qwen3-coder"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenRouterProvider{
		name:    name,
		client:  client,
		model:   model,
		baseURL: baseURL,
	}, nil
}

func (p *OpenRouterProvider) Name() string {
	return p.name
}

func (p *OpenRouterProvider) Initialize(ctx context.Context) error {
	return nil
}

// Send implements model.Provider with streaming and leaked tool-call recovery.
func (p *OpenRouterProvider) Send(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	start := time.Now()

	if len(tools) > 0 {
		if shouldSkipToolInstructions(p.model) {
			config.DebugLog.Debug("skipping tool instructions", zap.String("provider", p.name), zap.String("model", p.model))
		} else {
			instruction := model.Message{Role: model.RoleSystem, Content: buildToolInstructions(tools)}
			messages = append([]model.Message{instruction}, messages...)
		}
	}

	result, err := streamChatCompletion(ctx, &p.client, p.model, messages, tools, opts)
	if err != nil {
		return failure(p.name, p.model, err)
	}

	// Detect leaked tool calls if none were returned via the API
	if len(result.toolCalls) == 0 && len(tools) > 0 {
		known := toolNameSet(tools)
		leaked := ParseLeakedJSONToolCalls(result.content, known)
		leaked = append(leaked, ParseLeakedXMLToolCalls(result.content, known)...)
		if len(leaked) > 0 {
			config.DebugLog.Debug("recovered leaked tool calls",
				zap.String("provider", p.name),
				zap.String("model", p.model),
				zap.Int("count", len(leaked)))
			result.toolCalls = leaked
		}
	}

	return result.response(p.name, p.model, start), nil
}

// HealthCheck lists models.
func (p *OpenRouterProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.Models.List(ctx)
	return err == nil
}

func (p *OpenRouterProvider) Capabilities() model.Capabilities {
	return model.Capabilities{
		Streaming:       true,
		MaxTokens:       8192,
		SupportedModels: []string{p.model},
		Features:        []string{"tools", "streaming", "leaked-tool-call-recovery"},
	}
}

// GetModel returns the full model name with vendor prefix for API calls.
// Example: "qwen/qwen3-coder"
func (p *OpenRouterProvider) GetModel() string {
	return p.model
}

// DisplayModel returns the model name with the vendor prefix stripped.
// Example: "qwen/qwen3-coder" → "qwen3-coder"
func (p *OpenRouterProvider) DisplayModel() string {
	return stripProviderPrefix(p.model)
}

// SetModel implements model.Provider.
func (p *OpenRouterProvider) SetModel(model string) {
	p.model = model
}

// stripProviderPrefix removes vendor prefixes from OpenRouter model names.
// "meta-llama/llama-3.2-90b-instruct" → "llama-3.2-90b-instruct"
func stripProviderPrefix(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}
