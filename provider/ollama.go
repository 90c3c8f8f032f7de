package provider

import (
	"context"
	"fmt"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"tcode/config"
	"tcode/model"
	"tcode/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// It converts model.Message to api.Message and tool schemas to api.Tool, and
// assigns ids to the tool calls Ollama returns since the API does not.
type OllamaProvider struct {
	name   string
	client *ollama.Client
	models []string
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - name: configured provider id
//   - baseURL: the Ollama server URL; defaults to "http://localhost:11434"
//   - model: the model name; defaults to "llama3.1:latest"
func NewOllamaProvider(name, baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{
		name:   name,
		client: client,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return p.name
}

// Initialize verifies that the server is reachable and records the
// installed models. An unreachable server keeps the provider out of
// rotation.
func (p *OllamaProvider) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	models, err := p.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("ollama server at %s is not reachable: %w", p.client.BaseURL(), err)
	}

	p.models = make([]string, len(models))
	for i, m := range models {
		p.models[i] = m.Name
	}
	return nil
}

// Send implements model.Provider. Tools are withheld from models that are
// known not to support tool calling; such models answer in plain text.
func (p *OllamaProvider) Send(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	start := time.Now()

	if len(tools) > 0 && !p.client.SupportsToolCalling() {
		config.DebugLog.Debug("model does not support tools, sending without them",
			zap.String("provider", p.name), zap.String("model", p.client.GetModel()))
		tools = nil
	}

	var onChunk ollama.StreamCallback
	if opts.OnChunk != nil {
		onChunk = func(chunk string) error {
			return opts.OnChunk(chunk, nil)
		}
	}

	result, err := p.client.ChatWithTools(ctx, ConvertToOllamaMessages(messages), ToolsToOllama(tools), onChunk)
	if err != nil {
		return failure(p.name, p.client.GetModel(), err)
	}

	return &model.Response{
		Success:   true,
		Content:   result.Content,
		ToolCalls: ConvertToProviderToolCalls(result.ToolCalls),
		Usage: model.Usage{
			InputTokens:  result.PromptTokens,
			OutputTokens: result.CompletionTokens,
			TotalTokens:  result.PromptTokens + result.CompletionTokens,
		},
		Provider: p.name,
		Model:    p.client.GetModel(),
		Metadata: model.ResponseMetadata{
			Latency: time.Since(start),
		},
	}, nil
}

func (p *OllamaProvider) HealthCheck(ctx context.Context) bool {
	return p.client.Ping(ctx) == nil
}

func (p *OllamaProvider) Capabilities() model.Capabilities {
	features := []string{"streaming", "local"}
	if p.client.SupportsToolCalling() {
		features = append(features, "tools")
	}
	return model.Capabilities{
		Streaming:       true,
		MaxTokens:       defaultMaxTokens,
		SupportedModels: p.models,
		Features:        features,
	}
}

// GetModel implements model.Provider.
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// SetModel implements model.Provider.
func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}
