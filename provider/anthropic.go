package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tcode/model"
)

// AnthropicProvider implements model.Provider using Anthropic's official Go SDK.
type AnthropicProvider struct {
	name    string
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - name: configured provider id
//   - baseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - apiKey: Anthropic API key (required)
//   - model: Initial model to use (default: "claude-sonnet-4-5-20250929")
func NewAnthropicProvider(name, baseURL, apiKey, model string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		anthropicModel = anthropic.Model(model)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		name:    name,
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return p.name
}

// Initialize is a no-op: the client is ready once constructed and the key
// is verified by the first call.
func (p *AnthropicProvider) Initialize(ctx context.Context) error {
	return nil
}

// Send implements model.Provider with streaming.
func (p *AnthropicProvider) Send(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	start := time.Now()

	anthropicMessages, systemPrompt := ConvertToAnthropicMessages(messages)

	// Tool instructions go first, then the caller's system prompt
	if len(tools) > 0 {
		systemPrompt = append([]anthropic.TextBlockParam{{Text: buildToolInstructions(tools)}}, systemPrompt...)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: int64(maxTokens),
	}
	if len(systemPrompt) > 0 {
		params.System = systemPrompt
	}
	if len(tools) > 0 {
		params.Tools = ToolsToAnthropic(tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()

		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("error accumulating message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if opts.OnChunk != nil {
					opts.OnChunk(deltaVariant.Text, nil)
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return failure(p.name, string(p.model), err)
	}

	content, toolCalls := splitAnthropicContent(msg.Content)

	modelName := string(msg.Model)
	if modelName == "" {
		modelName = string(p.model)
	}

	return &model.Response{
		Success:   true,
		Content:   content,
		ToolCalls: toolCalls,
		Usage: model.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Provider: p.name,
		Model:    modelName,
		Metadata: model.ResponseMetadata{
			RequestID: msg.ID,
			Latency:   time.Since(start),
		},
	}, nil
}

// HealthCheck lists models, which needs a valid key but costs no tokens.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	return err == nil
}

func (p *AnthropicProvider) Capabilities() model.Capabilities {
	// Anthropic has a models API but no metadata about tool support, so
	// advertise a curated list.
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}
	supported := make([]string, len(models))
	for i, m := range models {
		supported[i] = string(m)
	}

	return model.Capabilities{
		Streaming:       true,
		MaxTokens:       8192,
		SupportedModels: supported,
		Features:        []string{"tools", "streaming", "system-prompt"},
	}
}

// GetModel implements model.Provider.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// SetModel implements model.Provider.
func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

// splitAnthropicContent separates text from tool_use blocks.
func splitAnthropicContent(content []anthropic.ContentBlockUnion) (string, []model.ToolCall) {
	var text strings.Builder
	var toolCalls []model.ToolCall

	for _, block := range content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(variant.Input, &args); err != nil {
				args = map[string]any{}
			}
			toolCalls = append(toolCalls, model.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}

	return text.String(), ensureToolCallIDs(toolCalls)
}
