package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"tcode/model"
)

// OpenAIProvider implements model.Provider using OpenAI's official Go SDK.
type OpenAIProvider struct {
	name    string
	client  openai.Client
	model   string
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Parameters:
//   - name: configured provider id
//   - baseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - apiKey: OpenAI API key (required)
//   - model: Initial model to use (default: "gpt-4o-mini")
func NewOpenAIProvider(name, baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		name:    name,
		client:  client,
		model:   model,
		baseURL: baseURL,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Initialize(ctx context.Context) error {
	return nil
}

// Send implements model.Provider with streaming.
func (p *OpenAIProvider) Send(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	start := time.Now()

	if len(tools) > 0 {
		instruction := model.Message{Role: model.RoleSystem, Content: buildToolInstructions(tools)}
		messages = append([]model.Message{instruction}, messages...)
	}

	result, err := streamChatCompletion(ctx, &p.client, p.model, messages, tools, opts)
	if err != nil {
		return failure(p.name, p.model, err)
	}

	// Safety net for models that print calls instead of using the API
	if len(result.toolCalls) == 0 && len(tools) > 0 {
		result.toolCalls = ParseLeakedJSONToolCalls(result.content, toolNameSet(tools))
	}

	return result.response(p.name, p.model, start), nil
}

// HealthCheck lists models.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.Models.List(ctx)
	return err == nil
}

func (p *OpenAIProvider) Capabilities() model.Capabilities {
	return model.Capabilities{
		Streaming:       true,
		MaxTokens:       16384,
		SupportedModels: []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"},
		Features:        []string{"tools", "streaming", "system-prompt"},
	}
}

// GetModel implements model.Provider.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// SetModel implements model.Provider.
func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// chatResult is an accumulated chat completion.
type chatResult struct {
	content   string
	toolCalls []model.ToolCall
	usage     model.Usage
	requestID string
	model     string
}

func (r *chatResult) response(name, fallbackModel string, start time.Time) *model.Response {
	modelName := r.model
	if modelName == "" {
		modelName = fallbackModel
	}
	return &model.Response{
		Success:   true,
		Content:   r.content,
		ToolCalls: ensureToolCallIDs(r.toolCalls),
		Usage:     r.usage,
		Provider:  name,
		Model:     modelName,
		Metadata: model.ResponseMetadata{
			RequestID: r.requestID,
			Latency:   time.Since(start),
		},
	}
}

// streamChatCompletion runs one streaming chat completion against any
// OpenAI-compatible endpoint and accumulates the result.
func streamChatCompletion(ctx context.Context, client *openai.Client, modelName string, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*chatResult, error) {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(modelName),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if len(tools) > 0 {
		params.Tools = ToolsToOpenAI(tools)
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	result := &chatResult{}
	var content strings.Builder

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			result.toolCalls = append(result.toolCalls, model.ToolCall{
				ID:        tool.ID,
				Name:      tool.Name,
				Arguments: ParseToolArguments(tool.Arguments),
			})
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			delta := chunk.Choices[0].Delta.Content
			content.WriteString(delta)
			if opts.OnChunk != nil {
				opts.OnChunk(delta, nil)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	result.content = content.String()
	result.requestID = acc.ID
	result.model = acc.Model
	result.usage = model.Usage{
		InputTokens:  int(acc.Usage.PromptTokens),
		OutputTokens: int(acc.Usage.CompletionTokens),
		TotalTokens:  int(acc.Usage.TotalTokens),
	}

	return result, nil
}
