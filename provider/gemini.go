package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/genai"

	"tcode/model"
)

// GeminiProvider implements model.Provider using the Google GenAI SDK
// against the Gemini API.
type GeminiProvider struct {
	name   string
	apiKey string
	model  string
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider. The SDK client needs a
// context, so it is created by Initialize.
func NewGeminiProvider(name, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{
		name:   name,
		apiKey: apiKey,
		model:  model,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return p.name
}

// Initialize creates the GenAI client.
func (p *GeminiProvider) Initialize(ctx context.Context) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return nil
}

// Send implements model.Provider with streaming.
func (p *GeminiProvider) Send(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	if p.client == nil {
		return nil, fmt.Errorf("gemini provider %s is not initialized", p.name)
	}
	start := time.Now()

	if len(tools) > 0 {
		instruction := model.Message{Role: model.RoleSystem, Content: buildToolInstructions(tools)}
		messages = append([]model.Message{instruction}, messages...)
	}

	contents, system := ConvertToGeminiContents(messages)

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             ToolsToGemini(tools),
		MaxOutputTokens:   int32(maxTokens),
	}

	var (
		content   strings.Builder
		toolCalls []model.ToolCall
		usage     model.Usage
		requestID string
		modelName = p.model
	)

	for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
		if err != nil {
			return failure(p.name, p.model, err)
		}
		if resp.ResponseID != "" {
			requestID = resp.ResponseID
		}
		if resp.ModelVersion != "" {
			modelName = resp.ModelVersion
		}
		if resp.UsageMetadata != nil {
			usage = model.Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
			}
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}

		for _, part := range resp.Candidates[0].Content.Parts {
			switch {
			case part.FunctionCall != nil:
				toolCalls = append(toolCalls, model.ToolCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
			case part.Text != "" && !part.Thought:
				content.WriteString(part.Text)
				if opts.OnChunk != nil {
					opts.OnChunk(part.Text, nil)
				}
			}
		}
	}

	return &model.Response{
		Success:   true,
		Content:   content.String(),
		ToolCalls: ensureToolCallIDs(toolCalls),
		Usage:     usage,
		Provider:  p.name,
		Model:     modelName,
		Metadata: model.ResponseMetadata{
			RequestID: requestID,
			Latency:   time.Since(start),
		},
	}, nil
}

// HealthCheck fetches the configured model's metadata.
func (p *GeminiProvider) HealthCheck(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.Models.Get(ctx, p.model, nil)
	return err == nil
}

func (p *GeminiProvider) Capabilities() model.Capabilities {
	return model.Capabilities{
		Streaming:       true,
		MaxTokens:       65536,
		SupportedModels: []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
		Features:        []string{"tools", "streaming", "system-prompt"},
	}
}

func (p *GeminiProvider) GetModel() string {
	return p.model
}

func (p *GeminiProvider) SetModel(model string) {
	p.model = model
}
