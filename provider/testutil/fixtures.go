package testutil

import (
	"context"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tcode/model"
)

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: content},
	}
}

// TextResponse is a successful response without tool calls.
func TextResponse(provider, modelName, content string) *model.Response {
	return &model.Response{
		Success:  true,
		Content:  content,
		Provider: provider,
		Model:    modelName,
		Usage:    model.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

// ToolCallResponse is a successful response requesting calls.
func ToolCallResponse(provider, modelName string, calls ...model.ToolCall) *model.Response {
	resp := TextResponse(provider, modelName, "")
	resp.ToolCalls = calls
	return resp
}

// RateLimitedResponse is the unsuccessful response of a 429.
func RateLimitedResponse(provider, modelName string) *model.Response {
	return model.FailedResponse(provider, modelName,
		model.NewProviderError(429, "rate limit exceeded", "rate_limit_error"))
}

// ScriptedSend returns a SendFunc that replays responses in order and
// repeats the last one once the script is exhausted.
func ScriptedSend(responses ...*model.Response) func(context.Context, []model.Message, []mcptypes.Tool, model.SendOptions) (*model.Response, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return nil, context.Canceled
		}
		resp := responses[i]
		if i < len(responses)-1 {
			i++
		}
		copied := *resp
		return &copied, nil
	}
}

// WriteCall builds a write_file tool call.
func WriteCall(id, path, content string) model.ToolCall {
	return model.ToolCall{
		ID:        id,
		Name:      "write_file",
		Arguments: map[string]any{"path": path, "content": content},
	}
}

// ReadCall builds a read_file tool call.
func ReadCall(id, path string) model.ToolCall {
	return model.ToolCall{
		ID:        id,
		Name:      "read_file",
		Arguments: map[string]any{"path": path},
	}
}
