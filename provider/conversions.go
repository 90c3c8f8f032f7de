package provider

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"tcode/model"
)

// ParseToolArguments parses a JSON arguments string into a map.
// Malformed arguments yield an empty map.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}

func marshalArguments(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ensureToolCallIDs assigns ids to calls from backends that do not issue
// them (Ollama, Gemini, leaked text calls). Tool results are matched to
// calls by id.
func ensureToolCallIDs(calls []model.ToolCall) []model.ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
		}
		if calls[i].Arguments == nil {
			calls[i].Arguments = map[string]any{}
		}
	}
	return calls
}

// isErrorResult reports whether a tool result describes a failure.
func isErrorResult(content string) bool {
	return strings.HasPrefix(content, "Error:")
}

// ConvertToOllamaMessages converts messages to Ollama format. Assistant tool
// calls are replayed and tool results carry the name of the tool they answer.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		m := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		switch msg.Role {
		case model.RoleAssistant:
			m.ToolCalls = ConvertFromProviderToolCalls(msg.Metadata.ToolCalls)
		case model.RoleTool:
			m.ToolName = msg.Metadata.ToolName
		}
		result = append(result, m)
	}
	return result
}

// ConvertToProviderToolCalls converts Ollama tool calls to model tool calls.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			Name:      call.Function.Name,
			Arguments: map[string]any(call.Function.Arguments),
		}
	}
	return ensureToolCallIDs(result)
}

// ConvertFromProviderToolCalls converts model tool calls to Ollama format.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}

// ConvertToOpenAIMessages converts messages to OpenAI chat format.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))

		case model.RoleAssistant:
			if len(msg.Metadata.ToolCalls) == 0 {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range msg.Metadata.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: marshalArguments(call.Arguments),
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case model.RoleTool:
			if msg.Metadata.ToolCallID == "" {
				result = append(result, openai.UserMessage(msg.Content))
				continue
			}
			result = append(result, openai.ToolMessage(msg.Content, msg.Metadata.ToolCallID))

		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

// ConvertToAnthropicMessages converts messages to Anthropic format and
// returns the system blocks separately. Consecutive tool results are merged
// into a single user turn as Anthropic requires.
func ConvertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	result := make([]anthropic.MessageParam, 0, len(messages))

	var pendingResults []anthropic.ContentBlockParamUnion
	flushResults := func() {
		if len(pendingResults) > 0 {
			result = append(result, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == model.RoleTool {
			pendingResults = append(pendingResults,
				anthropic.NewToolResultBlock(msg.Metadata.ToolCallID, msg.Content, isErrorResult(msg.Content)))
			continue
		}
		flushResults()

		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.Metadata.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))

		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flushResults()

	return result, systemBlocks
}

// ConvertToGeminiContents converts messages to Gemini contents and returns
// the system instruction separately (nil when there is none).
func ConvertToGeminiContents(messages []model.Message) ([]*genai.Content, *genai.Content) {
	var system []string
	result := make([]*genai.Content, 0, len(messages))

	var pendingResults []*genai.Part
	flushResults := func() {
		if len(pendingResults) > 0 {
			result = append(result, genai.NewContentFromParts(pendingResults, genai.RoleUser))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == model.RoleTool {
			key := "output"
			if isErrorResult(msg.Content) {
				key = "error"
			}
			pendingResults = append(pendingResults,
				genai.NewPartFromFunctionResponse(msg.Metadata.ToolName, map[string]any{key: msg.Content}))
			continue
		}
		flushResults()

		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)

		case model.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, call := range msg.Metadata.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, call.Arguments))
			}
			if len(parts) == 0 {
				continue
			}
			result = append(result, genai.NewContentFromParts(parts, genai.RoleModel))

		default:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	flushResults()

	if len(system) == 0 {
		return result, nil
	}
	return result, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
}
