package provider

import (
	"strings"
	"testing"

	"tcode/model"
)

func toolRound() []model.Message {
	calls := []model.ToolCall{
		{ID: "call_a", Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		{ID: "call_b", Name: "read_file", Arguments: map[string]any{"path": "b.go"}},
	}
	return []model.Message{
		{Role: model.RoleSystem, Content: "You are a coding assistant."},
		{Role: model.RoleUser, Content: "compare a.go and b.go"},
		{Role: model.RoleAssistant, Content: "Reading both.", Metadata: model.Metadata{ToolCalls: calls}},
		model.ToolResultMessage(calls[0], "package a"),
		model.ToolResultMessage(calls[1], "Error: open b.go: no such file or directory"),
	}
}

func TestConvertToAnthropicMessages(t *testing.T) {
	msgs, system := ConvertToAnthropicMessages(toolRound())

	if len(system) != 1 || system[0].Text != "You are a coding assistant." {
		t.Fatalf("system blocks = %+v", system)
	}
	// user, assistant, merged tool results
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	assistant := msgs[1]
	if string(assistant.Role) != "assistant" {
		t.Errorf("msgs[1].Role = %q", assistant.Role)
	}
	if len(assistant.Content) != 3 {
		t.Fatalf("assistant blocks = %d, want text + 2 tool_use", len(assistant.Content))
	}
	if use := assistant.Content[1].OfToolUse; use == nil || use.ID != "call_a" || use.Name != "read_file" {
		t.Errorf("first tool_use block = %+v", assistant.Content[1])
	}

	results := msgs[2]
	if string(results.Role) != "user" {
		t.Errorf("tool results role = %q, want user", results.Role)
	}
	if len(results.Content) != 2 {
		t.Fatalf("tool results not merged: %d blocks", len(results.Content))
	}
	for i, want := range []string{"call_a", "call_b"} {
		block := results.Content[i].OfToolResult
		if block == nil {
			t.Fatalf("block %d is not a tool_result", i)
		}
		if block.ToolUseID != want {
			t.Errorf("block %d ToolUseID = %q, want %q", i, block.ToolUseID, want)
		}
	}
	if !results.Content[1].OfToolResult.IsError.Value {
		t.Error("error result should be flagged is_error")
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := ConvertToOpenAIMessages(toolRound())
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}

	if msgs[0].OfSystem == nil {
		t.Error("msgs[0] should be a system message")
	}

	assistant := msgs[2].OfAssistant
	if assistant == nil {
		t.Fatal("msgs[2] should be an assistant message")
	}
	if len(assistant.ToolCalls) != 2 {
		t.Fatalf("assistant tool calls = %d, want 2", len(assistant.ToolCalls))
	}
	fn := assistant.ToolCalls[0].OfFunction
	if fn == nil || fn.ID != "call_a" || fn.Function.Name != "read_file" {
		t.Errorf("first tool call = %+v", assistant.ToolCalls[0])
	}
	if !strings.Contains(fn.Function.Arguments, `"path":"a.go"`) {
		t.Errorf("arguments = %s", fn.Function.Arguments)
	}

	for i, want := range []string{"call_a", "call_b"} {
		tool := msgs[3+i].OfTool
		if tool == nil {
			t.Fatalf("msgs[%d] should be a tool message", 3+i)
		}
		if tool.ToolCallID != want {
			t.Errorf("msgs[%d].ToolCallID = %q, want %q", 3+i, tool.ToolCallID, want)
		}
	}
}

func TestConvertToOllamaMessages(t *testing.T) {
	msgs := ConvertToOllamaMessages(toolRound())
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	if len(msgs[2].ToolCalls) != 2 || msgs[2].ToolCalls[1].Function.Name != "read_file" {
		t.Errorf("assistant tool calls = %+v", msgs[2].ToolCalls)
	}
	if msgs[3].Role != "tool" || msgs[3].ToolName != "read_file" {
		t.Errorf("tool message = %+v", msgs[3])
	}
}

func TestConvertToGeminiContents(t *testing.T) {
	contents, system := ConvertToGeminiContents(toolRound())
	if system == nil || len(system.Parts) == 0 || system.Parts[0].Text != "You are a coding assistant." {
		t.Fatalf("system instruction = %+v", system)
	}
	// user, model, merged function responses
	if len(contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(contents))
	}
	if contents[1].Role != "model" {
		t.Errorf("contents[1].Role = %q, want model", contents[1].Role)
	}
	responses := contents[2]
	if len(responses.Parts) != 2 {
		t.Fatalf("function responses not merged: %d parts", len(responses.Parts))
	}
	if fr := responses.Parts[1].FunctionResponse; fr == nil || fr.Response["error"] == nil {
		t.Errorf("error result should use the error key: %+v", responses.Parts[1])
	}
}

func TestEnsureToolCallIDs(t *testing.T) {
	calls := ensureToolCallIDs([]model.ToolCall{
		{Name: "list_dir"},
		{ID: "keep", Name: "read_file", Arguments: map[string]any{"path": "x"}},
		{Name: "list_dir"},
	})

	if calls[1].ID != "keep" {
		t.Errorf("existing id replaced: %q", calls[1].ID)
	}
	if !strings.HasPrefix(calls[0].ID, "call_") || len(calls[0].ID) != len("call_")+24 {
		t.Errorf("generated id %q has unexpected shape", calls[0].ID)
	}
	if calls[0].ID == calls[2].ID {
		t.Error("generated ids must be unique")
	}
	if calls[0].Arguments == nil {
		t.Error("nil arguments should default to an empty map")
	}
}

func TestParseToolArguments(t *testing.T) {
	if got := ParseToolArguments(`{"path":"main.go"}`); got["path"] != "main.go" {
		t.Errorf("ParseToolArguments() = %v", got)
	}
	if got := ParseToolArguments(`not json`); got == nil || len(got) != 0 {
		t.Errorf("malformed arguments should give an empty map, got %v", got)
	}
}
