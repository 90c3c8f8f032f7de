package provider

import (
	"encoding/json"
	"regexp"
	"strings"

	"tcode/model"
)

// Some OpenAI-compatible models hosted on OpenRouter ignore the tools
// parameter and print the call as text instead. The parsers below recover
// those calls so the engine can still execute them.

var (
	xmlToolCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)
	fencedJSONPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

type leakedCall struct {
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
	Parameters map[string]any `json:"parameters"`
}

func (l leakedCall) toolCall() (model.ToolCall, bool) {
	if l.Name == "" {
		return model.ToolCall{}, false
	}
	args := l.Arguments
	if args == nil {
		args = l.Parameters
	}
	if args == nil {
		return model.ToolCall{}, false
	}
	return model.ToolCall{Name: l.Name, Arguments: args}, true
}

// ParseLeakedJSONToolCalls extracts tool calls printed as JSON objects of
// the form {"name": ..., "arguments": {...}}, either bare or in a fenced
// code block. Only names in known are accepted.
func ParseLeakedJSONToolCalls(content string, known map[string]bool) []model.ToolCall {
	var candidates []string
	for _, m := range fencedJSONPattern.FindAllStringSubmatch(content, -1) {
		candidates = append(candidates, m[1])
	}
	if len(candidates) == 0 {
		trimmed := strings.TrimSpace(content)
		if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			candidates = append(candidates, trimmed)
		}
	}

	return decodeLeaked(candidates, known)
}

// ParseLeakedXMLToolCalls extracts calls wrapped in <tool_call> tags, the
// format used by Qwen and Hermes style chat templates.
func ParseLeakedXMLToolCalls(content string, known map[string]bool) []model.ToolCall {
	var candidates []string
	for _, m := range xmlToolCallPattern.FindAllStringSubmatch(content, -1) {
		candidates = append(candidates, m[1])
	}
	return decodeLeaked(candidates, known)
}

func decodeLeaked(candidates []string, known map[string]bool) []model.ToolCall {
	var calls []model.ToolCall
	for _, raw := range candidates {
		var lc leakedCall
		if err := json.Unmarshal([]byte(raw), &lc); err != nil {
			continue
		}
		call, ok := lc.toolCall()
		if !ok || !known[call.Name] {
			continue
		}
		calls = append(calls, call)
	}
	return ensureToolCallIDs(calls)
}
