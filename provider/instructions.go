package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// buildToolInstructions creates the short system preamble sent with tool
// schemas. Models handle tools natively but still need execution guidance.
func buildToolInstructions(tools []mcptypes.Tool) string {
	toolNames := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(toolNames, ", "),
		"",
		"When the task requires a tool:",
		"1. Determine which tool is needed",
		"2. Check if you have all required parameters",
		"3. If yes: call the tool IMMEDIATELY without explanation",
		"4. If no: ask for the missing parameter ONLY",
		"",
		"Write complete file contents with write_file; partial edits are not supported.",
		"Paths are relative to the project root.",
		"When you are done, reply with a short summary and no tool calls.",
	}, "\n")
}

// shouldSkipToolInstructions checks if a model breaks with explicit tool
// instructions. Qwen models understand tools natively and start printing
// XML tool calls when prompted.
func shouldSkipToolInstructions(modelName string) bool {
	return strings.Contains(strings.ToLower(modelName), "qwen")
}

// toolNameSet returns the names of tools as a lookup set.
func toolNameSet(tools []mcptypes.Tool) map[string]bool {
	names := make(map[string]bool, len(tools))
	for _, t := range tools {
		names[t.Name] = true
	}
	return names
}
