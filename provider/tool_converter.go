package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ToolsToOllama converts tool schemas to Ollama API tool format.
func ToolsToOllama(tools []mcptypes.Tool) []api.Tool {
	if len(tools) == 0 {
		return nil
	}

	ollamaTools := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToOllamaParameters(tool.InputSchema),
			},
		})
	}

	return ollamaTools
}

func schemaToOllamaParameters(inputSchema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       inputSchema.Type,
		Required:   inputSchema.Required,
		Properties: make(map[string]api.ToolProperty),
	}

	if inputSchema.Defs != nil {
		params.Defs = inputSchema.Defs
	}

	for propName, propValue := range inputSchema.Properties {
		params.Properties[propName] = convertPropertyValue(propValue)
	}

	return params
}

// convertPropertyValue converts one JSON-schema property to an Ollama ToolProperty.
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		// Round-trip through JSON for typed schema values
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// type can be a string or a list of strings
	switch t := propMap["type"].(type) {
	case string:
		toolProp.Type = api.PropertyType{t}
	case []string:
		toolProp.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		toolProp.Type = api.PropertyType(types)
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}

	if enumSlice, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enumSlice
	}

	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}

	if anyOfSlice, ok := propMap["anyOf"].([]any); ok {
		anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
		for _, item := range anyOfSlice {
			anyOfProps = append(anyOfProps, convertPropertyValue(item))
		}
		toolProp.AnyOf = anyOfProps
	}

	return toolProp
}

// ToolsToOpenAI converts tool schemas to OpenAI function tools. OpenRouter
// uses the same format.
func ToolsToOpenAI(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(schemaMap(tool.InputSchema)),
			},
		)
	}

	return result
}

// ToolsToAnthropic converts tool schemas to Anthropic tool params.
func ToolsToAnthropic(tools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		// Type defaults to "object" when omitted
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return result
}

// ToolsToGemini converts tool schemas to a single Gemini tool carrying one
// function declaration per schema.
func ToolsToGemini(tools []mcptypes.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParametersJsonSchema: schemaMap(tool.InputSchema),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// schemaMap renders an input schema as a plain JSON-schema object.
func schemaMap(schema mcptypes.ToolInputSchema) map[string]any {
	typ := schema.Type
	if typ == "" {
		typ = "object"
	}
	props := schema.Properties
	if props == nil {
		props = map[string]any{}
	}
	params := map[string]any{
		"type":       typ,
		"properties": props,
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	if schema.Defs != nil {
		params["$defs"] = schema.Defs
	}
	return params
}
