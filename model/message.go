package model

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Conversation is a durable thread of messages. Conversations are created
// lazily on the first message and never deleted by the engine.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a single entry in a conversation.
//
// Assistant messages carry the tool calls they requested in Metadata.ToolCalls.
// Tool-result messages carry the id and name of the call they answer in
// Metadata.ToolCallID and Metadata.ToolName.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Provider       string
	Model          string
	TokenCount     int
	Metadata       Metadata
	CreatedAt      time.Time
}

// Metadata holds the optional structured part of a message.
type Metadata struct {
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// IsEmpty reports whether the metadata carries nothing worth persisting.
func (m Metadata) IsEmpty() bool {
	return len(m.ToolCalls) == 0 && m.ToolCallID == "" && m.ToolName == ""
}

// ToolCall is a request emitted by a backend to invoke a named tool.
// ID is unique within the assistant message that carries it.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultMessage builds the tool-role message answering call.
func ToolResultMessage(call ToolCall, content string) Message {
	return Message{
		Role:    RoleTool,
		Content: content,
		Metadata: Metadata{
			ToolCallID: call.ID,
			ToolName:   call.Name,
		},
	}
}
