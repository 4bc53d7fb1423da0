// Package message defines the conversation data model shared by the
// orchestrator and the inference client: messages with a closed set of
// content block variants (text, tool use, tool result).
package message

import "strings"

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolResultStatus indicates whether a tool call succeeded
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
)

// Block is a single content block inside a message. The set of
// implementations is closed: TextBlock, ToolUseBlock, ToolResultBlock.
// Consumers switch exhaustively over these three.
type Block interface {
	blockKind() string
}

// TextBlock is plain assistant or user text
type TextBlock struct {
	Text string `json:"text"`
}

// ToolUseBlock is a request from the model to execute a named tool
type ToolUseBlock struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResultBlock carries the outcome of a tool call back to the model
type ToolResultBlock struct {
	ToolUseID string           `json:"tool_use_id"`
	Status    ToolResultStatus `json:"status"`
	Content   []string         `json:"content"`
}

func (TextBlock) blockKind() string       { return "text" }
func (ToolUseBlock) blockKind() string    { return "tool_use" }
func (ToolResultBlock) blockKind() string { return "tool_result" }

// Message is one turn of the conversation. Immutable once appended to history.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// NewUserText builds a user message containing a single text block
func NewUserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock{Text: text}}}
}

// NewToolResult builds the user message that answers a tool-use block
func NewToolResult(toolUseID string, status ToolResultStatus, content []string) Message {
	return Message{
		Role: RoleUser,
		Content: []Block{ToolResultBlock{
			ToolUseID: toolUseID,
			Status:    status,
			Content:   content,
		}},
	}
}

// Text concatenates all text blocks of the message
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if t, ok := b.(TextBlock); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// FirstToolUse returns the first tool-use block, or nil if the message
// contains none
func (m Message) FirstToolUse() *ToolUseBlock {
	for _, b := range m.Content {
		if tu, ok := b.(ToolUseBlock); ok {
			return &tu
		}
	}
	return nil
}
