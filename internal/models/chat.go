// Package models holds the request and response shapes of the HTTP API.
package models

import (
	"github.com/toolscout/toolscout/internal/conversation"
	"github.com/toolscout/toolscout/internal/message"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ConversationResponse is returned by POST /api/v1/conversations
type ConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// ChatRequest is the body of POST /api/v1/conversations/{id}/messages
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries one turn's observable events and the final reply text
type ChatResponse struct {
	ConversationID string               `json:"conversation_id"`
	Reply          string               `json:"reply"`
	Events         []conversation.Event `json:"events"`
}

// HistoryResponse replays a conversation's messages
type HistoryResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
}

// HistoryMessage is the wire shape of one history entry
type HistoryMessage struct {
	Role   message.Role `json:"role"`
	Blocks []any        `json:"blocks"`
}

// ToolsResponse lists routed tools
type ToolsResponse struct {
	Tools []ToolInfo `json:"tools"`
}

// ToolInfo describes one routed tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Backend     string `json:"backend,omitempty"`
}
