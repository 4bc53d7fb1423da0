package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/toolscout/toolscout/internal/conversation"
	"github.com/toolscout/toolscout/internal/message"
	"github.com/toolscout/toolscout/internal/models"
	"github.com/toolscout/toolscout/internal/security"
)

// OrchestratorFactory builds a fresh orchestrator for a new conversation.
// Each conversation gets its own inference client so model fallback state
// stays per-conversation.
type OrchestratorFactory func() (*conversation.Orchestrator, error)

type conversationEntry struct {
	mu   sync.Mutex
	orch *conversation.Orchestrator
}

// ChatHandler owns the live conversations and handles the chat endpoints
type ChatHandler struct {
	mu            sync.RWMutex
	conversations map[string]*conversationEntry
	factory       OrchestratorFactory
	validator     *security.PromptValidator
}

func NewChatHandler(factory OrchestratorFactory, validator *security.PromptValidator) *ChatHandler {
	return &ChatHandler{
		conversations: make(map[string]*conversationEntry),
		factory:       factory,
		validator:     validator,
	}
}

// CreateConversation handles POST /api/v1/conversations
func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	orch, err := h.factory()
	if err != nil {
		log.Error().Err(err).Msg("failed to create conversation")
		models.WriteError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.conversations[id] = &conversationEntry{orch: orch}
	h.mu.Unlock()

	log.Info().Str("conversation_id", id).Msg("conversation created")
	models.WriteJSON(w, http.StatusCreated, models.ConversationResponse{ConversationID: id})
}

// SendMessage handles POST /api/v1/conversations/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry := h.lookup(id)
	if entry == nil {
		models.WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Validate(req.Message); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// One turn at a time per conversation
	entry.mu.Lock()
	defer entry.mu.Unlock()

	events, err := entry.orch.Send(r.Context(), req.Message)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", id).Msg("turn failed")
		models.WriteError(w, http.StatusBadGateway, "turn failed: "+err.Error())
		return
	}

	models.WriteJSON(w, http.StatusOK, models.ChatResponse{
		ConversationID: id,
		Reply:          replyText(events),
		Events:         events,
	})
}

// GetHistory handles GET /api/v1/conversations/{id}/history
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry := h.lookup(id)
	if entry == nil {
		models.WriteError(w, http.StatusNotFound, "conversation not found")
		return
	}

	entry.mu.Lock()
	history := entry.orch.History()
	entry.mu.Unlock()

	msgs := make([]models.HistoryMessage, len(history))
	for i, m := range history {
		msgs[i] = models.HistoryMessage{Role: m.Role, Blocks: wireBlocks(m.Content)}
	}
	models.WriteJSON(w, http.StatusOK, models.HistoryResponse{
		ConversationID: id,
		Messages:       msgs,
	})
}

func (h *ChatHandler) lookup(id string) *conversationEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conversations[id]
}

// replyText joins the turn's assistant text events into the final reply
func replyText(events []conversation.Event) string {
	reply := ""
	for _, e := range events {
		if e.Type == conversation.EventText {
			if reply != "" {
				reply += "\n"
			}
			reply += e.Text
		}
	}
	return reply
}

// wireBlocks tags each block with its variant for JSON clients
func wireBlocks(blocks []message.Block) []any {
	out := make([]any, 0, len(blocks))
	for _, b := range blocks {
		switch blk := b.(type) {
		case message.TextBlock:
			out = append(out, map[string]any{"type": "text", "text": blk.Text})
		case message.ToolUseBlock:
			out = append(out, map[string]any{
				"type":  "tool_use",
				"id":    blk.ID,
				"name":  blk.Name,
				"input": blk.Input,
			})
		case message.ToolResultBlock:
			out = append(out, map[string]any{
				"type":        "tool_result",
				"tool_use_id": blk.ToolUseID,
				"status":      blk.Status,
				"content":     blk.Content,
			})
		}
	}
	return out
}
