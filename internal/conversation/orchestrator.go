// Package conversation drives the agent loop for one conversation: search
// relevant tools, invoke the model, dispatch requested tool calls, fold the
// results back into history, repeat until the model stops asking for tools.
package conversation

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/toolscout/toolscout/internal/inference"
	"github.com/toolscout/toolscout/internal/message"
	"github.com/toolscout/toolscout/internal/tools"
)

// ToolFinder selects the tools relevant to a query
type ToolFinder interface {
	Search(ctx context.Context, query string, maxResults int, minScore float64) ([]tools.Descriptor, error)
}

// Inferencer invokes the conversational model
type Inferencer interface {
	Invoke(ctx context.Context, history []message.Message, descs []tools.Descriptor, systemPrompt string) (*inference.Response, error)
}

// Dispatcher routes a tool call to the backend that owns it
type Dispatcher interface {
	Call(ctx context.Context, name string, args map[string]interface{}) (*tools.Result, error)
}

// EventType classifies an observable event emitted during a turn
type EventType string

const (
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
)

// Event is one observable step of a turn: assistant text, a tool-call
// notice, or a tool result
type Event struct {
	Type      EventType              `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ToolName  string                 `json:"tool_name,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
}

// verticalWS matches runs of vertical whitespace, which the search backend
// and system prompt handle poorly when left raw
var verticalWS = regexp.MustCompile(`[\v\f\r\n]+`)

func collapseVertical(s string) string {
	return verticalWS.ReplaceAllString(s, `\n`)
}

// Orchestrator owns one conversation's history and state machine. It is
// single-threaded by contract: callers must not run two Send calls for the
// same conversation concurrently.
type Orchestrator struct {
	finder       ToolFinder
	llm          Inferencer
	dispatcher   Dispatcher
	systemPrompt string
	maxResults   int
	minScore     float64
	history      []message.Message
}

// New creates an orchestrator for a fresh conversation
func New(finder ToolFinder, llm Inferencer, dispatcher Dispatcher, systemPrompt string, maxResults int, minScore float64) *Orchestrator {
	return &Orchestrator{
		finder:       finder,
		llm:          llm,
		dispatcher:   dispatcher,
		systemPrompt: collapseVertical(systemPrompt),
		maxResults:   maxResults,
		minScore:     minScore,
	}
}

// History returns a copy of the conversation so far
func (o *Orchestrator) History() []message.Message {
	out := make([]message.Message, len(o.history))
	copy(out, o.history)
	return out
}

// Send runs one full turn: append the user message, then loop between tool
// search, inference and tool dispatch until the model stops requesting
// tools. Tool faults become conversational context; inference faults
// propagate with history left at its last consistent state.
func (o *Orchestrator) Send(ctx context.Context, userText string) ([]Event, error) {
	o.append(message.NewUserText(userText))

	var events []Event
	for {
		query := o.buildSearchQuery(userText)
		descs, err := o.finder.Search(ctx, query, o.maxResults, o.minScore)
		if err != nil {
			return events, fmt.Errorf("search tools: %w", err)
		}
		logToolNames(query, descs)

		resp, err := o.llm.Invoke(ctx, o.history, descs, o.systemPrompt)
		if err != nil {
			return events, fmt.Errorf("invoke model: %w", err)
		}

		o.append(resp.Message)
		events = append(events, renderMessage(resp.Message)...)

		if resp.StopReason != inference.StopToolUse {
			return events, nil
		}

		toolUse := resp.Message.FirstToolUse()
		if toolUse == nil {
			// Defensive guard against a malformed model response
			log.Warn().Msg("stop reason requested tool use but no tool-use block found")
			return events, nil
		}

		resultMsg, event := o.dispatch(ctx, toolUse)
		o.append(resultMsg)
		events = append(events, event)
	}
}

// dispatch calls the tool and converts any fault into an error result
// message; history always gets a matching tool result before the next
// inference round
func (o *Orchestrator) dispatch(ctx context.Context, toolUse *message.ToolUseBlock) (message.Message, Event) {
	result, err := o.dispatcher.Call(ctx, toolUse.Name, toolUse.Input)
	if err != nil {
		log.Error().Err(err).Str("tool", toolUse.Name).Msg("tool dispatch failed")
		return message.NewToolResult(toolUse.ID, message.ToolResultError, []string{err.Error()}),
			Event{Type: EventToolResult, ToolName: toolUse.Name, Text: err.Error(), IsError: true}
	}

	status := message.ToolResultSuccess
	if result.IsError {
		status = message.ToolResultError
	}
	text := ""
	if len(result.Content) > 0 {
		text = result.Content[0]
	}
	return message.NewToolResult(toolUse.ID, status, result.Content),
		Event{Type: EventToolResult, ToolName: toolUse.Name, Text: text, IsError: result.IsError}
}

func (o *Orchestrator) append(m message.Message) {
	o.history = append(o.history, m)
}

// buildSearchQuery combines the new user text with the newest assistant
// text so the search reflects ongoing task context
func (o *Orchestrator) buildSearchQuery(userText string) string {
	query := userText
	if last := o.lastAssistantMessage(); last != nil {
		query = query + "\n" + last.Text()
	}
	return collapseVertical(query)
}

// lastAssistantMessage scans history newest-first for the most recent
// assistant message
func (o *Orchestrator) lastAssistantMessage() *message.Message {
	for i := len(o.history) - 1; i >= 0; i-- {
		if o.history[i].Role == message.RoleAssistant {
			return &o.history[i]
		}
	}
	return nil
}

// renderMessage turns an assistant message into observable events: text
// verbatim, tool-use blocks as a human-readable notice
func renderMessage(m message.Message) []Event {
	var events []Event
	for _, b := range m.Content {
		switch blk := b.(type) {
		case message.TextBlock:
			events = append(events, Event{Type: EventText, Text: blk.Text})
		case message.ToolUseBlock:
			events = append(events, Event{
				Type:      EventToolCall,
				Text:      fmt.Sprintf("calling tool %s", blk.Name),
				ToolName:  blk.Name,
				Arguments: blk.Input,
			})
		case message.ToolResultBlock:
			// Assistant messages never carry tool results; nothing to render
		}
	}
	return events
}

func logToolNames(query string, descs []tools.Descriptor) {
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	log.Debug().Str("query", query).Strs("tools", names).Msg("tool search results")
}
