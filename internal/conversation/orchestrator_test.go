package conversation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/toolscout/toolscout/internal/conversation"
	"github.com/toolscout/toolscout/internal/inference"
	"github.com/toolscout/toolscout/internal/message"
	"github.com/toolscout/toolscout/internal/tools"
)

type fakeFinder struct {
	queries []string
	descs   []tools.Descriptor
	err     error
}

func (f *fakeFinder) Search(ctx context.Context, query string, maxResults int, minScore float64) ([]tools.Descriptor, error) {
	f.queries = append(f.queries, query)
	return f.descs, f.err
}

type fakeInferencer struct {
	responses []*inference.Response
	err       error
	calls     int
}

func (f *fakeInferencer) Invoke(ctx context.Context, history []message.Message, descs []tools.Descriptor, systemPrompt string) (*inference.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeDispatcher struct {
	calls   []string
	results map[string]*tools.Result
	err     error
}

func (f *fakeDispatcher) Call(ctx context.Context, name string, args map[string]interface{}) (*tools.Result, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[name], nil
}

func textResponse(text string) *inference.Response {
	return &inference.Response{
		Message: message.Message{
			Role:    message.RoleAssistant,
			Content: []message.Block{message.TextBlock{Text: text}},
		},
		StopReason: inference.StopEndTurn,
	}
}

func toolUseResponse(text, id, tool string, input map[string]interface{}) *inference.Response {
	return &inference.Response{
		Message: message.Message{
			Role: message.RoleAssistant,
			Content: []message.Block{
				message.TextBlock{Text: text},
				message.ToolUseBlock{ID: id, Name: tool, Input: input},
			},
		},
		StopReason: inference.StopToolUse,
	}
}

func TestSendPlainTextTurn(t *testing.T) {
	finder := &fakeFinder{}
	llm := &fakeInferencer{responses: []*inference.Response{textResponse("hello back")}}
	disp := &fakeDispatcher{}
	o := conversation.New(finder, llm, disp, "be helpful", 20, 0.4)

	events, err := o.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(events) != 1 || events[0].Type != conversation.EventText || events[0].Text != "hello back" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if len(disp.calls) != 0 {
		t.Errorf("no tools should have been dispatched, got %v", disp.calls)
	}

	history := o.History()
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if history[0].Role != message.RoleUser || history[1].Role != message.RoleAssistant {
		t.Errorf("unexpected roles: %v, %v", history[0].Role, history[1].Role)
	}
}

func TestSendToolUseTurn(t *testing.T) {
	finder := &fakeFinder{descs: []tools.Descriptor{{Name: "read_file"}}}
	llm := &fakeInferencer{responses: []*inference.Response{
		toolUseResponse("let me read that", "tu_1", "read_file", map[string]interface{}{"path": "a.txt"}),
		textResponse("the file says hello"),
	}}
	disp := &fakeDispatcher{results: map[string]*tools.Result{
		"read_file": {Content: []string{"hello"}},
	}}
	o := conversation.New(finder, llm, disp, "be helpful", 20, 0.4)

	events, err := o.Send(context.Background(), "read a.txt for me")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	wantTypes := []conversation.EventType{
		conversation.EventText,
		conversation.EventToolCall,
		conversation.EventToolResult,
		conversation.EventText,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantTypes), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %q, want %q", i, events[i].Type, want)
		}
	}
	if events[1].ToolName != "read_file" {
		t.Errorf("tool call event names %q", events[1].ToolName)
	}
	if events[2].Text != "hello" || events[2].IsError {
		t.Errorf("tool result event = %+v", events[2])
	}

	if len(disp.calls) != 1 || disp.calls[0] != "read_file" {
		t.Errorf("dispatched %v, want [read_file]", disp.calls)
	}

	// user, assistant tool-use, tool result, final assistant
	history := o.History()
	if len(history) != 4 {
		t.Fatalf("history has %d messages, want 4", len(history))
	}
	if history[2].Role != message.RoleUser {
		t.Errorf("tool result message role = %v, want user", history[2].Role)
	}
	trb, ok := history[2].Content[0].(message.ToolResultBlock)
	if !ok {
		t.Fatalf("history[2] first block is %T, want ToolResultBlock", history[2].Content[0])
	}
	if trb.ToolUseID != "tu_1" || trb.Status != message.ToolResultSuccess {
		t.Errorf("tool result block = %+v", trb)
	}
}

func TestSendToolFaultBecomesErrorResult(t *testing.T) {
	finder := &fakeFinder{}
	llm := &fakeInferencer{responses: []*inference.Response{
		toolUseResponse("trying", "tu_1", "vanished_tool", nil),
		textResponse("that tool is unavailable"),
	}}
	disp := &fakeDispatcher{err: errors.New("unknown tool: vanished_tool")}
	o := conversation.New(finder, llm, disp, "", 20, 0.4)

	events, err := o.Send(context.Background(), "use the tool")
	if err != nil {
		t.Fatalf("a tool fault must not fail the turn: %v", err)
	}

	var resultEvent *conversation.Event
	for i := range events {
		if events[i].Type == conversation.EventToolResult {
			resultEvent = &events[i]
		}
	}
	if resultEvent == nil {
		t.Fatal("expected a tool result event")
	}
	if !resultEvent.IsError {
		t.Error("tool fault should surface as an error result")
	}
	if !strings.Contains(resultEvent.Text, "vanished_tool") {
		t.Errorf("result text = %q", resultEvent.Text)
	}

	// The error became context for the follow-up inference round
	if llm.calls != 2 {
		t.Errorf("llm invoked %d times, want 2", llm.calls)
	}
	history := o.History()
	trb := history[2].Content[0].(message.ToolResultBlock)
	if trb.Status != message.ToolResultError {
		t.Errorf("tool result status = %q, want error", trb.Status)
	}
}

func TestSendSearchQueryIncludesLastAssistantText(t *testing.T) {
	finder := &fakeFinder{}
	llm := &fakeInferencer{responses: []*inference.Response{
		toolUseResponse("I will read the file now", "tu_1", "read_file", nil),
		textResponse("done"),
	}}
	disp := &fakeDispatcher{results: map[string]*tools.Result{"read_file": {Content: []string{"x"}}}}
	o := conversation.New(finder, llm, disp, "", 20, 0.4)

	if _, err := o.Send(context.Background(), "read a file"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(finder.queries) != 2 {
		t.Fatalf("made %d searches, want 2", len(finder.queries))
	}
	if finder.queries[0] != "read a file" {
		t.Errorf("first query = %q", finder.queries[0])
	}
	if !strings.Contains(finder.queries[1], "I will read the file now") {
		t.Errorf("second query should include the assistant text, got %q", finder.queries[1])
	}
	if strings.ContainsAny(finder.queries[1], "\n\r") {
		t.Errorf("query should have vertical whitespace collapsed: %q", finder.queries[1])
	}
}

func TestSendSearchFaultFailsTurn(t *testing.T) {
	finder := &fakeFinder{err: errors.New("index unavailable")}
	llm := &fakeInferencer{}
	o := conversation.New(finder, llm, &fakeDispatcher{}, "", 20, 0.4)

	if _, err := o.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected search fault to fail the turn")
	}
	if llm.calls != 0 {
		t.Errorf("model should not be invoked after a search fault")
	}
}

func TestSendInferenceFaultFailsTurn(t *testing.T) {
	llm := &fakeInferencer{err: inference.ErrAllRetriesExhausted}
	o := conversation.New(&fakeFinder{}, llm, &fakeDispatcher{}, "", 20, 0.4)

	_, err := o.Send(context.Background(), "hello")
	if !errors.Is(err, inference.ErrAllRetriesExhausted) {
		t.Fatalf("expected inference fault to propagate, got %v", err)
	}

	// History keeps the user message; no assistant message was produced
	history := o.History()
	if len(history) != 1 || history[0].Role != message.RoleUser {
		t.Errorf("unexpected history after fault: %+v", history)
	}
}

func TestSendMalformedToolUseResponse(t *testing.T) {
	// Stop reason claims tool use but no tool-use block is present
	malformed := &inference.Response{
		Message: message.Message{
			Role:    message.RoleAssistant,
			Content: []message.Block{message.TextBlock{Text: "hmm"}},
		},
		StopReason: inference.StopToolUse,
	}
	llm := &fakeInferencer{responses: []*inference.Response{malformed}}
	disp := &fakeDispatcher{}
	o := conversation.New(&fakeFinder{}, llm, disp, "", 20, 0.4)

	events, err := o.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Errorf("nothing should have been dispatched, got %v", disp.calls)
	}
	if len(events) != 1 || events[0].Type != conversation.EventText {
		t.Errorf("unexpected events: %+v", events)
	}
}
