package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/toolscout/toolscout/internal/mcp"
)

type rpcCall struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

// fakeMCPServer answers initialize, tools/list (two pages) and tools/call
type fakeMCPServer struct {
	mu    sync.Mutex
	calls []rpcCall
}

func (s *fakeMCPServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64                  `json:"id"`
			Method string                 `json:"method"`
			Params map[string]interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.calls = append(s.calls, rpcCall{Method: req.Method, Params: req.Params})
		s.mu.Unlock()

		var result interface{}
		switch req.Method {
		case "initialize":
			result = map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"serverInfo":      map[string]interface{}{"name": "fake", "version": "0.1"},
			}
		case "tools/list":
			if req.Params["cursor"] == "page2" {
				result = map[string]interface{}{
					"tools": []map[string]interface{}{
						{"name": "remote_b", "description": "second tool", "inputSchema": map[string]interface{}{"type": "object"}},
					},
				}
			} else {
				result = map[string]interface{}{
					"tools": []map[string]interface{}{
						{"name": "remote_a", "description": "first tool", "inputSchema": map[string]interface{}{"type": "object"}},
					},
					"nextCursor": "page2",
				}
			}
		case "tools/call":
			if req.Params["name"] == "broken" {
				result = map[string]interface{}{
					"isError": true,
					"content": []map[string]interface{}{{"type": "text", "text": "tool blew up"}},
				}
			} else {
				result = map[string]interface{}{
					"content": []map[string]interface{}{
						{"type": "text", "text": "remote says hi"},
						{"type": "image", "data": "..."},
					},
				}
			}
		default:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": result,
		})
	}
}

func (s *fakeMCPServer) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Method
	}
	return out
}

func TestListToolsPaginated(t *testing.T) {
	fake := &fakeMCPServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := mcp.NewClient("fake", srv.URL, 5*time.Second)
	ctx := context.Background()

	page, next, err := c.ListTools(ctx, "")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(page) != 1 || page[0].Name != "remote_a" {
		t.Fatalf("first page = %+v", page)
	}
	if next != "page2" {
		t.Fatalf("next cursor = %q, want page2", next)
	}

	page, next, err = c.ListTools(ctx, next)
	if err != nil {
		t.Fatalf("ListTools page 2: %v", err)
	}
	if len(page) != 1 || page[0].Name != "remote_b" {
		t.Fatalf("second page = %+v", page)
	}
	if next != "" {
		t.Errorf("next cursor after last page = %q, want empty", next)
	}

	// initialize runs exactly once, before the first listing
	methods := fake.methods()
	if methods[0] != "initialize" {
		t.Errorf("first call = %q, want initialize", methods[0])
	}
	initCount := 0
	for _, m := range methods {
		if m == "initialize" {
			initCount++
		}
	}
	if initCount != 1 {
		t.Errorf("initialize called %d times, want 1", initCount)
	}
}

func TestCallTool(t *testing.T) {
	fake := &fakeMCPServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := mcp.NewClient("fake", srv.URL, 5*time.Second)
	result, err := c.CallTool(context.Background(), "remote_a", map[string]interface{}{"x": 1})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", result.Content)
	}
	if len(result.Content) != 2 {
		t.Fatalf("content = %v", result.Content)
	}
	if result.Content[0] != "remote says hi" {
		t.Errorf("text content = %q", result.Content[0])
	}
	// Non-text content is noted, not dropped
	if result.Content[1] == "" {
		t.Error("non-text content should leave a note")
	}
}

func TestCallToolErrorResult(t *testing.T) {
	fake := &fakeMCPServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := mcp.NewClient("fake", srv.URL, 5*time.Second)
	result, err := c.CallTool(context.Background(), "broken", nil)
	if err != nil {
		t.Fatalf("a tool-reported failure is not a Go error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if result.Content[0] != "tool blew up" {
		t.Errorf("content = %v", result.Content)
	}
}

func TestRPCErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]interface{}{"code": -32000, "message": "server on fire"},
		})
	}))
	defer srv.Close()

	c := mcp.NewClient("fake", srv.URL, 5*time.Second)
	if _, _, err := c.ListTools(context.Background(), ""); err == nil {
		t.Fatal("expected RPC error to surface")
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := mcp.NewClient("fake", srv.URL, 5*time.Second)
	if _, err := c.CallTool(context.Background(), "any", nil); err == nil {
		t.Fatal("expected HTTP error to surface")
	}
}
