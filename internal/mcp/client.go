// Package mcp is a minimal MCP client over HTTP JSON-RPC 2.0, enough to
// list a remote server's tools page by page and call them.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toolscout/toolscout/internal/tools"
)

const protocolVersion = "2024-11-05"

// Client talks to one remote MCP server. It satisfies the router's backend
// contract; one Client per configured server URL.
type Client struct {
	name        string
	url         string
	httpClient  *http.Client
	id          atomic.Int64
	initOnce    sync.Once
	initErr     error
	initialized bool
}

// NewClient creates a client for the MCP server at url. The name is used
// in routing diagnostics.
func NewClient(name, url string, timeout time.Duration) *Client {
	return &Client{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the backend name
func (c *Client) Name() string { return c.name }

type rpcRequest struct {
	Version string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) doRPC(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		Version: "2.0",
		ID:      c.id.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s call to %s: %w", method, c.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%s call to %s returned %s: %s", method, c.name, res.Status, msg)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s on %s failed: %s (code %d)",
			method, c.name, parsed.Error.Message, parsed.Error.Code)
	}
	return parsed.Result, nil
}

// init performs the MCP initialize handshake once per client
func (c *Client) init(ctx context.Context) error {
	c.initOnce.Do(func() {
		_, err := c.doRPC(ctx, "initialize", map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{},
			"clientInfo": map[string]interface{}{
				"name":    "toolscout",
				"version": "1.0.0",
			},
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.initialized = true
	})
	if !c.initialized {
		return c.initErr
	}
	return nil
}

type listToolsResult struct {
	Tools []struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description"`
		InputSchema map[string]interface{} `json:"inputSchema"`
	} `json:"tools"`
	NextCursor string `json:"nextCursor"`
}

// ListTools returns one page of the server's tools
func (c *Client) ListTools(ctx context.Context, cursor string) ([]tools.Descriptor, string, error) {
	if err := c.init(ctx); err != nil {
		return nil, "", err
	}

	params := map[string]interface{}{}
	if cursor != "" {
		params["cursor"] = cursor
	}
	raw, err := c.doRPC(ctx, "tools/list", params)
	if err != nil {
		return nil, "", err
	}

	var parsed listToolsResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, "", fmt.Errorf("decode tools/list result: %w", err)
	}

	page := make([]tools.Descriptor, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		page = append(page, tools.Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return page, parsed.NextCursor, nil
}

type callToolResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// CallTool executes a tool on the remote server. Text content blocks are
// kept; other content types are noted but not rendered.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*tools.Result, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	raw, err := c.doRPC(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var parsed callToolResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode tools/call result: %w", err)
	}

	result := &tools.Result{IsError: parsed.IsError}
	for _, blk := range parsed.Content {
		if blk.Type == "text" {
			result.Content = append(result.Content, blk.Text)
		} else {
			result.Content = append(result.Content, fmt.Sprintf("[unsupported content type %q]", blk.Type))
		}
	}
	return result, nil
}
