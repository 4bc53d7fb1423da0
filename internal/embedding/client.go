// Package embedding calls the text-embedding service that backs the tool
// index.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mode distinguishes documents being indexed from queries being searched.
// The embedding model produces asymmetric vectors for the two, which
// improves retrieval accuracy.
type Mode string

const (
	ModeDocument Mode = "search_document"
	ModeQuery    Mode = "search_query"
)

// Client is an HTTP client for the embedding service
type Client struct {
	httpClient *http.Client
	endpoint   string
	dimensions int
}

// NewClient creates an embedding client for the given endpoint producing
// vectors of the given dimensionality
func NewClient(endpoint string, dimensions int, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		dimensions: dimensions,
	}
}

// Dimensions returns the vector size this client requests
func (c *Client) Dimensions() int { return c.dimensions }

type embedRequest struct {
	InputText  string `json:"inputText"`
	InputType  Mode   `json:"inputType"`
	Dimensions int    `json:"dimensions"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text. The mode tags whether the
// text is an index document or a search query.
func (c *Client) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		InputText:  text,
		InputType:  mode,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed call: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("embed service returned %s: %s", res.Status, msg)
	}

	var parsed embedResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embedding) != c.dimensions {
		return nil, fmt.Errorf("embed service returned %d dimensions, want %d",
			len(parsed.Embedding), c.dimensions)
	}
	return parsed.Embedding, nil
}
