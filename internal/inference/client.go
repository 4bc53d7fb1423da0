// Package inference invokes the conversational model with sticky fallback
// across a list of interchangeable models and bounded retry on throttling.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/toolscout/toolscout/internal/message"
	"github.com/toolscout/toolscout/internal/tools"
)

// ErrAllRetriesExhausted means every model in the fallback order was
// throttled through its full retry budget
var ErrAllRetriesExhausted = errors.New("all model retries exhausted")

// maxRetriesPerModel is the per-model attempt budget before falling back
const maxRetriesPerModel = 5

// StopReason is why the model stopped producing output
type StopReason string

const (
	StopToolUse StopReason = "tool_use"
	StopEndTurn StopReason = "end_turn"
	StopOther   StopReason = "other"
)

// Response is one model reply: the produced message and the stop condition
type Response struct {
	Message    message.Message
	StopReason StopReason
}

// messageService is the slice of the Anthropic client the inference client
// uses; it exists so tests can script responses
type messageService interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client invokes the model API with progressive fallback. One Client serves
// one conversation: the fallback cursor is mutable state and calls are not
// synchronized.
type Client struct {
	messages   messageService
	modelOrder []string
	cursor     int
	maxTokens  int64
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates an inference client with the given model fallback order. The
// order must be non-empty; the first entry is tried first until throttling
// forces a switch.
func New(client *anthropic.Client, modelOrder []string, maxTokens int) (*Client, error) {
	if len(modelOrder) == 0 {
		return nil, errors.New("model fallback order must not be empty")
	}
	return &Client{
		messages:   client.Messages,
		modelOrder: modelOrder,
		maxTokens:  int64(maxTokens),
		sleep:      sleepCtx,
	}, nil
}

// Invoke sends the full history plus the selected tool subset to the model.
// Throttling is retried with quadratic backoff, then the next model in the
// fallback order is tried; on success the cursor sticks to the model that
// answered. Any non-throttling fault aborts immediately.
func (c *Client) Invoke(ctx context.Context, history []message.Message, descs []tools.Descriptor, systemPrompt string) (*Response, error) {
	params, err := c.buildParams(history, descs, systemPrompt)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < len(c.modelOrder); attempt++ {
		idx := (c.cursor + attempt) % len(c.modelOrder)
		model := c.modelOrder[idx]
		if idx != c.cursor {
			log.Warn().Str("model", model).Msg("throttled; falling back to next model")
		}
		params.Model = anthropic.F(anthropic.Model(model))

		for i := 0; i < maxRetriesPerModel; i++ {
			resp, err := c.messages.New(ctx, params)
			if err == nil {
				c.cursor = idx
				return translateResponse(resp), nil
			}

			if !isThrottling(err) {
				return nil, fmt.Errorf("model call failed: %w", err)
			}

			// Quadratic backoff: 100, 200, 500, 1000, 1700ms
			delay := time.Duration(100+100*i*i) * time.Millisecond
			log.Debug().
				Str("model", model).
				Int("retry", i).
				Dur("delay", delay).
				Msg("throttled by model API")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, ErrAllRetriesExhausted
}

// isThrottling reports whether the error is a rate-limit response. Anything
// else is treated as non-transient.
func isThrottling(err error) bool {
	var apierr *anthropic.Error
	return errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// buildParams assembles the native request: system prompt, history verbatim,
// and a tool block only when the tool subset is non-empty
func (c *Client) buildParams(history []message.Message, descs []tools.Descriptor, systemPrompt string) (anthropic.MessageNewParams, error) {
	msgs := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		param, err := toMessageParam(m)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		msgs = append(msgs, param)
	}

	params := anthropic.MessageNewParams{
		MaxTokens: anthropic.F(c.maxTokens),
		Messages:  anthropic.F(msgs),
	}
	if systemPrompt != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(systemPrompt),
		})
	}
	if len(descs) > 0 {
		params.Tools = anthropic.F(toolParams(descs))
	}
	return params, nil
}

// toolParams translates descriptors into the API's tool schema dialect
func toolParams(descs []tools.Descriptor) []anthropic.ToolUnionUnionParam {
	out := make([]anthropic.ToolUnionUnionParam, len(descs))
	for i, d := range descs {
		schema := map[string]interface{}{
			"type": "object",
		}
		if props, ok := d.InputSchema["properties"]; ok {
			schema["properties"] = props
		}
		if required, ok := d.InputSchema["required"]; ok {
			schema["required"] = required
		}
		out[i] = anthropic.ToolParam{
			Name:        anthropic.String(d.Name),
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.F[interface{}](schema),
		}
	}
	return out
}

// toMessageParam converts one history message into the wire shape
func toMessageParam(m message.Message) (anthropic.MessageParam, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
	for _, b := range m.Content {
		switch blk := b.(type) {
		case message.TextBlock:
			blocks = append(blocks, anthropic.NewTextBlock(blk.Text))
		case message.ToolUseBlock:
			blocks = append(blocks, anthropic.ToolUseBlockParam{
				Type:  anthropic.F(anthropic.ToolUseBlockParamTypeToolUse),
				ID:    anthropic.F(blk.ID),
				Name:  anthropic.F(blk.Name),
				Input: anthropic.F[interface{}](blk.Input),
			})
		case message.ToolResultBlock:
			content := ""
			for i, c := range blk.Content {
				if i > 0 {
					content += "\n"
				}
				content += c
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(
				blk.ToolUseID, content, blk.Status == message.ToolResultError))
		default:
			return anthropic.MessageParam{}, fmt.Errorf("unsupported content block %T", b)
		}
	}

	role := anthropic.MessageParamRoleUser
	if m.Role == message.RoleAssistant {
		role = anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParam{
		Role:    anthropic.F(role),
		Content: anthropic.F(blocks),
	}, nil
}

// translateResponse converts the API reply into the conversation model
func translateResponse(resp *anthropic.Message) *Response {
	msg := message.Message{Role: message.RoleAssistant}
	for _, block := range resp.Content {
		switch b := block.AsUnion().(type) {
		case anthropic.TextBlock:
			msg.Content = append(msg.Content, message.TextBlock{Text: b.Text})
		case anthropic.ToolUseBlock:
			var input map[string]interface{}
			if err := json.Unmarshal(b.Input, &input); err != nil {
				log.Warn().Err(err).Str("tool", b.Name).Msg("failed to parse tool input")
				input = map[string]interface{}{}
			}
			msg.Content = append(msg.Content, message.ToolUseBlock{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
		}
	}

	stop := StopOther
	switch string(resp.StopReason) {
	case "tool_use":
		stop = StopToolUse
	case "end_turn", "stop_sequence", "max_tokens":
		stop = StopEndTurn
	}
	return &Response{Message: msg, StopReason: stop}
}
