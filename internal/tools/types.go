// Package tools defines the Tool interface and shared types used by the
// router, the index, and individual tool implementations.
package tools

import "context"

// Tool represents a callable function the LLM can invoke
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Execute     func(ctx context.Context, input map[string]interface{}) (string, error)
}

// Descriptor is the routable, indexable view of a tool: everything except
// how to execute it. Descriptors are immutable for the process lifetime.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Descriptor returns the tool's metadata without the executor
func (t Tool) Descriptor() Descriptor {
	return Descriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// Result is the outcome a backend reports for one tool call. IsError marks a
// tool-level failure; the call itself still completed.
type Result struct {
	IsError bool
	Content []string
}
