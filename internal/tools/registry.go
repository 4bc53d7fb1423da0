package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// registryPageSize bounds one page of a tool listing
const registryPageSize = 50

// Registry is an in-process tool backend. It holds executable tools, lists
// them page by page and validates call arguments against each tool's input
// schema before executing. Safe for concurrent calls once all tools are
// registered.
type Registry struct {
	name    string
	tools   []Tool
	byName  map[string]int
	schemas map[string]*jsonschema.Schema
}

// NewRegistry creates an empty registry identified by name
func NewRegistry(name string) *Registry {
	return &Registry{
		name:    name,
		byName:  make(map[string]int),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Name returns the backend name used in routing diagnostics
func (r *Registry) Name() string { return r.name }

// Register adds a tool and compiles its input schema. Registration happens
// during startup only; it is not safe to call concurrently with ListTools
// or CallTool.
func (r *Registry) Register(t Tool) error {
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("tool %q already registered in backend %q", t.Name, r.name)
	}

	if t.InputSchema != nil {
		sch, err := compileSchema(t.Name, t.InputSchema)
		if err != nil {
			return fmt.Errorf("compile schema for tool %q: %w", t.Name, err)
		}
		r.schemas[t.Name] = sch
	}

	r.byName[t.Name] = len(r.tools)
	r.tools = append(r.tools, t)
	return nil
}

// ListTools returns one page of descriptors. The cursor is an opaque token;
// pass "" for the first page. An empty next cursor marks the last page.
func (r *Registry) ListTools(ctx context.Context, cursor string) ([]Descriptor, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(r.tools) {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = n
	}

	end := offset + registryPageSize
	if end > len(r.tools) {
		end = len(r.tools)
	}

	page := make([]Descriptor, 0, end-offset)
	for _, t := range r.tools[offset:end] {
		page = append(page, t.Descriptor())
	}

	next := ""
	if end < len(r.tools) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

// CallTool validates the arguments and executes the named tool. Execution
// failures and schema violations come back as error results, not Go errors;
// a Go error means the tool does not exist here.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]interface{}) (*Result, error) {
	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not registered in backend %q", name, r.name)
	}
	t := r.tools[idx]

	if sch := r.schemas[name]; sch != nil {
		if err := sch.Validate(normalizeInstance(args)); err != nil {
			log.Warn().Err(err).Str("tool", name).Msg("tool arguments failed schema validation")
			return &Result{
				IsError: true,
				Content: []string{fmt.Sprintf("invalid arguments for %s: %v", name, err)},
			}, nil
		}
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		return &Result{IsError: true, Content: []string{err.Error()}}, nil
	}
	return &Result{Content: []string{out}}, nil
}

// compileSchema round-trips the schema map through JSON so the compiler sees
// the same document shape it would load from disk
func compileSchema(name string, schema map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	url := "mem://tools/" + name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// normalizeInstance re-decodes the arguments so numeric types match what the
// validator expects regardless of how the caller built the map
func normalizeInstance(args map[string]interface{}) interface{} {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return args
	}
	return doc
}
