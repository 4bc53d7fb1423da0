// Package router aggregates the tools exposed by any number of tool
// backends into one flat namespace and dispatches calls to the backend
// that owns each tool.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/toolscout/toolscout/internal/tools"
)

// ErrUnknownTool is returned by Call when no registered backend owns the
// requested tool name
var ErrUnknownTool = errors.New("unknown tool")

// DuplicateToolError reports a tool name claimed by two backends. Duplicate
// names across backends are a configuration error; registration fails fast
// instead of silently shadowing one backend with another.
type DuplicateToolError struct {
	Tool     string
	Backend  string
	Existing string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q from backend %q is already registered by backend %q",
		e.Tool, e.Backend, e.Existing)
}

// Backend is one tool provider. Implementations must be safe for concurrent
// CallTool once registration has finished.
type Backend interface {
	// Name identifies the backend in diagnostics
	Name() string
	// ListTools returns one page of tools. Pass "" for the first page;
	// an empty next cursor marks the last page.
	ListTools(ctx context.Context, cursor string) (page []tools.Descriptor, nextCursor string, err error)
	// CallTool executes a tool this backend owns
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*tools.Result, error)
}

// RoutedTool is a descriptor annotated with its owning backend
type RoutedTool struct {
	tools.Descriptor
	Backend string
}

// Router maps tool names to owning backends. Registration happens during a
// startup phase; afterwards ListAll and Call are safe to use concurrently.
type Router struct {
	mu       sync.RWMutex
	backends []Backend
	owners   map[string]Backend
	routed   []RoutedTool
}

// New creates an empty router
func New() *Router {
	return &Router{owners: make(map[string]Backend)}
}

// Register drains the backend's tool listing page by page and claims every
// returned name for that backend. A name already claimed by another backend
// fails the whole registration.
func (r *Router) Register(ctx context.Context, b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor := ""
	count := 0
	for {
		page, next, err := b.ListTools(ctx, cursor)
		if err != nil {
			return fmt.Errorf("list tools from backend %q: %w", b.Name(), err)
		}

		for _, d := range page {
			if existing, ok := r.owners[d.Name]; ok {
				return &DuplicateToolError{
					Tool:     d.Name,
					Backend:  b.Name(),
					Existing: existing.Name(),
				}
			}
			r.owners[d.Name] = b
			r.routed = append(r.routed, RoutedTool{Descriptor: d, Backend: b.Name()})
			count++
		}

		if next == "" {
			break
		}
		cursor = next
	}

	r.backends = append(r.backends, b)
	log.Info().Str("backend", b.Name()).Int("tools", count).Msg("registered tool backend")
	return nil
}

// ListAll returns the union of tools across all registered backends
func (r *Router) ListAll() []RoutedTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoutedTool, len(r.routed))
	copy(out, r.routed)
	return out
}

// Descriptors returns the plain descriptors of every routed tool, for
// feeding the index
func (r *Router) Descriptors() []tools.Descriptor {
	routed := r.ListAll()
	out := make([]tools.Descriptor, len(routed))
	for i, rt := range routed {
		out[i] = rt.Descriptor
	}
	return out
}

// Call dispatches the named tool to its owning backend. A backend-reported
// tool failure comes back as a Result with IsError set, not as a Go error.
// There is no retry here; faults are the caller's concern.
func (r *Router) Call(ctx context.Context, name string, args map[string]interface{}) (*tools.Result, error) {
	r.mu.RLock()
	b, ok := r.owners[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	result, err := b.CallTool(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("backend %q call %q: %w", b.Name(), name, err)
	}
	return result, nil
}
