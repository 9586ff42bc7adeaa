// Package tools is the tool-execution layer feeding the agent loop:
// a closed registry of named tools plus an executor that adds caching,
// bounded retries, and result shaping on top of them.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tool is one named capability invoked by the agent loop. Execute
// returns the tool's data payload or an error; the executor, not the
// tool, decides whether a failure is retryable.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// Registry resolves tool names to implementations. Closed set: a name
// that was not registered at construction time does not exist.
type Registry struct {
	byName map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		r.byName[strings.TrimSpace(tool.Name())] = tool
	}
	return r
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	tool, ok := r.byName[strings.TrimSpace(name)]
	return tool, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Func adapts a plain function into a Tool. Used for test doubles and
// small local tools.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, input map[string]any) (any, error)
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.Desc }

func (f Func) Execute(ctx context.Context, input map[string]any) (any, error) {
	if f.Fn == nil {
		return nil, fmt.Errorf("tool %q has no implementation", f.ToolName)
	}
	return f.Fn(ctx, input)
}
