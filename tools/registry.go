package tools

import "fmt"

// Registry is a fixed, ordered set of tool definitions. It is built once at
// startup and never mutated, so it may be shared between sessions.
// A nil *Registry behaves as an empty registry.
type Registry struct {
	defs   []ToolDefinition
	byName map[string]int
}

// NewRegistry builds a registry, rejecting empty names, missing handlers and duplicates.
func NewRegistry(defs ...ToolDefinition) (*Registry, error) {
	r := &Registry{
		defs:   make([]ToolDefinition, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("tools: definition without a name")
		}
		if d.Function == nil {
			return nil, fmt.Errorf("tools: %q has no handler", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool name %q", d.Name)
		}
		r.byName[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on error.
func MustRegistry(defs ...ToolDefinition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	if r == nil {
		return ToolDefinition{}, false
	}
	i, ok := r.byName[name]
	if !ok {
		return ToolDefinition{}, false
	}
	return r.defs[i], true
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	if r == nil || len(r.defs) == 0 {
		return nil
	}
	return append([]ToolDefinition(nil), r.defs...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}

// Names lists tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}
