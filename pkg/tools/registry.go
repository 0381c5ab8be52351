package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry errors.
var (
	ErrDuplicateTool = errors.New("duplicate tool")
	ErrToolNotFound  = errors.New("tool not found")
)

// Registry maps tool names to descriptors. It is constructed once per
// worker during startup (builtins plus directory discovery) and treated as
// read-only afterwards; the lock exists for the construction window and
// for cheap defensive safety, not for steady-state contention.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Descriptor
	compiled map[string]*jsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Descriptor),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a descriptor. The input schema is compiled here so that
// every descriptor exposed to the reasoning engine has a validated schema.
// Registering a name twice fails with ErrDuplicateTool.
func (r *Registry) Register(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("tool descriptor has empty name")
	}

	schemaSrc := "{}"
	if len(desc.InputSchema) > 0 {
		schemaSrc = string(desc.InputSchema)
	}
	sch, err := jsonschema.CompileString(desc.Name+".schema.json", schemaSrc)
	if err != nil {
		return fmt.Errorf("tool %s has invalid input schema: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, desc.Name)
	}
	r.tools[desc.Name] = desc
	r.compiled[desc.Name] = sch
	return nil
}

// Lookup returns the descriptor for name, or ErrToolNotFound.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.tools[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return desc, nil
}

// List returns all descriptors ordered by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// schema returns the compiled schema for name. Callers must have already
// confirmed the tool exists.
func (r *Registry) schema(name string) *jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compiled[name]
}
