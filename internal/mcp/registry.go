package mcp

import (
	"fmt"
	"sort"
	"sync"
)

// Registry aggregates the tools advertised by every ready server.
// Entries are only ever added.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]ToolDescriptor
	servers map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]ToolDescriptor),
		servers: make(map[string]int),
	}
}

// Register adds a server's tools. Descriptors whose qualified name is
// already present are skipped and reported in the returned error; the
// rest are kept.
func (r *Registry) Register(server string, tools []ToolDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dupes []string
	added := 0
	for _, t := range tools {
		if t.Name == "" {
			t.Name = QualifiedName(server, t.Tool)
		}
		t.Server = server
		if _, exists := r.tools[t.Name]; exists {
			dupes = append(dupes, t.Name)
			continue
		}
		r.tools[t.Name] = t
		added++
	}
	r.servers[server] += added
	if len(dupes) > 0 {
		return fmt.Errorf("duplicate tools from %s: %v", server, dupes)
	}
	return nil
}

// Lookup returns the descriptor registered under a qualified name.
func (r *Registry) Lookup(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns a snapshot sorted by qualified name. Later registrations
// do not affect a returned slice.
func (r *Registry) List() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolCount returns how many tools a server contributed.
func (r *Registry) ToolCount(server string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.servers[server]
}
