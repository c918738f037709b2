// Package capability defines the external-call boundary used by pipeline
// stages. A capability is a pure external lookup: given an input it returns
// results or fails. Stages never fabricate data for a failed capability.
package capability

import (
	"context"
	"sort"
	"time"
)

// Result is one item returned by a capability call.
type Result struct {
	Content   string            // The retrieved information, formatted for prompts
	Reference string            // Symbol, URL, or other source reference
	Score     float64           // 0-1 relevance or confidence, when the backend ranks
	Timestamp time.Time         // When the information was produced
	Metadata  map[string]string // Additional backend-specific context
}

// Capability defines the interface for external data sources a stage
// may be bound to.
type Capability interface {
	// Name returns the capability identifier used in stage bindings.
	Name() string

	// Invoke performs the external call for the given input.
	Invoke(ctx context.Context, input string) ([]Result, error)

	// Available returns true if the capability is currently usable
	// (e.g. its API key is configured).
	Available() bool
}

// Registry holds named capabilities for stage binding resolution.
type Registry struct {
	capabilities map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]Capability)}
}

// Register adds a capability to the registry.
func (r *Registry) Register(c Capability) {
	r.capabilities[c.Name()] = c
}

// Get returns a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.capabilities[name]
	return c, ok
}

// Names returns all registered capability names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
