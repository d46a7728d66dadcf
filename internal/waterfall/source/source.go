// Package source defines the interface and implementations for waterfall
// email sources.
package source

import (
	"context"
	"sync"

	"github.com/sells-group/icp-miner/internal/model"
)

// Source supplies candidate addresses for a person.
type Source interface {
	// Name returns the source identifier (matches the chain name in the
	// waterfall config).
	Name() string
	// Candidates returns addresses to try, most likely first. tried holds
	// the addresses earlier sources already produced, so a source can skip
	// them.
	Candidates(ctx context.Context, c *model.Candidate, tried []string) ([]string, error)
	// Discovers reports whether this source's addresses should be persisted
	// onto the person record even when validation rejects them.
	Discovers() bool
}

// Registry manages available sources by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
	}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get returns a source by name, or nil if not found.
func (r *Registry) Get(name string) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// List returns all registered source names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}
