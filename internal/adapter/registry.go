// Package adapter keeps the mapping from source kinds to their adapters.
package adapter

import (
	"fmt"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Registry keeps a mapping from source kinds to adapter implementations.
type Registry struct {
	adapters map[domain.SourceKind]ports.SourceAdapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[domain.SourceKind]ports.SourceAdapter{}}
}

// Register adds or replaces the adapter for its kind.
func (r *Registry) Register(a ports.SourceAdapter) {
	if r.adapters == nil {
		r.adapters = map[domain.SourceKind]ports.SourceAdapter{}
	}
	r.adapters[a.Kind()] = a
}

// Resolve returns the adapter for a kind or an error if it is absent.
func (r *Registry) Resolve(kind domain.SourceKind) (ports.SourceAdapter, error) {
	if a, ok := r.adapters[kind]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no adapter registered for kind %q", kind)
}
