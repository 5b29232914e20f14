package provider

import (
	"sort"
	"strings"
)

// Registry holds the known payment providers keyed by provider id.
// Populated once at startup and read-only afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider under its own id, replacing any previous
// registration for that id.
func (r *Registry) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	r.providers[normaliseID(p.ID())] = p
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[normaliseID(id)]
	return p, ok
}

// IDs lists the registered provider ids in stable order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normaliseID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
