package provider

import (
	"context"
	"fmt"
	"sort"
)

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
	order     []string
	def       string
}

// NewRegistry creates a registry with the given providers. The first one is the default.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same name.
func (r *Registry) Register(p Provider) {
	name := p.Name()
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	if r.def == "" {
		r.def = name
	}
}

// SetDefault selects the provider used when a request names none.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	r.def = name
	return nil
}

// Default returns the default provider name, or "" when the registry is empty.
func (r *Registry) Default() string {
	return r.def
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Resolve picks the provider for a request. An explicit name must exist and
// support kind. Without a name the default is used when it supports kind,
// otherwise the first registered provider that does.
func (r *Registry) Resolve(name string, kind Kind) (Provider, error) {
	if len(r.providers) == 0 {
		return nil, ErrNoProviders
	}

	if name != "" {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		if !p.Supports(kind) {
			return nil, fmt.Errorf("%w: %s does not support %q", ErrUnsupportedKind, name, kind)
		}
		return p, nil
	}

	if p := r.providers[r.def]; p.Supports(kind) {
		return p, nil
	}
	for _, n := range r.order {
		if p := r.providers[n]; p.Supports(kind) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no configured provider supports %q", ErrUnsupportedKind, kind)
}

// FetchMedia resolves a provider and generates media with it.
func (r *Registry) FetchMedia(ctx context.Context, name string, req Request) (Result, error) {
	p, err := r.Resolve(name, req.Kind)
	if err != nil {
		return Result{}, err
	}
	return p.FetchMedia(ctx, req)
}
