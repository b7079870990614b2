package collector

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured bar providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]BarProvider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]BarProvider),
	}
}

// Register adds p, replacing any provider with the same name.
func (r *Registry) Register(p BarProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (BarProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// MustGet is Get that reports an unknown name as an error.
func (r *Registry) MustGet(name string) (BarProvider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("bar provider %q not registered (have %v)", name, r.Names())
	}
	return p, nil
}

// Names lists registered providers alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
