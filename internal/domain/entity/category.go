package entity

import (
	"slices"
	"sync"
)

// CategoryRegistry tracks the categories the store accepts as filters.
//
// Predefined categories come from configuration and never change. Discovered
// categories are names carried by stored articles that configuration does not
// know about (for example after the vocabulary changed between deployments).
// The discovered overlay is capped, pruned to what the store still carries,
// and can be reset.
type CategoryRegistry struct {
	mu            sync.RWMutex
	predefined    []string
	predefinedSet map[string]struct{}
	discovered    []string
	maxDiscovered int
}

// NewCategoryRegistry builds a registry. Duplicate and empty predefined names
// are ignored; maxDiscovered <= 0 disables the overlay.
func NewCategoryRegistry(predefined []string, maxDiscovered int) *CategoryRegistry {
	r := &CategoryRegistry{
		predefinedSet: make(map[string]struct{}, len(predefined)),
		maxDiscovered: max(maxDiscovered, 0),
	}
	for _, name := range predefined {
		if name == "" {
			continue
		}
		if _, ok := r.predefinedSet[name]; ok {
			continue
		}
		r.predefinedSet[name] = struct{}{}
		r.predefined = append(r.predefined, name)
	}
	return r
}

// Observe records categories seen on stored articles. Unknown names join the
// discovered overlay while it has room; it returns the names that were
// rejected because the overlay is full.
func (r *CategoryRegistry) Observe(names ...string) (rejected []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if name == "" || r.knownLocked(name) {
			continue
		}
		if len(r.discovered) >= r.maxDiscovered {
			rejected = append(rejected, name)
			continue
		}
		r.discovered = append(r.discovered, name)
	}
	return rejected
}

// Known reports whether name is predefined or discovered.
func (r *CategoryRegistry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.knownLocked(name)
}

func (r *CategoryRegistry) knownLocked(name string) bool {
	if _, ok := r.predefinedSet[name]; ok {
		return true
	}
	return slices.Contains(r.discovered, name)
}

// IsPredefined reports whether name comes from configuration.
func (r *CategoryRegistry) IsPredefined(name string) bool {
	_, ok := r.predefinedSet[name]
	return ok
}

// Names returns predefined names followed by discovered names.
func (r *CategoryRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.predefined)+len(r.discovered))
	out = append(out, r.predefined...)
	return append(out, r.discovered...)
}

// Predefined returns a copy of the configured names.
func (r *CategoryRegistry) Predefined() []string {
	return slices.Clone(r.predefined)
}

// Discovered returns a copy of the overlay.
func (r *CategoryRegistry) Discovered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.discovered)
}

// Prune drops discovered names no longer present in the store. It returns how
// many names were removed.
func (r *CategoryRegistry) Prune(present map[string]struct{}) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.discovered)
	r.discovered = slices.DeleteFunc(r.discovered, func(name string) bool {
		_, ok := present[name]
		return !ok
	})
	return before - len(r.discovered)
}

// Reset clears the discovered overlay.
func (r *CategoryRegistry) Reset() {
	r.mu.Lock()
	r.discovered = nil
	r.mu.Unlock()
}
