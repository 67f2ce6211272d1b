package backend

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Entry describes one registered backend: a named client, its enabled
// state, and its declared specialty keywords. Specialties are fixed at
// registration.
type Entry struct {
	Name        string
	Client      Client
	Enabled     bool
	Specialties []string
}

// View is an immutable snapshot of the registry. Routing reads a View, so
// a concurrent enable/disable never exposes a half-updated backend set.
type View struct {
	order   []string
	entries map[string]Entry
}

// Lookup returns the entry for a backend name.
func (v *View) Lookup(name string) (Entry, bool) {
	e, ok := v.entries[name]
	return e, ok
}

// Enabled returns the enabled backends in registration order.
func (v *View) Enabled() []Entry {
	out := make([]Entry, 0, len(v.order))
	for _, name := range v.order {
		if e := v.entries[name]; e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// All returns every registered backend in registration order.
func (v *View) All() []Entry {
	out := make([]Entry, 0, len(v.order))
	for _, name := range v.order {
		out = append(out, v.entries[name])
	}
	return out
}

// Len returns the number of registered backends.
func (v *View) Len() int {
	return len(v.order)
}

// Registry holds the live set of named backends. Mutations build a fresh
// View and publish it atomically; readers load the current View without
// locking.
type Registry struct {
	mu   sync.Mutex // serializes mutations
	view atomic.Pointer[View]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.view.Store(&View{entries: make(map[string]Entry)})
	return r
}

// Register adds a backend under a unique name, enabled by default.
func (r *Registry) Register(name string, client Client, specialties ...string) error {
	if name == "" {
		return fmt.Errorf("backend name is required")
	}
	if client == nil {
		return fmt.Errorf("backend %q: client is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.view.Load()
	if _, exists := cur.entries[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}

	next := cur.clone()
	next.order = append(next.order, name)
	next.entries[name] = Entry{
		Name:        name,
		Client:      client,
		Enabled:     true,
		Specialties: append([]string(nil), specialties...),
	}
	r.view.Store(next)
	return nil
}

// SetEnabled toggles a backend without touching its registration.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.view.Load()
	e, ok := cur.entries[name]
	if !ok {
		return fmt.Errorf("backend %q not registered", name)
	}
	if e.Enabled == enabled {
		return nil
	}

	next := cur.clone()
	e.Enabled = enabled
	next.entries[name] = e
	r.view.Store(next)
	return nil
}

// Snapshot returns the current immutable view.
func (r *Registry) Snapshot() *View {
	return r.view.Load()
}

func (v *View) clone() *View {
	next := &View{
		order:   append([]string(nil), v.order...),
		entries: make(map[string]Entry, len(v.entries)),
	}
	for name, e := range v.entries {
		next.entries[name] = e
	}
	return next
}
