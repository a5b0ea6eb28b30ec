// Package functiontype implements the Function-Type Registry: the
// process-global table of USB function drivers gadgetd knows how to
// instantiate, whether kernel-backed or FunctionFS-backed.
package functiontype

import (
	"sort"
	"sync"

	"github.com/gadgetd/gadgetd/internal/gadgetcore"
	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// Type is one registered function type: something that can create and
// remove instances of a named USB function. Outstanding instances are
// counted by the Registry's Ref/Unref, not by the Type.
type Type interface {
	gadgetcore.FunctionManagement
	Name() string
}

// Unregisterer is implemented by a Type that needs to run cleanup when
// it is dropped from the registry, mirroring gd_function_type's
// optional on_unregister hook.
type Unregisterer interface {
	OnUnregister()
}

type entry struct {
	t        Type
	refcount int
}

// Registry is the process-wide table of registered function types.
// Create one with NewRegistry; the zero value has no table, and
// Register on it panics.
type Registry struct {
	mu    sync.Mutex
	types map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*entry)}
}

// Register adds t to the registry. It fails with Exist if a type of
// the same name is already registered.
func (r *Registry) Register(t Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t.Name()]; ok {
		return gadgeterr.New("Register", gadgeterr.Exist, nil)
	}
	r.types[t.Name()] = &entry{t: t}
	return nil
}

// Unregister removes the named type. It fails with NotFound if no such
// type is registered, and with Exist if the type still has live
// instances (refcount nonzero) — unregistration never forcibly
// destroys outstanding instances; use UnregisterAll during shutdown
// for that.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.types[name]
	if !ok {
		return gadgeterr.New("Unregister", gadgeterr.NotFound, nil)
	}
	if e.refcount > 0 {
		return gadgeterr.New("Unregister", gadgeterr.Exist, nil)
	}
	delete(r.types, name)
	if u, ok := e.t.(Unregisterer); ok {
		u.OnUnregister()
	}
	return nil
}

// UnregisterAll drops every registered type regardless of refcount; it
// is the shutdown-only escape hatch the daemon's signal handler calls.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.types {
		if u, ok := e.t.(Unregisterer); ok {
			u.OnUnregister()
		}
		delete(r.types, name)
	}
}

// Lookup returns the named type, if registered.
func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.types[name]
	if !ok {
		return nil, false
	}
	return e.t, true
}

// Ref increments the named type's instance refcount. Callers creating
// a function instance must call this before returning success to the
// caller, and Unref on instance removal.
func (r *Registry) Ref(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.types[name]
	if !ok {
		return gadgeterr.New("Ref", gadgeterr.NotFound, nil)
	}
	e.refcount++
	return nil
}

// Unref decrements the named type's instance refcount. It is a no-op
// error, not a panic, if the count is already zero or the type is
// gone, since UnregisterAll may have already removed it during
// shutdown teardown.
func (r *Registry) Unref(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.types[name]
	if !ok || e.refcount == 0 {
		return
	}
	e.refcount--
}

// ListNames returns a sorted, point-in-time snapshot of every
// registered type name. It is not a live view: types registered or
// unregistered after the call are not reflected and do not corrupt the
// slice already returned, matching gd_list_func_types's GArray
// snapshot semantics.
func (r *Registry) ListNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
