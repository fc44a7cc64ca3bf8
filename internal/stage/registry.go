package stage

import (
	"fmt"
	"strings"
)

// Registry maps stage names to handlers in registration order.
type Registry struct {
	order    []string
	handlers map[string]Handler
}

// NewRegistry registers handlers in the given order. Duplicate names panic
// because they indicate a wiring bug.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		name := h.Name()
		if _, dup := r.handlers[name]; dup {
			panic(fmt.Sprintf("stage %q registered twice", name))
		}
		r.handlers[name] = h
		r.order = append(r.order, name)
	}
	return r
}

// Names returns registered stage names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[strings.ToLower(strings.TrimSpace(name))]
	return h, ok
}

// All returns every handler in registration order.
func (r *Registry) All() []Handler {
	out := make([]Handler, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name])
	}
	return out
}

// Select resolves names into handlers, preserving the caller's order.
func (r *Registry) Select(names []string) ([]Handler, error) {
	out := make([]Handler, 0, len(names))
	var unknown []string
	for _, name := range names {
		h, ok := r.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, h)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown stage(s) %s; available: %s",
			strings.Join(unknown, ", "), strings.Join(r.order, ", "))
	}
	return out, nil
}
