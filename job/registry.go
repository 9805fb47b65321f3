package job

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// HandlerFunc is a type-erased job handler that accepts a raw JSON payload
// and returns the job result. The typed Definition is converted to a
// HandlerFunc at registration time.
type HandlerFunc func(ctx context.Context, payload []byte) (any, error)

type entry struct {
	handler HandlerFunc
	opts    []Option
}

// Registry maps job kind names to type-erased handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// RegisterDefinition registers a typed job definition. The generic handler
// is wrapped in a closure that JSON-unmarshals the payload into T before
// calling the typed handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) {
	handler := func(ctx context.Context, payload []byte) (any, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job %q: %w", def.Name, err)
			}
		}
		return def.Handler(ctx, t)
	}
	r.Register(def.Name, handler, def.Opts...)
}

// Register installs a raw handler under name, replacing any previous one.
func (r *Registry) Register(name string, h HandlerFunc, opts ...Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{handler: h, opts: opts}
}

// Get returns the handler for the given job name.
// Returns false if no handler is registered.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.handler, ok
}

// Options returns the default options registered with a job kind.
func (r *Registry) Options(name string) []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name].opts
}

// Names returns all registered job names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
