package pipeline

import (
	"context"
	"slices"
	"sync"
)

// LoadKind is the action every pipeline is seeded with.
const LoadKind = "LoadAction"

// Action executes a single pipeline step.
// Implementations live in the actions sub-package; the interface is defined
// here so the engine can use it without an import cycle.
type Action interface {
	// Kind returns the registry key of the action.
	Kind() string
	// Execute consumes the previous Result and returns a new one. Failures are
	// reported through a non-zero Result.Status, never by panicking.
	Execute(ctx context.Context, input Result) Result
}

// ActionConfig is captured by a Factory when the action is constructed.
type ActionConfig struct {
	URI string
}

// Factory creates a fresh Action.
type Factory func(cfg ActionConfig) Action

// Registration pairs an action kind with its factory.
type Registration struct {
	Kind    string
	Factory Factory
}

// ActionRegistry maps action kinds to factories.
type ActionRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewActionRegistry creates an empty ActionRegistry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{factories: make(map[string]Factory)}
}

// Register associates a factory with an action kind. A second registration
// for the same kind replaces the first.
func (r *ActionRegistry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Create returns a new Action of the given kind, or an error if the kind is
// not registered.
func (r *ActionRegistry) Create(kind string, cfg ActionConfig) (Action, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok || f == nil {
		return nil, &UnknownActionKindError{Kind: kind}
	}
	return f(cfg), nil
}

// Has reports whether kind is registered.
func (r *ActionRegistry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *ActionRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
