package pipeline

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// Cache maps URIs to Pipeline instances. It is created once per process
// (or per test) and passed to whatever drives pipelines; there is no global
// instance.
type Cache struct {
	mu         sync.Mutex
	actions    *ActionRegistry
	recipes    *RecipeSet
	observer   Observer
	pipelines  map[string]*Pipeline
	registered map[string]Recipe // recipe instance whose actions are registered, by name
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithObserver attaches an Observer to every pipeline the cache creates.
func WithObserver(obs Observer) CacheOption {
	return func(c *Cache) { c.observer = obs }
}

// NewCache creates an empty Cache.
func NewCache(actions *ActionRegistry, recipes *RecipeSet, opts ...CacheOption) (*Cache, error) {
	if actions == nil {
		return nil, fmt.Errorf("action registry must not be nil")
	}
	if recipes == nil {
		return nil, fmt.Errorf("recipe set must not be nil")
	}
	c := &Cache{
		actions:    actions,
		recipes:    recipes,
		observer:   NopObserver{},
		pipelines:  make(map[string]*Pipeline),
		registered: make(map[string]Recipe),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	return c, nil
}

// GetOrCreate returns the cached pipeline for uri, building it on first use.
// Repeated calls with the same URI string return the same instance.
func (c *Cache) GetOrCreate(uri string) (*Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pipelines[uri]; ok {
		return p, nil
	}

	recipe, err := c.recipes.Classify(uri)
	if err != nil {
		return nil, err
	}
	c.registerOnce(recipe)

	p, err := NewPipeline(uri, recipe, c.actions, c.observer)
	if err != nil {
		return nil, err
	}
	c.pipelines[uri] = p
	slog.Info("pipeline created", "uri", uri, "recipe", recipe.Name())
	return p, nil
}

// registerOnce registers the required actions of r unless this exact recipe
// was registered before. A recipe replaced under the same name in the
// RecipeSet is registered again.
func (c *Cache) registerOnce(r Recipe) {
	if prev, ok := c.registered[r.Name()]; ok && sameRecipe(prev, r) {
		return
	}
	for _, reg := range r.RequiredActions() {
		c.actions.Register(reg.Kind, reg.Factory)
	}
	c.registered[r.Name()] = r
}

// sameRecipe reports whether a and b are the same recipe value. Recipes of
// non-comparable types are never considered the same.
func sameRecipe(a, b Recipe) bool {
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

// Lookup returns the cached pipeline for uri without creating one.
func (c *Cache) Lookup(uri string) (*Pipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pipelines[uri]
	return p, ok
}

// Evict removes the pipeline for uri. It reports whether one was cached.
func (c *Cache) Evict(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pipelines[uri]; !ok {
		return false
	}
	delete(c.pipelines, uri)
	return true
}

// Clear drops every cached pipeline. Registered actions stay registered.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipelines = make(map[string]*Pipeline)
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines)
}

// URIs returns the cached URIs in sorted order.
func (c *Cache) URIs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.pipelines))
	for uri := range c.pipelines {
		out = append(out, uri)
	}
	slices.Sort(out)
	return out
}
