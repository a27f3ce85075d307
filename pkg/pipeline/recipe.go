package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Recipe is the per-category policy that drives a pipeline: which actions it
// needs registered and which action kinds follow a completed one.
type Recipe interface {
	Name() string
	Suffixes() []string
	// Matches reports whether the recipe handles uri.
	Matches(uri string) bool
	// RequiredActions lists the actions to register before the first run.
	RequiredActions() []Registration
	// NextActions returns the kinds to enqueue after completed finishes.
	// An empty result means no successor.
	NextActions(completed string) []string
}

// StaticRecipe is an immutable Recipe built from a successor table.
type StaticRecipe struct {
	name     string
	suffixes []string
	actions  []Registration
	next     map[string][]string
}

// NewRecipe validates and builds a StaticRecipe. Every successor kind must
// have a registration, every key of next must be LoadKind or a registered
// kind, and no kind may be its own transitive successor.
func NewRecipe(name string, suffixes []string, actions []Registration, next map[string][]string) (*StaticRecipe, error) {
	if name == "" {
		return nil, fmt.Errorf("recipe name must not be empty")
	}
	if len(suffixes) == 0 {
		return nil, fmt.Errorf("recipe %q: at least one suffix required", name)
	}
	for _, s := range suffixes {
		if s == "" {
			return nil, fmt.Errorf("recipe %q: empty suffix", name)
		}
	}

	known := make(map[string]bool, len(actions))
	for _, reg := range actions {
		if reg.Kind == "" || reg.Factory == nil {
			return nil, fmt.Errorf("recipe %q: registration needs a kind and a factory", name)
		}
		if reg.Kind == LoadKind {
			return nil, fmt.Errorf("recipe %q: %s is seeded by the cache and must not be a recipe action", name, LoadKind)
		}
		known[reg.Kind] = true
	}

	table := make(map[string][]string, len(next))
	for from, tos := range next {
		if from != LoadKind && !known[from] {
			return nil, fmt.Errorf("recipe %q: successor rule for unregistered kind %q", name, from)
		}
		for _, to := range tos {
			if !known[to] {
				return nil, fmt.Errorf("recipe %q: successor %q of %q: %w", name, to, from, &UnknownActionKindError{Kind: to})
			}
		}
		table[from] = slices.Clone(tos)
	}
	if cycle := findCycle(table); cycle != nil {
		return nil, fmt.Errorf("recipe %q: %w: %s", name, ErrRecipeCycle, strings.Join(cycle, " -> "))
	}

	return &StaticRecipe{
		name:     name,
		suffixes: slices.Clone(suffixes),
		actions:  slices.Clone(actions),
		next:     table,
	}, nil
}

func (r *StaticRecipe) Name() string { return r.name }

func (r *StaticRecipe) Suffixes() []string { return slices.Clone(r.suffixes) }

// Matches is a case-sensitive suffix match.
func (r *StaticRecipe) Matches(uri string) bool {
	for _, s := range r.suffixes {
		if strings.HasSuffix(uri, s) {
			return true
		}
	}
	return false
}

func (r *StaticRecipe) RequiredActions() []Registration { return slices.Clone(r.actions) }

func (r *StaticRecipe) NextActions(completed string) []string {
	return slices.Clone(r.next[completed])
}

// findCycle returns the first cycle found in a successor table, or nil.
func findCycle(next map[string][]string) []string {
	const (
		unvisited = iota
		onStack
		done
	)
	mark := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(kind string) bool
	visit = func(kind string) bool {
		mark[kind] = onStack
		stack = append(stack, kind)
		for _, to := range next[kind] {
			switch mark[to] {
			case onStack:
				i := slices.Index(stack, to)
				cycle = append(slices.Clone(stack[i:]), to)
				return true
			case unvisited:
				if visit(to) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[kind] = done
		return false
	}

	for _, k := range sortedKinds(next) {
		if mark[k] == unvisited && visit(k) {
			return cycle
		}
	}
	return nil
}

// RecipeSet classifies URIs into recipes. Recipes are tried in registration
// order and the first match wins.
type RecipeSet struct {
	mu      sync.RWMutex
	recipes []Recipe
}

// NewRecipeSet creates a RecipeSet holding recipes in the given order.
func NewRecipeSet(recipes ...Recipe) *RecipeSet {
	s := &RecipeSet{}
	for _, r := range recipes {
		s.Register(r)
	}
	return s
}

// Register appends a recipe. A recipe with the same name replaces the
// existing one in place.
func (s *RecipeSet) Register(r Recipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.recipes {
		if existing.Name() == r.Name() {
			s.recipes[i] = r
			return
		}
	}
	s.recipes = append(s.recipes, r)
}

// Classify returns the first recipe matching uri.
func (s *RecipeSet) Classify(uri string) (Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recipes {
		if r.Matches(uri) {
			return r, nil
		}
	}
	return nil, &UnsupportedURIError{URI: uri}
}

// Get returns the recipe registered under name.
func (s *RecipeSet) Get(name string) (Recipe, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recipes {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// Recipes returns the registered recipes in classification order.
func (s *RecipeSet) Recipes() []Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.recipes)
}
