package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// LintError describes a structural problem in a recipe graph.
type LintError struct {
	Kind    string
	Message string
	Err     error // optional sentinel, e.g. ErrRecipeCycle
}

func (e LintError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("action %q: %s", e.Kind, e.Message)
	}
	return e.Message
}

// ValidationError collects every LintError found in one recipe.
type ValidationError struct {
	Recipe   string
	Problems []LintError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("recipe %q validation failed:\n  %s", e.Recipe, strings.Join(msgs, "\n  "))
}

// Is matches the sentinel of any collected problem.
func (e *ValidationError) Is(target error) bool {
	for _, p := range e.Problems {
		if p.Err != nil && errors.Is(p.Err, target) {
			return true
		}
	}
	return false
}

// Validate checks a recipe graph for structural correctness and returns all
// discovered problems. known reports whether an action kind can be
// constructed; pass nil to skip that check.
func Validate(g *RecipeGraph, known func(kind string) bool) []LintError {
	var errs []LintError

	if g.Name == "" {
		errs = append(errs, LintError{Message: "recipe must have a name"})
	}
	if len(g.Suffixes) == 0 {
		errs = append(errs, LintError{Message: "recipe must declare at least one suffix"})
	}
	for _, s := range g.Suffixes {
		if s == "" {
			errs = append(errs, LintError{Message: "recipe declares an empty suffix"})
		}
	}

	hasRoot := false
	for _, e := range g.Edges {
		if e.From == LoadKind {
			hasRoot = true
		}
		if e.To == LoadKind {
			errs = append(errs, LintError{Kind: e.From, Message: fmt.Sprintf("%s cannot be a successor", LoadKind)})
		}
	}
	if !hasRoot {
		errs = append(errs, LintError{Message: fmt.Sprintf("recipe has no successor for %s", LoadKind)})
	}

	if known != nil {
		for _, k := range g.Kinds() {
			if !known(k) {
				errs = append(errs, LintError{Kind: k, Message: "no such action", Err: ErrUnknownActionKind})
			}
		}
	}

	next := g.Successors()
	reachable := reachableFrom(next, LoadKind)
	for _, k := range g.Kinds() {
		if !reachable[k] {
			errs = append(errs, LintError{Kind: k, Message: fmt.Sprintf("action is not reachable from %s", LoadKind)})
		}
	}

	if cycle := findCycle(next); cycle != nil {
		errs = append(errs, LintError{
			Kind:    cycle[0],
			Message: "action is its own transitive successor: " + strings.Join(cycle, " -> "),
			Err:     ErrRecipeCycle,
		})
	}

	return errs
}

// ValidateErr calls Validate and returns nil if there are no problems, or a
// *ValidationError listing all of them.
func ValidateErr(g *RecipeGraph, known func(kind string) bool) error {
	errs := Validate(g, known)
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Recipe: g.Name, Problems: errs}
}

// reachableFrom returns the set of kinds reachable from start.
func reachableFrom(next map[string][]string, start string) map[string]bool {
	visited := map[string]bool{}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		queue = append(queue, next[cur]...)
	}
	return visited
}

// sortedKinds is used where deterministic output matters.
func sortedKinds(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
