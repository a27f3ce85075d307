package pipeline

import "fmt"

// Edge is a "completed kind → next kind" rule.
type Edge struct {
	From string
	To   string
}

// RecipeGraph is the parsed form of a recipe file before it is bound to
// action factories.
type RecipeGraph struct {
	Name     string
	Suffixes []string
	Nodes    []string // declared action kinds, in first-seen order
	Edges    []Edge   // in definition order
}

// Successors returns the successor table of the graph. Order of successors
// follows edge definition order.
func (g *RecipeGraph) Successors() map[string][]string {
	out := make(map[string][]string)
	for _, e := range g.Edges {
		out[e.From] = append(out[e.From], e.To)
	}
	return out
}

// Kinds returns every action kind named by the graph except LoadKind.
func (g *RecipeGraph) Kinds() []string {
	seen := map[string]bool{LoadKind: true}
	var out []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, n := range g.Nodes {
		add(n)
	}
	for _, e := range g.Edges {
		add(e.From)
		add(e.To)
	}
	return out
}

// Bind resolves the graph's action kinds against catalog and builds a Recipe.
func (g *RecipeGraph) Bind(catalog map[string]Factory) (*StaticRecipe, error) {
	if err := ValidateErr(g, func(kind string) bool { _, ok := catalog[kind]; return ok }); err != nil {
		return nil, err
	}
	var regs []Registration
	for _, k := range g.Kinds() {
		f, ok := catalog[k]
		if !ok {
			return nil, fmt.Errorf("recipe %q: %w", g.Name, &UnknownActionKindError{Kind: k})
		}
		regs = append(regs, Registration{Kind: k, Factory: f})
	}
	return NewRecipe(g.Name, g.Suffixes, regs, g.Successors())
}
