package pipeline

import (
	"fmt"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// ParseRecipeDOT parses a Graphviz DOT recipe into a RecipeGraph. The graph
// name is the recipe name, the graph-level "suffixes" attribute is a
// comma-separated suffix list, and every edge is a successor rule:
//
//	digraph image {
//	    suffixes=".jpg,.png,.bmp"
//	    LoadAction -> DecodeImage
//	}
func ParseRecipeDOT(src string) (*RecipeGraph, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	// A permissive collector accepts attribute names gographviz.Graph would
	// reject, such as "suffixes".
	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	g := &RecipeGraph{
		Name:  collector.name,
		Nodes: collector.nodes,
		Edges: collector.edges,
	}
	if raw, ok := collector.graphAttrs["suffixes"]; ok {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				g.Suffixes = append(g.Suffixes, s)
			}
		}
	}
	return g, nil
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name       string
	nodes      []string
	seen       map[string]bool
	edges      []Edge
	graphAttrs map[string]string
}

func newDOTCollector() *dotCollector {
	return &dotCollector{
		seen:       make(map[string]bool),
		graphAttrs: make(map[string]string),
	}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, _ map[string]string) error {
	id := unquote(name)
	if !c.seen[id] {
		c.seen[id] = true
		c.nodes = append(c.nodes, id)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	c.edges = append(c.edges, Edge{From: unquote(src), To: unquote(dst)})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(_ string, field, value string) error {
	c.graphAttrs[field] = unquote(value)
	return nil
}

func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// ─── rendering ────────────────────────────────────────────────────────────────

// RenderDOT renders recipes as one digraph with a cluster per recipe. Each
// cluster shows the chain reachable from LoadKind.
func RenderDOT(recipes []Recipe) (string, error) {
	const root = "recipes"
	g := gographviz.NewGraph()
	if err := g.SetName(root); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	for _, r := range recipes {
		cluster := "cluster_" + identifier(r.Name())
		label := r.Name() + " (" + strings.Join(r.Suffixes(), " ") + ")"
		if err := g.AddSubGraph(root, cluster, map[string]string{"label": quote(label)}); err != nil {
			return "", fmt.Errorf("recipe %q: %w", r.Name(), err)
		}

		nodeID := func(kind string) string { return identifier("n_" + r.Name() + "_" + kind) }
		for _, e := range Chain(r) {
			for _, kind := range []string{e.From, e.To} {
				if g.IsNode(nodeID(kind)) {
					continue
				}
				if err := g.AddNode(cluster, nodeID(kind), map[string]string{"label": quote(kind)}); err != nil {
					return "", fmt.Errorf("recipe %q: node %q: %w", r.Name(), kind, err)
				}
			}
			if err := g.AddEdge(nodeID(e.From), nodeID(e.To), true, nil); err != nil {
				return "", fmt.Errorf("recipe %q: edge %s -> %s: %w", r.Name(), e.From, e.To, err)
			}
		}
	}
	return g.String(), nil
}

// Chain walks a recipe breadth-first from LoadKind and returns every
// successor rule it reaches, in discovery order.
func Chain(r Recipe) []Edge {
	var out []Edge
	visited := map[string]bool{}
	queue := []string{LoadKind}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, next := range r.NextActions(cur) {
			out = append(out, Edge{From: cur, To: next})
			queue = append(queue, next)
		}
	}
	return out
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// unquote strips surrounding double-quotes from a DOT attribute value.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// identifier maps s onto a bare DOT identifier.
func identifier(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
