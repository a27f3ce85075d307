package actions

import "github.com/ravi-parthasarathy/ingest/pkg/pipeline"

// Catalog returns the factories of every built-in transform, keyed by kind.
// Recipe files are bound against it.
func Catalog(deps Deps) map[string]pipeline.Factory {
	return map[string]pipeline.Factory{
		DecodeImageKind:    func(pipeline.ActionConfig) pipeline.Action { return NewDecodeImage(deps.Images) },
		DecompressDataKind: func(pipeline.ActionConfig) pipeline.Action { return NewDecompressData(deps.Archives) },
		ParseJSONKind:      func(pipeline.ActionConfig) pipeline.Action { return NewParseJSON(deps.Documents) },
	}
}

// Register adds the Load action to reg. Transform actions are registered by
// the cache from each recipe's required actions.
func Register(reg *pipeline.ActionRegistry, deps Deps) {
	reg.Register(pipeline.LoadKind, func(cfg pipeline.ActionConfig) pipeline.Action {
		return NewLoadAction(cfg.URI, deps.Fetcher)
	})
}

// DefaultRecipes returns the image, archive and json recipes. Each runs a
// single transform after Load.
func DefaultRecipes(deps Deps) ([]pipeline.Recipe, error) {
	catalog := Catalog(deps)
	specs := []struct {
		name     string
		suffixes []string
		kind     string
	}{
		{"image", []string{".jpg", ".png", ".bmp"}, DecodeImageKind},
		{"archive", []string{".zip", ".gz", ".tar"}, DecompressDataKind},
		{"json", []string{".json"}, ParseJSONKind},
	}

	out := make([]pipeline.Recipe, 0, len(specs))
	for _, s := range specs {
		r, err := pipeline.NewRecipe(s.name, s.suffixes,
			[]pipeline.Registration{{Kind: s.kind, Factory: catalog[s.kind]}},
			map[string][]string{pipeline.LoadKind: {s.kind}})
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
