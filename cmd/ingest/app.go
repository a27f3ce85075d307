package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ravi-parthasarathy/ingest/pkg/config"
	"github.com/ravi-parthasarathy/ingest/pkg/metrics"
	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
	"github.com/ravi-parthasarathy/ingest/pkg/pipeline/actions"
	"github.com/ravi-parthasarathy/ingest/pkg/source"
	"github.com/ravi-parthasarathy/ingest/pkg/transform"
)

// app is the process-scoped wiring: one registry, one recipe set and one
// cache shared by every command invocation.
type app struct {
	deps     actions.Deps
	registry *pipeline.ActionRegistry
	recipes  *pipeline.RecipeSet
	cache    *pipeline.Cache
	metrics  *metrics.Collector // nil unless enabled
}

func newApp(cfg config.Config) (*app, error) {
	router := &source.Router{
		File: source.FileFetcher{},
		HTTP: &source.HTTPFetcher{Timeout: cfg.HTTPTimeout.Duration(), MaxSize: cfg.MaxSize},
	}
	if cfg.BundleRoot != "" {
		router.Bundle = source.BundleFetcher{FS: os.DirFS(cfg.BundleRoot)}
	}
	deps := actions.Deps{
		Fetcher:   router,
		Images:    transform.ImageDecoder{},
		Archives:  transform.Decompressor{MaxSize: cfg.MaxSize},
		Documents: transform.JSONParser{},
	}

	reg := pipeline.NewActionRegistry()
	actions.Register(reg, deps)

	// Recipe files come first so they can claim suffixes before the defaults.
	set := pipeline.NewRecipeSet()
	catalog := actions.Catalog(deps)
	for _, path := range cfg.Recipes {
		r, err := loadRecipeFile(path, catalog)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", path, err)
		}
		set.Register(r)
		slog.Debug("recipe loaded", "recipe", r.Name(), "path", path, "suffixes", r.Suffixes())
	}
	defaults, err := actions.DefaultRecipes(deps)
	if err != nil {
		return nil, fmt.Errorf("default recipes: %w", err)
	}
	for _, r := range defaults {
		if _, exists := set.Get(r.Name()); !exists {
			set.Register(r)
		}
	}

	a := &app{deps: deps, registry: reg, recipes: set}
	var opts []pipeline.CacheOption
	if cfg.Metrics {
		a.metrics = metrics.NewCollector("")
		opts = append(opts, pipeline.WithObserver(a.metrics))
	}
	a.cache, err = pipeline.NewCache(reg, set, opts...)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	return a, nil
}

// execute resolves uri through the cache and runs its pipeline once.
// Classification errors are returned; pipeline failures are left on the
// returned Pipeline.
func (a *app) execute(ctx context.Context, uri string, reset bool) (*pipeline.Pipeline, error) {
	p, err := a.cache.GetOrCreate(uri)
	if err != nil {
		return nil, err
	}
	p.Execute(ctx, reset)
	return p, nil
}

func (a *app) dumpMetrics(w io.Writer) {
	if a.metrics == nil {
		return
	}
	if err := a.metrics.WriteText(w); err != nil {
		slog.Warn("failed to write metrics", "err", err)
	}
}

func readRecipeFile(path string) (*pipeline.RecipeGraph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	g, err := pipeline.ParseRecipeDOT(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return g, nil
}

func loadRecipeFile(path string, catalog map[string]pipeline.Factory) (pipeline.Recipe, error) {
	g, err := readRecipeFile(path)
	if err != nil {
		return nil, err
	}
	return g.Bind(catalog)
}

// lintRecipeFile validates a recipe file against the built-in action kinds.
func lintRecipeFile(path string) (*pipeline.RecipeGraph, error) {
	g, err := readRecipeFile(path)
	if err != nil {
		return nil, err
	}
	catalog := actions.Catalog(actions.Deps{})
	known := func(kind string) bool { _, ok := catalog[kind]; return ok }
	if err := pipeline.ValidateErr(g, known); err != nil {
		return nil, err
	}
	return g, nil
}
