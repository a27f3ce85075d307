package pipeline_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

// recorder collects the kinds of actions in the order they ran.
type recorder struct {
	mu     sync.Mutex
	runs   []string
	inputs []string
}

func (r *recorder) record(kind string, in pipeline.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, kind)
	r.inputs = append(r.inputs, in.Kind)
}

func (r *recorder) Runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

func (r *recorder) Inputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.inputs...)
}

// funcAction runs fn and records every call.
type funcAction struct {
	kind string
	rec  *recorder
	fn   func(ctx context.Context, in pipeline.Result) pipeline.Result
}

func (a *funcAction) Kind() string { return a.kind }

func (a *funcAction) Execute(ctx context.Context, in pipeline.Result) pipeline.Result {
	if a.rec != nil {
		a.rec.record(a.kind, in)
	}
	return a.fn(ctx, in)
}

func succeedFactory(kind, resultKind string, rec *recorder) pipeline.Factory {
	return func(pipeline.ActionConfig) pipeline.Action {
		return &funcAction{kind: kind, rec: rec, fn: func(context.Context, pipeline.Result) pipeline.Result {
			return pipeline.Succeed(resultKind, pipeline.RawBytes(resultKind+"_buffer"))
		}}
	}
}

// loadFactory succeeds for file:// URIs and fails with an unsupported scheme
// for anything else.
func loadFactory(rec *recorder) pipeline.Factory {
	return func(cfg pipeline.ActionConfig) pipeline.Action {
		return &funcAction{kind: pipeline.LoadKind, rec: rec, fn: func(context.Context, pipeline.Result) pipeline.Result {
			if strings.HasPrefix(cfg.URI, "file://") {
				return pipeline.Succeed(pipeline.KindRawData, pipeline.RawBytes("raw_data_buffer"))
			}
			return pipeline.Fail(pipeline.StatusUnsupportedScheme, pipeline.ErrUnsupportedScheme)
		}}
	}
}

func mustRecipe(t *testing.T, name string, suffixes []string, regs []pipeline.Registration, next map[string][]string) *pipeline.StaticRecipe {
	t.Helper()
	r, err := pipeline.NewRecipe(name, suffixes, regs, next)
	if err != nil {
		t.Fatalf("NewRecipe(%q): %v", name, err)
	}
	return r
}

// defaultRecipes mirrors the three built-in categories with stub actions.
func defaultRecipes(t *testing.T, rec *recorder) []pipeline.Recipe {
	t.Helper()
	return []pipeline.Recipe{
		mustRecipe(t, "image", []string{".jpg", ".png", ".bmp"},
			[]pipeline.Registration{{Kind: "DecodeImage", Factory: succeedFactory("DecodeImage", pipeline.KindDecodedImage, rec)}},
			map[string][]string{pipeline.LoadKind: {"DecodeImage"}}),
		mustRecipe(t, "archive", []string{".zip", ".gz", ".tar"},
			[]pipeline.Registration{{Kind: "DecompressData", Factory: succeedFactory("DecompressData", pipeline.KindDecompressedData, rec)}},
			map[string][]string{pipeline.LoadKind: {"DecompressData"}}),
		mustRecipe(t, "json", []string{".json"},
			[]pipeline.Registration{{Kind: "ParseJson", Factory: succeedFactory("ParseJson", pipeline.KindJSONObject, rec)}},
			map[string][]string{pipeline.LoadKind: {"ParseJson"}}),
	}
}

// newCache builds a fresh registry, recipe set, and cache per test.
func newCache(t *testing.T, rec *recorder, opts ...pipeline.CacheOption) (*pipeline.Cache, *pipeline.ActionRegistry) {
	t.Helper()
	reg := pipeline.NewActionRegistry()
	reg.Register(pipeline.LoadKind, loadFactory(rec))
	cache, err := pipeline.NewCache(reg, pipeline.NewRecipeSet(defaultRecipes(t, rec)...), opts...)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cache, reg
}
