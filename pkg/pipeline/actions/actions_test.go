package actions_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
	"github.com/ravi-parthasarathy/ingest/pkg/pipeline/actions"
	"github.com/ravi-parthasarathy/ingest/pkg/source"
	"github.com/ravi-parthasarathy/ingest/pkg/transform"
)

type fetchFunc func(ctx context.Context, uri string) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, uri string) ([]byte, error) { return f(ctx, uri) }

func TestLoadAction(t *testing.T) {
	t.Parallel()
	calls := 0
	f := fetchFunc(func(_ context.Context, uri string) ([]byte, error) {
		calls++
		switch uri {
		case "file://ok.png":
			return []byte("bytes"), nil
		case "bundle://gone.png":
			return nil, fmt.Errorf("router: %w", pipeline.ErrUnsupportedScheme)
		default:
			return nil, errors.New("connection refused")
		}
	})

	res := actions.NewLoadAction("file://ok.png", f).Execute(t.Context(), pipeline.InitialResult())
	require.True(t, res.OK())
	assert.Equal(t, pipeline.KindRawData, res.Kind)
	assert.Equal(t, pipeline.RawBytes("bytes"), res.Payload)

	res = actions.NewLoadAction("ftp://x.png", f).Execute(t.Context(), pipeline.InitialResult())
	assert.Equal(t, pipeline.StatusUnsupportedScheme, res.Status)
	assert.ErrorIs(t, res.Err(), pipeline.ErrUnsupportedScheme)
	assert.Equal(t, 1, calls, "unsupported schemes never reach the fetcher")

	res = actions.NewLoadAction("bundle://gone.png", f).Execute(t.Context(), pipeline.InitialResult())
	assert.Equal(t, pipeline.StatusUnsupportedScheme, res.Status)

	res = actions.NewLoadAction("https://down.example/x.png", f).Execute(t.Context(), pipeline.InitialResult())
	assert.Equal(t, pipeline.StatusFetchFailure, res.Status)
	assert.ErrorIs(t, res.Err(), pipeline.ErrFetchFailure)
	assert.Contains(t, res.Err().Error(), "connection refused")

	res = actions.NewLoadAction("file://ok.png", nil).Execute(t.Context(), pipeline.InitialResult())
	assert.Equal(t, pipeline.StatusFetchFailure, res.Status)
}

func TestLoadActionWithoutBundle(t *testing.T) {
	t.Parallel()
	router := &source.Router{File: source.FileFetcher{}}

	res := actions.NewLoadAction("bundle://docs/a.json", router).Execute(t.Context(), pipeline.InitialResult())
	assert.Equal(t, pipeline.StatusFetchFailure, res.Status)
	assert.ErrorIs(t, res.Err(), pipeline.ErrFetchFailure)
	assert.ErrorIs(t, res.Err(), source.ErrNotConfigured)
	assert.NotErrorIs(t, res.Err(), pipeline.ErrUnsupportedScheme)
}

type failingParser struct{}

func (failingParser) Parse(context.Context, []byte) (pipeline.StructuredValue, error) {
	return pipeline.StructuredValue{}, errors.New("bad document")
}

func TestTransformActions(t *testing.T) {
	t.Parallel()
	raw := pipeline.Succeed(pipeline.KindRawData, pipeline.RawBytes(`{"a":1}`))

	a := actions.NewParseJSON(transform.JSONParser{})
	assert.Equal(t, actions.ParseJSONKind, a.Kind())
	res := a.Execute(t.Context(), raw)
	require.True(t, res.OK(), "%v", res.Err())
	assert.Equal(t, pipeline.KindJSONObject, res.Kind)
	assert.Equal(t, pipeline.StructuredValue{Value: map[string]any{"a": float64(1)}}, res.Payload)

	res = actions.NewParseJSON(failingParser{}).Execute(t.Context(), raw)
	assert.Equal(t, pipeline.StatusTransformFailure, res.Status)
	assert.ErrorIs(t, res.Err(), pipeline.ErrTransformFailure)
	assert.Contains(t, res.Err().Error(), "bad document")

	res = actions.NewDecodeImage(transform.ImageDecoder{}).Execute(t.Context(), pipeline.InitialResult())
	assert.Equal(t, pipeline.StatusTransformFailure, res.Status, "non-raw input is a transform failure")

	res = actions.NewDecompressData(nil).Execute(t.Context(), raw)
	assert.Equal(t, pipeline.StatusTransformFailure, res.Status)
}

func TestCatalogAndRegister(t *testing.T) {
	t.Parallel()
	catalog := actions.Catalog(actions.Deps{})
	for _, kind := range []string{actions.DecodeImageKind, actions.DecompressDataKind, actions.ParseJSONKind} {
		f, ok := catalog[kind]
		require.True(t, ok, kind)
		assert.Equal(t, kind, f(pipeline.ActionConfig{}).Kind())
	}

	reg := pipeline.NewActionRegistry()
	actions.Register(reg, actions.Deps{})
	assert.Equal(t, []string{pipeline.LoadKind}, reg.Kinds())

	recipes, err := actions.DefaultRecipes(actions.Deps{})
	require.NoError(t, err)
	require.Len(t, recipes, 3)
	assert.Equal(t, []string{actions.DecodeImageKind}, recipes[0].NextActions(pipeline.LoadKind))
	assert.Equal(t, []string{actions.DecompressDataKind}, recipes[1].NextActions(pipeline.LoadKind))
	assert.Equal(t, []string{actions.ParseJSONKind}, recipes[2].NextActions(pipeline.LoadKind))
}

// newCache wires the shipped collaborators the way cmd/ingest does.
func newCache(t *testing.T, bundle fstest.MapFS, client *http.Client) *pipeline.Cache {
	t.Helper()
	deps := actions.Deps{
		Fetcher: &source.Router{
			File:   source.FileFetcher{},
			HTTP:   &source.HTTPFetcher{Client: client},
			Bundle: source.BundleFetcher{FS: bundle},
		},
		Images:    transform.ImageDecoder{},
		Archives:  transform.Decompressor{},
		Documents: transform.JSONParser{},
	}
	reg := pipeline.NewActionRegistry()
	actions.Register(reg, deps)
	recipes, err := actions.DefaultRecipes(deps)
	require.NoError(t, err)
	cache, err := pipeline.NewCache(reg, pipeline.NewRecipeSet(recipes...))
	require.NoError(t, err)
	return cache
}

func TestEndToEndLocalImage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 12, 5))))
	path := filepath.Join(t.TempDir(), "x.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cache := newCache(t, nil, nil)
	p, err := cache.GetOrCreate("file://" + path)
	require.NoError(t, err)
	require.Equal(t, pipeline.StateCompleted, p.Execute(t.Context(), false), "%v", p.Err())

	res := p.Result()
	assert.Equal(t, pipeline.KindDecodedImage, res.Kind)
	img, ok := res.Payload.(pipeline.DecodedImage)
	require.True(t, ok)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 12, img.Width)
	assert.Equal(t, 5, img.Height)
}

func TestEndToEndUnsupportedScheme(t *testing.T) {
	t.Parallel()
	cache := newCache(t, nil, nil)
	p, err := cache.GetOrCreate("ftp://x.png")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateFailed, p.Execute(t.Context(), false))
	assert.Equal(t, pipeline.StatusUnsupportedScheme, p.LastStatus())
	assert.Equal(t, []string{pipeline.LoadKind}, p.Pending())
}

func TestEndToEndRemoteJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"items": [1, 2, 3], /* trailing */ }`)
	}))
	defer srv.Close()

	cache := newCache(t, nil, srv.Client())
	p, err := cache.GetOrCreate(srv.URL + "/doc.json")
	require.NoError(t, err)
	require.Equal(t, pipeline.StateCompleted, p.Execute(t.Context(), false), "%v", p.Err())

	sv, ok := p.Result().Payload.(pipeline.StructuredValue)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"items": []any{float64(1), float64(2), float64(3)}}, sv.Value)
}

func TestEndToEndBundledArchive(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Name = "readme.txt"
	_, err := zw.Write([]byte("bundled"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	cache := newCache(t, fstest.MapFS{"docs/readme.gz": {Data: buf.Bytes()}}, nil)
	p, err := cache.GetOrCreate("bundle://docs/readme.gz")
	require.NoError(t, err)
	require.Equal(t, pipeline.StateCompleted, p.Execute(t.Context(), false), "%v", p.Err())

	dd, ok := p.Result().Payload.(pipeline.DecompressedData)
	require.True(t, ok)
	assert.Equal(t, transform.FormatGzip, dd.Format)
	require.Len(t, dd.Entries, 1)
	assert.Equal(t, "readme.txt", dd.Entries[0].Name)
	assert.Equal(t, "bundled", string(dd.Entries[0].Data))
}

func TestEndToEndCorruptImageFailsTransform(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.bmp")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a bitmap"), 0o644))

	cache := newCache(t, nil, nil)
	p, err := cache.GetOrCreate("file://" + path)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateFailed, p.Execute(t.Context(), false))
	assert.Equal(t, pipeline.StatusTransformFailure, p.LastStatus())
	assert.Equal(t, pipeline.KindRawData, p.Result().Kind)
	assert.Equal(t, []string{actions.DecodeImageKind}, p.Pending())
}
