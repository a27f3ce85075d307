// Package actions implements the built-in pipeline actions and the default
// recipes that chain them.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
	"github.com/ravi-parthasarathy/ingest/pkg/source"
)

// Built-in transform kinds.
const (
	DecodeImageKind    = "DecodeImage"
	DecompressDataKind = "DecompressData"
	ParseJSONKind      = "ParseJson"
)

// Fetcher returns the bytes behind a URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// ImageDecoder decodes an image buffer.
type ImageDecoder interface {
	DecodeImage(ctx context.Context, data []byte) (pipeline.DecodedImage, error)
}

// ArchiveDecompressor expands an archive buffer.
type ArchiveDecompressor interface {
	Decompress(ctx context.Context, data []byte) (pipeline.DecompressedData, error)
}

// DocumentParser parses a structured document buffer.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte) (pipeline.StructuredValue, error)
}

// Deps carries the collaborators injected into the built-in actions.
type Deps struct {
	Fetcher   Fetcher
	Images    ImageDecoder
	Archives  ArchiveDecompressor
	Documents DocumentParser
}

// LoadAction classifies its URI by scheme and fetches the bytes.
type LoadAction struct {
	uri     string
	fetcher Fetcher
}

// NewLoadAction creates a LoadAction for uri.
func NewLoadAction(uri string, f Fetcher) *LoadAction {
	return &LoadAction{uri: uri, fetcher: f}
}

func (a *LoadAction) Kind() string { return pipeline.LoadKind }

func (a *LoadAction) Execute(ctx context.Context, _ pipeline.Result) pipeline.Result {
	kind := source.Classify(a.uri)
	if kind == source.Unsupported {
		return pipeline.Fail(pipeline.StatusUnsupportedScheme,
			fmt.Errorf("load %q: %w", a.uri, pipeline.ErrUnsupportedScheme))
	}
	if a.fetcher == nil {
		return pipeline.Fail(pipeline.StatusFetchFailure,
			fmt.Errorf("load %q: no fetcher for %s: %w", a.uri, kind, pipeline.ErrFetchFailure))
	}
	data, err := a.fetcher.Fetch(ctx, a.uri)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnsupportedScheme) {
			return pipeline.Fail(pipeline.StatusUnsupportedScheme, fmt.Errorf("load %q: %w", a.uri, err))
		}
		return pipeline.Fail(pipeline.StatusFetchFailure,
			fmt.Errorf("load %q: %w: %w", a.uri, pipeline.ErrFetchFailure, err))
	}
	return pipeline.Succeed(pipeline.KindRawData, pipeline.RawBytes(data))
}

// transformAction runs a collaborator over the carried RawBytes.
type transformAction struct {
	kind string
	run  func(ctx context.Context, data []byte) (pipeline.Payload, error)
	out  string
}

func (a *transformAction) Kind() string { return a.kind }

func (a *transformAction) Execute(ctx context.Context, input pipeline.Result) pipeline.Result {
	raw, ok := input.Payload.(pipeline.RawBytes)
	if !ok {
		return pipeline.Fail(pipeline.StatusTransformFailure,
			fmt.Errorf("%s: expected raw bytes, got %s: %w", a.kind, input.Kind, pipeline.ErrTransformFailure))
	}
	if a.run == nil {
		return pipeline.Fail(pipeline.StatusTransformFailure,
			fmt.Errorf("%s: no collaborator configured: %w", a.kind, pipeline.ErrTransformFailure))
	}
	p, err := a.run(ctx, raw)
	if err != nil {
		return pipeline.Fail(pipeline.StatusTransformFailure,
			fmt.Errorf("%s: %w: %w", a.kind, pipeline.ErrTransformFailure, err))
	}
	return pipeline.Succeed(a.out, p)
}

// NewDecodeImage creates a DecodeImage action backed by d.
func NewDecodeImage(d ImageDecoder) pipeline.Action {
	a := &transformAction{kind: DecodeImageKind, out: pipeline.KindDecodedImage}
	if d != nil {
		a.run = func(ctx context.Context, data []byte) (pipeline.Payload, error) {
			return d.DecodeImage(ctx, data)
		}
	}
	return a
}

// NewDecompressData creates a DecompressData action backed by d.
func NewDecompressData(d ArchiveDecompressor) pipeline.Action {
	a := &transformAction{kind: DecompressDataKind, out: pipeline.KindDecompressedData}
	if d != nil {
		a.run = func(ctx context.Context, data []byte) (pipeline.Payload, error) {
			return d.Decompress(ctx, data)
		}
	}
	return a
}

// NewParseJSON creates a ParseJson action backed by p.
func NewParseJSON(p DocumentParser) pipeline.Action {
	a := &transformAction{kind: ParseJSONKind, out: pipeline.KindJSONObject}
	if p != nil {
		a.run = func(ctx context.Context, data []byte) (pipeline.Payload, error) {
			return p.Parse(ctx, data)
		}
	}
	return a
}
