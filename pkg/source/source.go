// Package source classifies URIs by scheme and fetches their bytes.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

// Kind is the class of source a URI points at.
type Kind int

const (
	Unsupported Kind = iota
	LocalFile
	RemoteHTTP
	Bundled
)

// URI scheme prefixes.
const (
	FileScheme   = "file://"
	HTTPScheme   = "http://"
	HTTPSScheme  = "https://"
	BundleScheme = "bundle://"
)

func (k Kind) String() string {
	switch k {
	case LocalFile:
		return "local-file"
	case RemoteHTTP:
		return "remote-http"
	case Bundled:
		return "bundled-resource"
	default:
		return "unsupported"
	}
}

// Classify maps uri onto a source Kind by its scheme prefix.
func Classify(uri string) Kind {
	switch {
	case strings.HasPrefix(uri, FileScheme):
		return LocalFile
	case strings.HasPrefix(uri, HTTPScheme), strings.HasPrefix(uri, HTTPSScheme):
		return RemoteHTTP
	case strings.HasPrefix(uri, BundleScheme):
		return Bundled
	default:
		return Unsupported
	}
}

// ErrNotConfigured is returned by Router for a supported scheme that has no
// fetcher behind it.
var ErrNotConfigured = errors.New("no fetcher configured")

// Fetcher returns the bytes behind a URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Router dispatches a fetch to the fetcher for the URI's Kind. A nil field
// makes fetches of that kind fail with ErrNotConfigured.
type Router struct {
	File   Fetcher
	HTTP   Fetcher
	Bundle Fetcher
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, uri string) ([]byte, error) {
	var f Fetcher
	kind := Classify(uri)
	switch kind {
	case LocalFile:
		f = r.File
	case RemoteHTTP:
		f = r.HTTP
	case Bundled:
		f = r.Bundle
	default:
		return nil, fmt.Errorf("fetch %q: %w", uri, pipeline.ErrUnsupportedScheme)
	}
	if f == nil {
		if kind == Bundled {
			return nil, fmt.Errorf("fetch %q: no bundle configured: %w", uri, ErrNotConfigured)
		}
		return nil, fmt.Errorf("fetch %q: no %s fetcher: %w", uri, kind, ErrNotConfigured)
	}
	return f.Fetch(ctx, uri)
}
