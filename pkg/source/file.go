package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileFetcher reads file:// URIs from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(uri, FileScheme)
	if path == "" {
		return nil, fmt.Errorf("file uri %q: empty path", uri)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return data, nil
}

// BundleFetcher reads bundle:// URIs from an fs.FS, typically an embed.FS or
// os.DirFS rooted at the bundle directory.
type BundleFetcher struct {
	FS fs.FS
}

func (b BundleFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.FS == nil {
		return nil, fmt.Errorf("bundle uri %q: no bundle configured: %w", uri, ErrNotConfigured)
	}
	name := strings.TrimPrefix(uri, BundleScheme)
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("bundle uri %q: invalid resource path", uri)
	}
	data, err := fs.ReadFile(b.FS, name)
	if err != nil {
		return nil, fmt.Errorf("read bundled %q: %w", name, err)
	}
	return data, nil
}
