package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPFetcher GETs http:// and https:// URIs. Non-2xx responses are errors.
type HTTPFetcher struct {
	Client  *http.Client  // nil uses http.DefaultClient
	Timeout time.Duration // zero uses 30s
	MaxSize int64         // zero means unlimited
}

func (h *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", uri, err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %q failed: %w", uri, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request %q: non-2xx status %d", uri, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if h.MaxSize > 0 {
		body = io.LimitReader(resp.Body, h.MaxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response body of %q: %w", uri, err)
	}
	if h.MaxSize > 0 && int64(len(data)) > h.MaxSize {
		return nil, fmt.Errorf("response body of %q exceeds %d bytes", uri, h.MaxSize)
	}
	return data, nil
}
