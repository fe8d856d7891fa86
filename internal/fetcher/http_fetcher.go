// Package fetcher downloads cover-art bytes over HTTP/HTTPS for the art
// manager: a bounded client timeout, a Content-Type sanity check, and a
// size-limited reader.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxArtBytes = 10 * 1024 * 1024 // 10 MB

// HTTPFetcher downloads image bytes from a URL.
type HTTPFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewHTTPFetcher returns a fetcher with the given request timeout.
func NewHTTPFetcher(logger *zap.Logger, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the bytes at url. A network failure, non-200 status, or
// non-image Content-Type is returned as an error for the caller to skip.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "mpris-bridge/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("url is not an image: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	f.logger.Debug("art fetched", zap.Int("bytes", len(data)), zap.String("url", url))
	return data, nil
}
