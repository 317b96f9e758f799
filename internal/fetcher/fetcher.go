// Package fetcher provides the HTTP client used to pull API pages.
package fetcher

import (
	"context"
	"net/http"
)

// Fetcher defines the interface for fetching remote JSON documents.
type Fetcher interface {
	// Get fetches rawURL with the given query params and headers merged in,
	// and returns the response body. Transient failures (429, 5xx, network
	// timeouts) are retried a bounded number of times with backoff; 401 and
	// other client errors fail immediately as permanent errors.
	Get(ctx context.Context, rawURL string, params map[string]string, headers http.Header) ([]byte, error)
}
