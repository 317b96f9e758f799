package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPFetcher implements Fetcher using net/http with bounded retry.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "apisync/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts: opts,
	}
}

// Get fetches rawURL with params merged into the query string and headers
// applied. Retries transient failures; 4xx responses are permanent.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, params map[string]string, headers http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    f.opts.MaxRetries,
		InitialBackoff: time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		OnRetry:        resilience.RetryLogger(u.Host, "get"),
	}

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]byte, error) {
		return f.doOnce(ctx, u.String(), headers)
	})
}

func (f *HTTPFetcher) doOnce(ctx context.Context, fullURL string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "fetch: create request"), 0)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: GET %s", fullURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Credential problem, not transient. Never retried.
		return nil, resilience.NewPermanentError(
			eris.Errorf("fetch: authentication failed (401) for %s", fullURL), resp.StatusCode)

	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		zap.L().Warn("transient http status",
			zap.String("url", fullURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, resilience.NewTransientError(
			eris.Errorf("fetch: http %d from %s", resp.StatusCode, fullURL), resp.StatusCode)

	case resp.StatusCode >= 400:
		return nil, resilience.NewPermanentError(
			eris.Errorf("fetch: http %d from %s", resp.StatusCode, fullURL), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read body from %s", fullURL)
	}
	return body, nil
}
