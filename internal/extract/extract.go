// Package extract drives paginated HTTP calls against one API and persists
// each raw page to the date-partitioned page store.
package extract

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/credentials"
	"github.com/skyline-data/apisync/internal/fetcher"
	"github.com/skyline-data/apisync/internal/resilience"
)

// Extractor fetches all pages for one (api, logical date) invocation.
type Extractor struct {
	fetcher fetcher.Fetcher
	store   PageSaver
	creds   credentials.Resolver
}

// PageSaver is the slice of the page store the extractor needs.
type PageSaver interface {
	SavePage(api, date string, seq int, data []byte) (string, error)
}

// New creates an Extractor.
func New(f fetcher.Fetcher, store PageSaver, creds credentials.Resolver) *Extractor {
	return &Extractor{fetcher: f, store: store, creds: creds}
}

// Fetch walks the configured pagination strategy and persists every fetched
// page. HTTP failures abort the walk but are not returned: the pages saved so
// far are a valid partial result, and re-running the same (api, date) is
// idempotent over the page set.
func (e *Extractor) Fetch(ctx context.Context, cfg *config.APIConfig, date string) ([]string, error) {
	log := zap.L().With(zap.String("api", cfg.Name), zap.String("date", date))

	headers := e.authHeaders(cfg.Auth)
	limiter := pageLimiter(cfg.RateLimit)

	reqURL := strings.TrimRight(cfg.BaseURL, "/") + cfg.Endpoint
	pageNum := cfg.StartPage()
	cursor := ""
	seq := 1

	var saved []string
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return saved, eris.Wrap(err, "extract: rate limiter wait")
			}
		}

		params := make(map[string]string, len(cfg.Params)+1)
		for k, v := range cfg.Params {
			params[k] = v
		}
		switch cfg.Pagination.Type {
		case config.PaginationPage:
			params[cfg.Pagination.PageParam] = strconv.Itoa(pageNum)
		case config.PaginationCursor:
			if cursor != "" {
				params[cfg.Pagination.CursorParam] = cursor
			}
		}

		body, err := e.fetcher.Get(ctx, reqURL, params, headers)
		if err != nil {
			if resilience.HTTPStatus(err) == http.StatusUnauthorized {
				log.Error("authentication failed, aborting fetch", zap.Error(err))
			} else {
				log.Warn("request failed, aborting fetch with partial pages",
					zap.Int("pages_saved", len(saved)),
					zap.Error(err),
				)
			}
			return saved, nil
		}

		// Empty-page termination is a sentinel for the page strategy, not a
		// data row. It is never persisted.
		if cfg.Pagination.Type == config.PaginationPage && emptyPage(body) {
			break
		}

		path, err := e.store.SavePage(cfg.Name, date, seq, body)
		if err != nil {
			return saved, eris.Wrap(err, "extract: persist page")
		}
		saved = append(saved, path)
		seq++

		switch cfg.Pagination.Type {
		case config.PaginationPage:
			pageNum++

		case config.PaginationCursor:
			next := gjson.GetBytes(body, cfg.Pagination.CursorKey)
			if !truthy(next) {
				return saved, nil
			}
			cursor = next.String()

		case config.PaginationNextLink:
			link := gjson.GetBytes(body, cfg.Pagination.NextLinkKey)
			if !link.Exists() || link.String() == "" {
				return saved, nil
			}
			// Follow the link verbatim.
			reqURL = link.String()

		default:
			// Unpaginated endpoint: a single page.
			return saved, nil
		}
	}

	log.Info("fetch complete", zap.Int("pages", len(saved)))
	return saved, nil
}

// authHeaders resolves the configured credential into request headers.
// A missing credential yields an unauthenticated request, which fails
// downstream with a 401 rather than erroring at lookup time.
func (e *Extractor) authHeaders(auth config.AuthConfig) http.Header {
	headers := make(http.Header)
	switch auth.Type {
	case config.AuthAPIKey:
		headers.Set(auth.KeyName, e.creds.Resolve(auth.Credential))
	case config.AuthBearer:
		headers.Set("Authorization", "Bearer "+e.creds.Resolve(auth.Credential))
	}
	return headers
}

// pageLimiter paces requests at requests_per_minute/60 per second. The
// burst of one makes the first request immediate and spaces the rest.
func pageLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)
}

// emptyPage reports whether a page body carries no rows: an empty body,
// JSON null, an empty array, or an empty object.
func emptyPage(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	switch string(trimmed) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}

// truthy mirrors loose cursor-presence semantics: absent, null, false,
// zero, and empty string all terminate the walk.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	default:
		return r.Exists()
	}
}
