package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/credentials"
	"github.com/skyline-data/apisync/internal/fetcher"
	"github.com/skyline-data/apisync/internal/pagestore"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestExtractor(t *testing.T, creds credentials.Resolver) (*Extractor, *pagestore.Store) {
	t.Helper()
	store := pagestore.New(t.TempDir())
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1, Timeout: 5 * time.Second})
	if creds == nil {
		creds = credentials.Static{}
	}
	return New(f, store, creds), store
}

func baseConfig(srvURL string) *config.APIConfig {
	return &config.APIConfig{
		Name:     "testapi",
		BaseURL:  srvURL,
		Endpoint: "/events",
	}
}

func TestFetch_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	ex, store := newTestExtractor(t, nil)
	cfg := baseConfig(srv.URL)
	cfg.Params = map[string]string{"per_page": "100"}

	pages, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
	require.Len(t, pages, 1)

	rows, err := store.LoadRows("testapi", "2024-01-15")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1), rows[0]["id"])
}

func TestFetch_PageStrategy_StopsOnEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page > 2 {
			w.Write([]byte(`[]`))
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{"id": page}})
	}))
	defer srv.Close()

	ex, store := newTestExtractor(t, nil)
	cfg := baseConfig(srv.URL)
	cfg.Pagination = config.PaginationConfig{Type: config.PaginationPage, PageParam: "page"}

	pages, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	// The empty terminator page is never persisted.
	saved, err := store.ListPages("testapi", "2024-01-15")
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestFetch_PageStrategy_StartPage(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("page"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ex, _ := newTestExtractor(t, nil)
	cfg := baseConfig(srv.URL)
	cfg.Pagination = config.PaginationConfig{Type: config.PaginationPage, PageParam: "page", StartPage: 5}

	pages, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, []string{"5"}, seen)
}

func TestFetch_CursorStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cursor") {
		case "":
			w.Write([]byte(`{"items":[{"id":1}],"meta":{"next_cursor":"abc"}}`))
		case "abc":
			w.Write([]byte(`{"items":[{"id":2}],"meta":{"next_cursor":null}}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer srv.Close()

	ex, _ := newTestExtractor(t, nil)
	cfg := baseConfig(srv.URL)
	cfg.Pagination = config.PaginationConfig{
		Type:        config.PaginationCursor,
		CursorParam: "cursor",
		CursorKey:   "meta.next_cursor",
	}

	pages, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestFetch_NextLinkStrategy(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"id": 1}},
				"next": srv.URL + "/events/page2",
			})
		case "/events/page2":
			w.Write([]byte(`{"data":[{"id":2}],"next":""}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	ex, _ := newTestExtractor(t, nil)
	cfg := baseConfig(srv.URL)
	cfg.Pagination = config.PaginationConfig{Type: config.PaginationNextLink, NextLinkKey: "next"}

	pages, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestFetch_AuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s3cret", r.Header.Get("X-Api-Key"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ex, _ := newTestExtractor(t, credentials.Static{"MY_KEY": "s3cret"})
	cfg := baseConfig(srv.URL)
	cfg.Auth = config.AuthConfig{Type: config.AuthAPIKey, KeyName: "X-Api-Key", Credential: "MY_KEY"}

	_, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
}

func TestFetch_BearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ex, _ := newTestExtractor(t, credentials.Static{"TOKEN": "tok123"})
	cfg := baseConfig(srv.URL)
	cfg.Auth = config.AuthConfig{Type: config.AuthBearer, Credential: "TOKEN"}

	_, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
}

func TestFetch_HTTPFailureKeepsPartialPages(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"items":[{"id":1}],"next_cursor":"abc"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ex, store := newTestExtractor(t, nil)
	cfg := baseConfig(srv.URL)
	cfg.Pagination = config.PaginationConfig{
		Type:        config.PaginationCursor,
		CursorParam: "cursor",
		CursorKey:   "next_cursor",
	}

	pages, err := ex.Fetch(context.Background(), cfg, "2024-01-15")
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	saved, err := store.ListPages("testapi", "2024-01-15")
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestEmptyPage(t *testing.T) {
	assert.True(t, emptyPage([]byte("")))
	assert.True(t, emptyPage([]byte("null")))
	assert.True(t, emptyPage([]byte(" [] ")))
	assert.True(t, emptyPage([]byte("{}")))
	assert.False(t, emptyPage([]byte(`[{"id":1}]`)))
	assert.False(t, emptyPage([]byte(`{"id":1}`)))
}

func TestPageLimiter(t *testing.T) {
	assert.Nil(t, pageLimiter(config.RateLimitConfig{}))

	lim := pageLimiter(config.RateLimitConfig{RequestsPerMinute: 120})
	require.NotNil(t, lim)
	assert.InDelta(t, 2.0, float64(lim.Limit()), 0.001)
	assert.Equal(t, 1, lim.Burst())
}
