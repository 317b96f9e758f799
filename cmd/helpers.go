package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/credentials"
	"github.com/skyline-data/apisync/internal/extract"
	"github.com/skyline-data/apisync/internal/fetcher"
	"github.com/skyline-data/apisync/internal/pagestore"
	"github.com/skyline-data/apisync/internal/schema"
)

// addAPIDateFlags registers the flags shared by all per-invocation commands.
func addAPIDateFlags(cmd *cobra.Command) {
	cmd.Flags().String("api", "", "path to the API descriptor YAML (required)")
	cmd.Flags().String("date", "", "logical date YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("api")
}

// resolveAPIDate loads the API descriptor and resolves the logical date.
func resolveAPIDate(cmd *cobra.Command) (*config.APIConfig, string, error) {
	path, _ := cmd.Flags().GetString("api")
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, "", eris.Wrapf(err, "invalid --date %q", date)
	}

	api, err := config.LoadAPI(path)
	if err != nil {
		return nil, "", err
	}
	return api, date, nil
}

func initPool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is not configured")
	}
	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}
	return pool, nil
}

func newPageStore() *pagestore.Store {
	return pagestore.New(cfg.Data.Dir)
}

func newExtractor(store *pagestore.Store) *extract.Extractor {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.HTTP.UserAgent,
		Timeout:    time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxRetries: cfg.HTTP.MaxRetries,
	})
	return extract.New(f, store, credentials.Env{})
}

func newEngine(store *pagestore.Store) *schema.Engine {
	return schema.New(store, filepath.Join(cfg.Data.Dir, "configs", "inferred_schemas"))
}
