package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/skyline-data/apisync/internal/ledger"
	"github.com/skyline-data/apisync/internal/loader"
	"github.com/skyline-data/apisync/internal/transform"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Transform fetched pages and load them into Postgres",
	Long:  "Transforms the raw pages for a logical date and writes the result to the target table idempotently: upsert when unique keys are configured, delete-then-insert for the date partition otherwise. Every attempt is recorded in the run ledger.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		api, date, err := resolveAPIDate(cmd)
		if err != nil {
			return err
		}

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := newPageStore()
		ld := loader.New(pool, ledger.New(pool), transform.New(store))

		rec, err := ld.Load(ctx, api, date)
		if err != nil {
			return eris.Wrap(err, "load")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	addAPIDateFlags(loadCmd)
	rootCmd.AddCommand(loadCmd)
}
