package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/ledger"
	"github.com/skyline-data/apisync/internal/loader"
	"github.com/skyline-data/apisync/internal/pipeline"
	"github.com/skyline-data/apisync/internal/transform"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch, validate, load",
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
		p := pipeline.New(
			newExtractor(store),
			newEngine(store),
			loader.New(pool, ledger.New(pool), transform.New(store)),
		)

		result, err := p.Run(ctx, api, date)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("pipeline complete", runSummaryFields(api.Name, date, result)...)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func runSummaryFields(api, date string, result *pipeline.Result) []zap.Field {
	return []zap.Field{
		zap.String("api", api),
		zap.String("date", date),
		zap.Int("pages", len(result.Pages)),
		zap.Int64("rows", result.Run.RowsProcessed),
		zap.String("run_id", result.Run.RunID),
	}
}

func init() {
	addAPIDateFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
