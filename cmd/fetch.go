package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch raw pages from a configured API",
	Long:  "Walks the API's pagination and persists each page as pretty-printed JSON under the raw data directory, partitioned by logical date.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		api, date, err := resolveAPIDate(cmd)
		if err != nil {
			return err
		}

		store := newPageStore()
		ex := newExtractor(store)

		pages, err := ex.Fetch(ctx, api, date)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		zap.L().Info("fetch complete",
			zap.String("api", api.Name),
			zap.String("date", date),
			zap.Int("pages", len(pages)),
		)
		fmt.Fprintf(os.Stdout, "Saved %d page(s) for %s on %s\n", len(pages), api.Name, date)
		return nil
	},
}

func init() {
	addAPIDateFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}
