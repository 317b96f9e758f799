package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate fetched pages against the API's schema",
	Long:  "Loads the raw pages for a logical date, flattens nested objects, and checks each row against the declared schema. Without a declared schema the types are inferred from a sample and written as an artifact.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, date, err := resolveAPIDate(cmd)
		if err != nil {
			return err
		}

		store := newPageStore()
		report, err := newEngine(store).Validate(api, date)
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		if report.InvalidRows > 0 {
			zap.L().Warn("validation found invalid rows",
				zap.String("api", api.Name),
				zap.Int("invalid", report.InvalidRows),
				zap.Float64("rate", report.InvalidRate()),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	addAPIDateFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}
