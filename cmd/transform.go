package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/skyline-data/apisync/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Apply the configured mappings to fetched pages",
	Long:  "Produces the typed row set that would be loaded: source fields renamed and coerced per the mappings, metadata columns appended, rows with unconvertible values dropped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, date, err := resolveAPIDate(cmd)
		if err != nil {
			return err
		}

		frame, err := transform.New(newPageStore()).Transform(api, date)
		if err != nil {
			return eris.Wrap(err, "transform")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		rows := frame.Rows
		if limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, row := range rows {
			rec := make(map[string]any, len(frame.Columns))
			for i, col := range frame.Columns {
				rec[col.Name] = row[i]
			}
			if err := enc.Encode(rec); err != nil {
				return eris.Wrap(err, "encode row")
			}
		}
		fmt.Fprintf(os.Stderr, "%d row(s), %d column(s)\n", len(frame.Rows), len(frame.Columns))
		return nil
	},
}

func init() {
	addAPIDateFlags(transformCmd)
	transformCmd.Flags().Int("limit", 20, "max rows to print (0 = all)")
	rootCmd.AddCommand(transformCmd)
}
