package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/skyline-data/apisync/internal/ledger"
	"github.com/skyline-data/apisync/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing, viewing, and summarizing pipeline runs recorded in the ledger.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		led := ledger.New(pool)
		if err := led.EnsureTable(ctx); err != nil {
			return err
		}

		pipelineID, _ := cmd.Flags().GetString("pipeline")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := led.List(ctx, ledger.Filter{
			PipelineID: pipelineID,
			Status:     model.RunStatus(status),
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		led := ledger.New(pool)
		if err := led.EnsureTable(ctx); err != nil {
			return err
		}

		run, err := led.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		led := ledger.New(pool)
		if err := led.EnsureTable(ctx); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetDuration("since")
		pipelineID, _ := cmd.Flags().GetString("pipeline")
		filter := ledger.Filter{PipelineID: pipelineID}
		if since > 0 {
			filter.CreatedAfter = time.Now().Add(-since)
		}
		filter.Limit = 10000 // high limit for stats

		runs, err := led.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("pipeline", "", "filter by pipeline id")
	runsListCmd.Flags().String("status", "", "filter by run status (success, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().String("pipeline", "", "filter by pipeline id")
	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Success    int
	Failed     int
	TotalRows  int64
	AvgDurSecs float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.RunRecord) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur float64
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusSuccess:
			s.Success++
			s.TotalRows += r.RowsProcessed
		case model.RunStatusFailed:
			s.Failed++
		}
		if r.DurationSec > 0 {
			totalDur += r.DurationSec
			durCount++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPIPELINE\tDATE\tSTATUS\tROWS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t--------\t----\t------\t----\t-------\t--------")

	for _, r := range runs {
		errHint := ""
		if r.ErrorMessage != "" {
			errHint = " !"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%d\t%s\t%.1fs\n",
			truncateID(r.RunID),
			r.PipelineID,
			r.RunDate,
			r.Status,
			errHint,
			r.RowsProcessed,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.DurationSec,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Success:\t%d\n", s.Success)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Rows loaded:\t%d\n", s.TotalRows)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a run id for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
