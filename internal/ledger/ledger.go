// Package ledger records one append-only run entry per load invocation in
// the shared pipeline_runs table.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/skyline-data/apisync/internal/db"
	"github.com/skyline-data/apisync/internal/model"
)

// Ledger provides read/write access to the pipeline_runs table.
type Ledger struct {
	pool db.Pool
}

// New creates a Ledger backed by the given connection pool.
func New(pool db.Pool) *Ledger {
	return &Ledger{pool: pool}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	run_id         TEXT PRIMARY KEY,
	pipeline_id    TEXT NOT NULL,
	run_date       TEXT NOT NULL,
	rows_processed BIGINT NOT NULL,
	duration_sec   DOUBLE PRECISION NOT NULL,
	status         TEXT NOT NULL,
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_pipeline_id ON pipeline_runs(pipeline_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_run_date ON pipeline_runs(run_date);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
`

// EnsureTable creates the run-ledger table if it does not exist.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, createTableSQL); err != nil {
		return eris.Wrap(err, "ledger: ensure table")
	}
	return nil
}

// Record appends one run entry. Entries are never deduplicated by logical
// date; idempotency belongs to the data table, not the ledger.
func (l *Ledger) Record(ctx context.Context, rec *model.RunRecord) error {
	var errMsg any
	if rec.ErrorMessage != "" {
		errMsg = rec.ErrorMessage
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO pipeline_runs
		 (run_id, pipeline_id, run_date, rows_processed, duration_sec, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.RunID, rec.PipelineID, rec.RunDate, rec.RowsProcessed,
		rec.DurationSec, string(rec.Status), errMsg,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: record run %s", rec.RunID)
	}
	return nil
}

// Get returns one run entry by id.
func (l *Ledger) Get(ctx context.Context, runID string) (*model.RunRecord, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT run_id, pipeline_id, run_date, rows_processed, duration_sec, status, error_message, created_at
		 FROM pipeline_runs WHERE run_id = $1`,
		runID,
	)
	rec, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: get run %s", runID)
	}
	return rec, nil
}

// Filter specifies criteria for listing run entries.
type Filter struct {
	PipelineID   string
	Status       model.RunStatus
	CreatedAfter time.Time
	Limit        int
}

// List returns run entries matching the filter, newest first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]model.RunRecord, error) {
	query := `SELECT run_id, pipeline_id, run_date, rows_processed, duration_sec, status, error_message, created_at
		 FROM pipeline_runs WHERE 1=1`
	var args []any

	if f.PipelineID != "" {
		args = append(args, f.PipelineID)
		query += fmt.Sprintf(" AND pipeline_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.CreatedAfter.IsZero() {
		args = append(args, f.CreatedAfter)
		query += fmt.Sprintf(" AND created_at > $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list runs")
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan run")
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ledger: iterate runs")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.RunRecord, error) {
	var rec model.RunRecord
	var errMsg *string
	var status string
	if err := row.Scan(
		&rec.RunID, &rec.PipelineID, &rec.RunDate, &rec.RowsProcessed,
		&rec.DurationSec, &status, &errMsg, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = model.RunStatus(status)
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	return &rec, nil
}
