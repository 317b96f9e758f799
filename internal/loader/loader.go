// Package loader writes the typed row set into the destination sink,
// idempotently per (api, logical date), and records a run ledger entry.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/db"
	"github.com/skyline-data/apisync/internal/ledger"
	"github.com/skyline-data/apisync/internal/model"
	"github.com/skyline-data/apisync/internal/transform"
)

// ColRunDate is injected for the delete-then-insert strategy.
const ColRunDate = "run_date"

// Loader performs the idempotent load step.
type Loader struct {
	pool        db.Pool
	ledger      *ledger.Ledger
	transformer *transform.Transformer
}

// New creates a Loader.
func New(pool db.Pool, led *ledger.Ledger, tr *transform.Transformer) *Loader {
	return &Loader{pool: pool, ledger: led, transformer: tr}
}

// Load transforms the raw page set and writes it to the destination table
// using one of two idempotent strategies: upsert-by-key when unique_keys is
// configured, delete-then-insert-by-date otherwise. Every invocation appends
// exactly one ledger entry; on failure the entry is best-effort and the
// original error is propagated.
func (l *Loader) Load(ctx context.Context, cfg *config.APIConfig, date string) (*model.RunRecord, error) {
	start := time.Now()
	log := zap.L().With(zap.String("api", cfg.Name), zap.String("date", date))

	rec := &model.RunRecord{
		RunID:      uuid.NewString(),
		PipelineID: cfg.Name,
		RunDate:    date,
		CreatedAt:  start,
	}

	if err := l.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}

	frame, err := l.transformer.Transform(cfg, date)
	if err != nil {
		return nil, l.recordFailure(ctx, rec, start, err, log)
	}

	// Empty input is success, not failure.
	if frame.Empty() {
		log.Info("no rows to load")
		rec.Status = model.RunStatusSuccess
		rec.DurationSec = time.Since(start).Seconds()
		if err := l.ledger.Record(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	rowsProcessed, err := l.write(ctx, cfg, date, frame)
	if err != nil {
		return nil, l.recordFailure(ctx, rec, start, err, log)
	}

	rec.RowsProcessed = rowsProcessed
	rec.DurationSec = time.Since(start).Seconds()
	rec.Status = model.RunStatusSuccess
	if err := l.ledger.Record(ctx, rec); err != nil {
		return nil, err
	}

	log.Info("load complete",
		zap.String("run_id", rec.RunID),
		zap.Int64("rows_processed", rowsProcessed),
		zap.Float64("duration_sec", rec.DurationSec),
	)
	return rec, nil
}

// write dispatches to the configured idempotent strategy.
func (l *Loader) write(ctx context.Context, cfg *config.APIConfig, date string, frame *model.Frame) (int64, error) {
	if len(cfg.UniqueKeys) > 0 {
		if err := l.ensureTable(ctx, cfg.Table(), frame, cfg.UniqueKeys); err != nil {
			return 0, err
		}
		return db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
			Table:        cfg.Table(),
			Columns:      frame.ColumnNames(),
			ConflictKeys: cfg.UniqueKeys,
		}, frame.Rows)
	}
	return l.deleteThenInsert(ctx, cfg.Table(), date, frame)
}

// deleteThenInsert replaces all rows of the logical date in one transaction
// so a failed run never leaves the partition partially visible.
func (l *Loader) deleteThenInsert(ctx context.Context, table, date string, frame *model.Frame) (int64, error) {
	if !frame.HasColumn(ColRunDate) {
		frame.Columns = append(frame.Columns, model.Column{Name: ColRunDate, Type: model.FieldString})
		for i := range frame.Rows {
			frame.Rows[i] = append(frame.Rows[i], date)
		}
	}

	if err := l.ensureTable(ctx, table, frame, nil); err != nil {
		return 0, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "load: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		db.SanitizeTable(table), pgx.Identifier{ColRunDate}.Sanitize())
	if _, err := tx.Exec(ctx, deleteSQL, date); err != nil {
		return 0, eris.Wrapf(err, "load: delete existing rows for %s", date)
	}

	if _, err := db.CopyFrom(ctx, tx, table, frame.ColumnNames(), frame.Rows); err != nil {
		return 0, eris.Wrapf(err, "load: insert rows for %s", date)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "load: commit tx")
	}

	// Every row is freshly inserted.
	return int64(len(frame.Rows)), nil
}

// ensureTable auto-creates the destination table with column types derived
// from the frame dtypes, and a primary key over the unique keys when set.
func (l *Loader) ensureTable(ctx context.Context, table string, frame *model.Frame, uniqueKeys []string) error {
	defs := make([]string, 0, len(frame.Columns)+1)
	for _, col := range frame.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", pgx.Identifier{col.Name}.Sanitize(), sqlType(col.Type)))
	}
	if len(uniqueKeys) > 0 {
		quoted := make([]string, len(uniqueKeys))
		for i, k := range uniqueKeys {
			quoted[i] = pgx.Identifier{k}.Sanitize()
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		db.SanitizeTable(table), strings.Join(defs, ", "))
	if _, err := l.pool.Exec(ctx, createSQL); err != nil {
		return eris.Wrapf(err, "load: ensure table %s", table)
	}
	return nil
}

// sqlType maps a frame dtype to a destination column type.
func sqlType(t model.FieldType) string {
	switch t {
	case model.FieldInt:
		return "BIGINT"
	case model.FieldFloat:
		return "DOUBLE PRECISION"
	case model.FieldDatetime:
		return "TIMESTAMP"
	case model.FieldBool:
		return "BOOLEAN"
	default:
		return "VARCHAR(500)"
	}
}

// recordFailure appends a failed ledger entry best-effort and returns the
// original error. A ledger write failure never masks the load failure.
func (l *Loader) recordFailure(ctx context.Context, rec *model.RunRecord, start time.Time, cause error, log *zap.Logger) error {
	rec.Status = model.RunStatusFailed
	rec.ErrorMessage = cause.Error()
	rec.DurationSec = time.Since(start).Seconds()
	if err := l.ledger.Record(ctx, rec); err != nil {
		log.Warn("failed to record failed run", zap.Error(err))
	}
	return cause
}
