// Package transform applies declared field mappings to the raw page set,
// producing the final typed row set.
package transform

import (
	"time"

	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/convert"
	"github.com/skyline-data/apisync/internal/model"
	"github.com/skyline-data/apisync/internal/pagestore"
)

// Metadata columns injected after the mapped targets.
const (
	ColIngestionTimestamp = "ingestion_timestamp"
	ColSource             = "source"
)

// Transformer re-reads and re-flattens the raw page set independently of
// validation, so each stage stays an isolated retryable unit.
type Transformer struct {
	store *pagestore.Store
	now   func() time.Time
}

// New creates a Transformer.
func New(store *pagestore.Store) *Transformer {
	return &Transformer{store: store, now: time.Now}
}

type rejectedRow struct {
	Row  int            `json:"row"`
	Data map[string]any `json:"data"`
}

// Transform produces the typed row set for (api, date). A row survives only
// if every mapped field converts to non-null; a single failed field drops
// the whole row. An empty page set yields a zero-row frame with the full
// column header.
func (t *Transformer) Transform(cfg *config.APIConfig, date string) (*model.Frame, error) {
	log := zap.L().With(zap.String("api", cfg.Name), zap.String("date", date))

	frame := &model.Frame{Columns: outputColumns(cfg)}

	rows, err := t.store.LoadRows(cfg.Name, date)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return frame, nil
	}

	flat := pagestore.FlattenAll(rows)

	// One ingestion timestamp per transform pass, naive UTC.
	ingestedAt := t.now().UTC()

	var rejected []rejectedRow
	for i, row := range flat {
		cells := make([]any, 0, len(cfg.Mappings)+2)
		ok := true
		for _, m := range cfg.Mappings {
			cell := convert.Value(m.Type, row[m.Source], convert.Options{
				Format: m.Format,
				Scale:  m.Scale,
				Offset: m.Offset,
			})
			if cell == nil {
				ok = false
				break
			}
			cells = append(cells, cell)
		}
		if !ok {
			rejected = append(rejected, rejectedRow{Row: i, Data: row})
			continue
		}

		cells = append(cells, ingestedAt, cfg.Name)
		frame.Rows = append(frame.Rows, cells)
	}

	if len(rejected) > 0 {
		path, err := t.store.WriteInvalid(cfg.Name, date, "transform_invalid_rows.json", rejected)
		if err != nil {
			return nil, err
		}
		log.Warn("dropped rows with unconvertible fields",
			zap.Int("dropped", len(rejected)),
			zap.String("side_channel", path),
		)
	}

	log.Info("transform complete",
		zap.Int("rows_in", len(flat)),
		zap.Int("rows_out", len(frame.Rows)),
	)
	return frame, nil
}

// outputColumns returns the fixed column order: mapped targets in
// declaration order, then ingestion_timestamp, then source.
func outputColumns(cfg *config.APIConfig) []model.Column {
	cols := make([]model.Column, 0, len(cfg.Mappings)+2)
	for _, m := range cfg.Mappings {
		cols = append(cols, model.Column{
			Name: m.Target,
			Type: convert.EffectiveType(m.Type, convert.Options{Scale: m.Scale, Offset: m.Offset}),
		})
	}
	cols = append(cols,
		model.Column{Name: ColIngestionTimestamp, Type: model.FieldDatetime},
		model.Column{Name: ColSource, Type: model.FieldString},
	)
	return cols
}
