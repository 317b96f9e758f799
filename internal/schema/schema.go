// Package schema validates a raw page set against a declared column schema,
// or infers one when none is declared.
package schema

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/convert"
	"github.com/skyline-data/apisync/internal/model"
	"github.com/skyline-data/apisync/internal/pagestore"
)

// Engine runs one validation pass per (api, logical date) partition.
type Engine struct {
	store       *pagestore.Store
	inferredDir string
}

// New creates an Engine. inferredDir is where inferred schema artifacts are
// written in inference mode.
func New(store *pagestore.Store, inferredDir string) *Engine {
	return &Engine{store: store, inferredDir: inferredDir}
}

// invalidRow pairs a rejected row with its original position in the
// concatenated page set.
type invalidRow struct {
	Row  int            `json:"row"`
	Data map[string]any `json:"data"`
}

// Validate loads all pages for (api, date) and produces a validation report.
// Coercion failures are reported, never raised; the caller applies the
// benign-error policy.
func (e *Engine) Validate(cfg *config.APIConfig, date string) (*model.ValidationReport, error) {
	log := zap.L().With(zap.String("api", cfg.Name), zap.String("date", date))

	rows, err := e.store.LoadRows(cfg.Name, date)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &model.ValidationReport{Errors: []string{model.NoDataMarker}}, nil
	}

	flat := pagestore.FlattenAll(rows)

	if cfg.Schema == nil {
		return e.inferReport(cfg, flat, log)
	}

	sch := cfg.Schema
	var errs []string
	var rowErrs []string
	invalid := make([]bool, len(flat))

	// A required column absent from the entire row set invalidates every row.
	for _, col := range sch.RequiredColumns {
		seen := false
		for _, row := range flat {
			if _, ok := row[col]; ok {
				seen = true
				break
			}
		}
		if !seen {
			errs = append(errs, fmt.Sprintf("missing required column %q", col))
			for i := range invalid {
				invalid[i] = true
			}
		}
	}

	for i, row := range flat {
		for _, col := range sch.RequiredColumns {
			v, ok := row[col]
			if !ok || v == nil {
				// Nulls are allowed here; non-null fields are checked below.
				continue
			}
			dtype := sch.Dtypes[col]
			if convert.Value(dtype, v, convert.Options{}) == nil {
				invalid[i] = true
				rowErrs = append(rowErrs, fmt.Sprintf("row %d: column %q: cannot coerce %v to %s", i, col, v, dtype))
			}
		}
	}

	invalidCount := 0
	for _, bad := range invalid {
		if bad {
			invalidCount++
		}
	}

	if invalidCount > 0 {
		dump := make([]invalidRow, 0, invalidCount)
		for i, bad := range invalid {
			if bad {
				dump = append(dump, invalidRow{Row: i, Data: flat[i]})
			}
		}
		if _, err := e.store.WriteInvalid(cfg.Name, date, "invalid_rows.json", dump); err != nil {
			return nil, err
		}
	}

	report := &model.ValidationReport{
		ValidRows:   len(flat) - invalidCount,
		InvalidRows: invalidCount,
		Errors:      errs,
		RowErrors:   rowErrs,
	}

	// Hard gate upstream of transform: too many broken rows fails the pass
	// before the informational checks run.
	if report.InvalidRate() > sch.Validation.Threshold() {
		log.Warn("invalid-row rate exceeds threshold",
			zap.Int("invalid_rows", invalidCount),
			zap.Int("total_rows", len(flat)),
			zap.Float64("threshold", sch.Validation.Threshold()),
		)
		return report, nil
	}

	if keys := sch.Validation.UniqueKeys; len(keys) > 0 && hasDuplicates(flat, keys) {
		report.Errors = append(report.Errors,
			fmt.Sprintf("Duplicate values found in unique_keys: %v", keys))
	}

	for _, field := range sch.Validation.NonNullFields {
		if hasNulls(flat, field) {
			report.Errors = append(report.Errors,
				fmt.Sprintf("Null values found in non_null_field: %s", field))
		}
	}

	log.Info("validation complete",
		zap.Int("valid_rows", report.ValidRows),
		zap.Int("invalid_rows", report.InvalidRows),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// hasDuplicates reports whether two rows share the same composite key value.
func hasDuplicates(rows []map[string]any, keys []string) bool {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%v", row[k])
		}
		key := strings.Join(parts, "\x00")
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

// hasNulls reports whether any row misses the field or carries a null.
func hasNulls(rows []map[string]any, field string) bool {
	for _, row := range rows {
		if v, ok := row[field]; !ok || v == nil {
			return true
		}
	}
	return false
}
