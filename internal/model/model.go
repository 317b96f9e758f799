// Package model holds the shared types passed between pipeline stages.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// FieldType is the type tag for a mapped or declared column.
type FieldType string

const (
	FieldInt      FieldType = "int"
	FieldFloat    FieldType = "float"
	FieldBool     FieldType = "bool"
	FieldDatetime FieldType = "datetime"
	FieldString   FieldType = "string"
)

// ParseFieldType validates a type tag from a config file.
func ParseFieldType(s string) (FieldType, error) {
	switch FieldType(s) {
	case FieldInt, FieldFloat, FieldBool, FieldDatetime, FieldString:
		return FieldType(s), nil
	default:
		return "", eris.Errorf("unknown field type: %q (valid: int, float, bool, datetime, string)", s)
	}
}

// Column describes one output column of a typed row set.
type Column struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Frame is an ordered, typed row set. Cells are int64, float64, bool,
// time.Time, or string; nil is the null sentinel.
type Frame struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ColumnNames returns the column names in declaration order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Empty reports whether the frame holds no rows.
func (f *Frame) Empty() bool { return len(f.Rows) == 0 }

// HasColumn reports whether a column with the given name exists.
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Schema declares the expected shape of a raw row set.
type Schema struct {
	RequiredColumns []string             `yaml:"required_columns" json:"required_columns"`
	Dtypes          map[string]FieldType `yaml:"dtypes" json:"dtypes"`
	Validation      SchemaValidation     `yaml:"validation" json:"validation"`
}

// SchemaValidation holds the informational checks and the invalid-row gate.
type SchemaValidation struct {
	UniqueKeys    []string `yaml:"unique_keys" json:"unique_keys"`
	NonNullFields []string `yaml:"non_null_fields" json:"non_null_fields"`

	// InvalidThreshold is the invalid-row rate above which validation fails.
	// Zero means the default of 0.05.
	InvalidThreshold float64 `yaml:"invalid_threshold,omitempty" json:"invalid_threshold,omitempty"`
}

// DefaultInvalidThreshold is the invalid-row rate gate used when a schema
// does not configure its own.
const DefaultInvalidThreshold = 0.05

// Threshold returns the configured invalid-row gate, or the default.
func (v SchemaValidation) Threshold() float64 {
	if v.InvalidThreshold > 0 {
		return v.InvalidThreshold
	}
	return DefaultInvalidThreshold
}

// NoDataMarker is the benign error reported when a date partition holds no
// raw pages. Callers must not treat it as a failure on its own.
const NoDataMarker = "No data found."

// ValidationReport summarizes one validation pass over a date partition.
// Errors holds dataset-level findings (no data, missing columns, duplicate
// keys, null violations); RowErrors holds per-row coercion detail, which the
// invalid-row rate already accounts for.
type ValidationReport struct {
	ValidRows      int      `json:"valid_rows"`
	InvalidRows    int      `json:"invalid_rows"`
	Errors         []string `json:"errors"`
	RowErrors      []string `json:"row_errors,omitempty"`
	InferredSchema *Schema  `json:"inferred_schema,omitempty"`
}

// InvalidRate returns the fraction of rows that failed coercion.
func (r *ValidationReport) InvalidRate() float64 {
	total := r.ValidRows + r.InvalidRows
	if total == 0 {
		return 0
	}
	return float64(r.InvalidRows) / float64(total)
}

// RunStatus is the terminal state of a load invocation.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunRecord is one append-only ledger entry per load invocation.
type RunRecord struct {
	RunID         string    `json:"run_id"`
	PipelineID    string    `json:"pipeline_id"`
	RunDate       string    `json:"run_date"`
	RowsProcessed int64     `json:"rows_processed"`
	DurationSec   float64   `json:"duration_sec"`
	Status        RunStatus `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
