package schema

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/skyline-data/apisync/internal/config"
	"github.com/skyline-data/apisync/internal/convert"
	"github.com/skyline-data/apisync/internal/model"
)

// inferSampleSize caps how many rows inference inspects.
const inferSampleSize = 100

// inferReport infers a schema from the row set, persists it as a reusable
// config artifact, and reports every row as valid. Inference never rejects.
func (e *Engine) inferReport(cfg *config.APIConfig, flat []map[string]any, log *zap.Logger) (*model.ValidationReport, error) {
	sample := flat
	if len(sample) > inferSampleSize {
		sample = sample[:inferSampleSize]
	}

	inferred := Infer(sample)

	path, err := e.writeInferred(cfg.Name, inferred)
	if err != nil {
		return nil, err
	}
	log.Info("schema inferred",
		zap.Int("columns", len(inferred.RequiredColumns)),
		zap.String("artifact", path),
	)

	return &model.ValidationReport{
		ValidRows:      len(flat),
		Errors:         []string{},
		InferredSchema: inferred,
	}, nil
}

// Infer derives a column schema from observed values. Column names are
// sorted for a deterministic artifact.
func Infer(rows []map[string]any) *model.Schema {
	observed := make(map[string]map[model.FieldType]bool)
	for _, row := range rows {
		for col, v := range row {
			if _, ok := observed[col]; !ok {
				observed[col] = make(map[model.FieldType]bool)
			}
			if v == nil {
				continue
			}
			observed[col][valueType(v)] = true
		}
	}

	cols := make([]string, 0, len(observed))
	for col := range observed {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	dtypes := make(map[string]model.FieldType, len(cols))
	for _, col := range cols {
		dtypes[col] = mergeTypes(observed[col])
	}

	return &model.Schema{
		RequiredColumns: cols,
		Dtypes:          dtypes,
		Validation: model.SchemaValidation{
			UniqueKeys:    []string{},
			NonNullFields: []string{},
		},
	}
}

// valueType classifies one observed JSON value.
func valueType(v any) model.FieldType {
	switch tv := v.(type) {
	case bool:
		return model.FieldBool
	case float64:
		if tv == float64(int64(tv)) {
			return model.FieldInt
		}
		return model.FieldFloat
	case string:
		if convert.IsDatetime(tv) {
			return model.FieldDatetime
		}
		return model.FieldString
	default:
		return model.FieldString
	}
}

// mergeTypes collapses the set of observed value types into one column type.
// Int and float merge to float; any other mix falls back to string.
func mergeTypes(set map[model.FieldType]bool) model.FieldType {
	if len(set) == 0 {
		return model.FieldString
	}
	if len(set) == 1 {
		for t := range set {
			return t
		}
	}
	if len(set) == 2 && set[model.FieldInt] && set[model.FieldFloat] {
		return model.FieldFloat
	}
	return model.FieldString
}

// writeInferred persists the inferred schema as a YAML artifact reusable as
// a future declared schema.
func (e *Engine) writeInferred(api string, sch *model.Schema) (string, error) {
	if err := os.MkdirAll(e.inferredDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "schema: create dir %s", e.inferredDir)
	}

	data, err := yaml.Marshal(sch)
	if err != nil {
		return "", eris.Wrap(err, "schema: marshal inferred schema")
	}

	path := filepath.Join(e.inferredDir, api+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "schema: write %s", path)
	}
	return path, nil
}
