// Package convert implements the per-type conversion table shared by schema
// validation and transform: type tag -> conversion function, with nil as the
// null sentinel.
package convert

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/spf13/cast"

	"github.com/skyline-data/apisync/internal/model"
)

// Options carries the optional per-mapping conversion parameters.
type Options struct {
	// Format is a strftime pattern for datetime parsing (e.g. %Y-%m-%dT%H:%M:%SZ).
	Format string

	// Scale and Offset are applied post-conversion: value*scale + offset.
	// Arithmetic is only defined for numeric columns; on any other column
	// type the converted value becomes null.
	Scale  *float64
	Offset *float64
}

func (o Options) hasArithmetic() bool { return o.Scale != nil || o.Offset != nil }

// EffectiveType returns the output column type after conversion options are
// applied. An int column with scale/offset arithmetic is promoted to float.
func EffectiveType(t model.FieldType, opts Options) model.FieldType {
	if t == model.FieldInt && opts.hasArithmetic() {
		return model.FieldFloat
	}
	return t
}

// Value coerces v to the field type t. It returns nil when v is nil, when
// coercion fails, or when scale/offset arithmetic is not defined for t.
func Value(t model.FieldType, v any, opts Options) any {
	if v == nil {
		return nil
	}

	if opts.hasArithmetic() && t != model.FieldInt && t != model.FieldFloat {
		return nil
	}

	switch t {
	case model.FieldInt:
		iv, ok := toInt64(v)
		if !ok {
			return nil
		}
		if opts.hasArithmetic() {
			return applyArithmetic(float64(iv), opts)
		}
		return iv

	case model.FieldFloat:
		fv, err := cast.ToFloat64E(v)
		if err != nil {
			return nil
		}
		if opts.hasArithmetic() {
			return applyArithmetic(fv, opts)
		}
		return fv

	case model.FieldBool:
		return toBool(v)

	case model.FieldDatetime:
		return toTime(v, opts.Format)

	case model.FieldString:
		return toString(v)

	default:
		return nil
	}
}

func applyArithmetic(v float64, opts Options) float64 {
	if opts.Scale != nil {
		v *= *opts.Scale
	}
	if opts.Offset != nil {
		v += *opts.Offset
	}
	return v
}

// toInt64 refuses non-integral floats rather than truncating them. JSON
// numbers decode as float64, so 123.0 is an int but 123.5 is not.
func toInt64(v any) (int64, bool) {
	switch fv := v.(type) {
	case float64:
		if fv != math.Trunc(fv) {
			return 0, false
		}
	case float32:
		if float64(fv) != math.Trunc(float64(fv)) {
			return 0, false
		}
	}
	iv, err := cast.ToInt64E(v)
	if err != nil {
		return 0, false
	}
	return iv, true
}

var (
	truthySet = map[string]bool{"true": true, "1": true, "yes": true, "y": true, "t": true}
	falsySet  = map[string]bool{"false": true, "0": true, "no": true, "n": true, "f": true}
)

// toBool recognizes the case-insensitive truthy set {true,1,yes,y,t} and
// falsy set {false,0,no,n,f}; anything else is null.
func toBool(v any) any {
	if b, ok := v.(bool); ok {
		return b
	}
	s := strings.ToLower(strings.TrimSpace(cast.ToString(v)))
	switch {
	case truthySet[s]:
		return true
	case falsySet[s]:
		return false
	default:
		return nil
	}
}

// fallbackLayouts are tried in order when no explicit format is configured.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime parses v into a timezone-naive UTC instant. Unparseable values are
// null.
func toTime(v any, format string) any {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC()
	case string:
		s := strings.TrimSpace(tv)
		if s == "" {
			return nil
		}
		if format != "" {
			t, err := strftime.Parse(format, s)
			if err != nil {
				return nil
			}
			return t.UTC()
		}
		for _, layout := range fallbackLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		return nil
	default:
		return nil
	}
}

// IsDatetime reports whether s parses as a datetime under the fallback
// layouts. Used by schema inference.
func IsDatetime(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, layout := range fallbackLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func toString(v any) any {
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
