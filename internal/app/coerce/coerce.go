// Package coerce implements the numeric/string/time coercion rules shared by
// the expression evaluator, condition evaluator, and repository filter
// grammar: "safe stringify" and lenient numeric parsing, per the shared
// utilities component.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToFloat64 attempts a numeric coercion of v. ok is false when v cannot be
// interpreted as a number (the caller then yields NaN or "comparison is
// false", per context).
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// NaN is the sentinel math coercion failure yields.
var NaN = math.NaN()

// IsNaN reports whether v is the float64 NaN sentinel.
func IsNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// ToString renders v as the expression evaluator's "string form", used for
// concat/template interpolation. Absent (nil) becomes the empty string.
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == math.Trunc(s) && !math.IsInf(s, 0) {
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	case time.Time:
		return s.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// ToTime attempts to interpret v as a point in time: a time.Time value
// directly, or a string parsed as RFC3339. ok is false for anything else or
// an unparsable string.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return time.Time{}, false
		}
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// IsAbsent reports whether v represents the expression evaluator's "absent"
// value: a literal nil.
func IsAbsent(v any) bool {
	return v == nil
}
