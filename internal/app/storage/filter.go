package storage

import (
	"regexp"
	"strings"

	"github.com/flowlayer/enginecore/internal/app/coerce"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
)

// FilterOp enumerates the per-field operators the Repository filter grammar
// and the transform filter step share. before/after/between operate on
// coerced time values; the remaining comparators follow the same coercion
// rules as the workflow condition dialect's compare atom.
type FilterOp string

const (
	FilterEq         FilterOp = "eq"
	FilterNe         FilterOp = "ne"
	FilterIn         FilterOp = "in"
	FilterNin        FilterOp = "nin"
	FilterGt         FilterOp = "gt"
	FilterGte        FilterOp = "gte"
	FilterLt         FilterOp = "lt"
	FilterLte        FilterOp = "lte"
	FilterContains   FilterOp = "contains"
	FilterStartsWith FilterOp = "startsWith"
	FilterEndsWith   FilterOp = "endsWith"
	FilterBefore     FilterOp = "before"
	FilterAfter      FilterOp = "after"
	FilterBetween    FilterOp = "between"
	FilterIsNull     FilterOp = "isNull"
	FilterIsNotNull  FilterOp = "isNotNull"
	FilterRegex      FilterOp = "regex"
	FilterExists     FilterOp = "exists"
)

// Filter is a structural filter tree node: either a combinator (And/Or,
// non-empty) or a single-field leaf. Top-level and|or arrays combine
// sibling filters; an empty Filter (no combinator, no Field) matches
// everything.
type Filter struct {
	And []Filter
	Or  []Filter

	Field string
	Op    FilterOp
	Value any
	Upper any // between's upper bound
}

// IsZero reports whether f carries no constraint.
func (f Filter) IsZero() bool {
	return len(f.And) == 0 && len(f.Or) == 0 && f.Field == ""
}

// Matches evaluates f against rec.
func Matches(rec record.Record, f Filter) bool {
	if len(f.And) > 0 {
		for _, child := range f.And {
			if !Matches(rec, child) {
				return false
			}
		}
		return true
	}
	if len(f.Or) > 0 {
		for _, child := range f.Or {
			if Matches(rec, child) {
				return true
			}
		}
		return false
	}
	if f.Field == "" {
		return true
	}
	val := pathutil.Resolve(rec, f.Field)
	return matchField(val, f)
}

func matchField(val any, f Filter) bool {
	switch f.Op {
	case FilterEq:
		return equalValues(val, f.Value)
	case FilterNe:
		return !equalValues(val, f.Value)
	case FilterIn:
		return containsValue(f.Value, val)
	case FilterNin:
		return !containsValue(f.Value, val)
	case FilterGt, FilterGte, FilterLt, FilterLte:
		return compareNumeric(val, f.Op, f.Value)
	case FilterContains:
		return strings.Contains(coerce.ToString(val), coerce.ToString(f.Value))
	case FilterStartsWith:
		return strings.HasPrefix(coerce.ToString(val), coerce.ToString(f.Value))
	case FilterEndsWith:
		return strings.HasSuffix(coerce.ToString(val), coerce.ToString(f.Value))
	case FilterBefore:
		return compareTime(val, f.Value, func(a, b int64) bool { return a < b })
	case FilterAfter:
		return compareTime(val, f.Value, func(a, b int64) bool { return a > b })
	case FilterBetween:
		t, ok := coerce.ToTime(val)
		if !ok {
			return false
		}
		lower, lok := coerce.ToTime(f.Value)
		upper, uok := coerce.ToTime(f.Upper)
		if !lok || !uok {
			return false
		}
		unix := t.Unix()
		return unix >= lower.Unix() && unix < upper.Unix()
	case FilterIsNull:
		return coerce.IsAbsent(val)
	case FilterIsNotNull:
		return !coerce.IsAbsent(val)
	case FilterRegex:
		re, err := regexp.Compile(coerce.ToString(f.Value))
		if err != nil {
			return false
		}
		return re.MatchString(coerce.ToString(val))
	case FilterExists:
		want, _ := f.Value.(bool)
		return !coerce.IsAbsent(val) == want
	default:
		return false
	}
}

func compareNumeric(val any, op FilterOp, threshold any) bool {
	vf, vok := coerce.ToFloat64(val)
	tf, tok := coerce.ToFloat64(threshold)
	if !vok || !tok {
		return false
	}
	switch op {
	case FilterGt:
		return vf > tf
	case FilterGte:
		return vf >= tf
	case FilterLt:
		return vf < tf
	case FilterLte:
		return vf <= tf
	default:
		return false
	}
}

func compareTime(val, threshold any, cmp func(a, b int64) bool) bool {
	vt, vok := coerce.ToTime(val)
	tt, tok := coerce.ToTime(threshold)
	if !vok || !tok {
		return false
	}
	return cmp(vt.Unix(), tt.Unix())
}

func containsValue(haystack, needle any) bool {
	items, ok := haystack.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if equalValues(item, needle) {
			return true
		}
	}
	return false
}

func equalValues(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if lf, lok := coerce.ToFloat64(left); lok {
		if rf, rok := coerce.ToFloat64(right); rok {
			return lf == rf
		}
	}
	return coerce.ToString(left) == coerce.ToString(right)
}
