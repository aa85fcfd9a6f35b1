package exprlang

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/flowlayer/enginecore/internal/app/coerce"
	"github.com/flowlayer/enginecore/internal/app/condition"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
)

type evaluator struct {
	ctx context.Context
	src condition.RecordSource
}

func (v *evaluator) eval(e Expr, rec record.Record) any {
	switch e.Kind {
	case KindField:
		return pathutil.Resolve(rec, e.Path)
	case KindLiteral:
		return e.Literal
	case KindConcat:
		return v.evalConcat(e, rec)
	case KindTemplate:
		return v.evalTemplate(e, rec)
	case KindMath:
		return v.evalMath(e, rec)
	case KindCoalesce:
		return v.evalCoalesce(e, rec)
	case KindConditional:
		return v.evalConditional(e, rec)
	case KindDate:
		return v.evalDate(e, rec)
	case KindArray:
		return v.evalArray(e, rec)
	case KindString:
		return v.evalString(e, rec)
	default:
		return nil
	}
}

func (v *evaluator) evalConcat(e Expr, rec record.Record) any {
	parts := make([]string, 0, len(e.Parts))
	for _, part := range e.Parts {
		parts = append(parts, coerce.ToString(v.eval(part, rec)))
	}
	return strings.Join(parts, e.Separator)
}

func (v *evaluator) evalTemplate(e Expr, rec record.Record) any {
	var b strings.Builder
	s := e.Template
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start
		b.WriteString(s[:start])
		path := strings.TrimSpace(s[start+2 : end])
		b.WriteString(coerce.ToString(pathutil.Resolve(rec, path)))
		s = s[end+2:]
	}
	return b.String()
}

func (v *evaluator) evalMath(e Expr, rec record.Record) any {
	if e.Left == nil {
		return coerce.NaN
	}
	left, lok := coerce.ToFloat64(v.eval(*e.Left, rec))
	if !lok {
		return coerce.NaN
	}
	switch e.MathOp {
	case MathRound:
		return math.Round(left)
	case MathFloor:
		return math.Floor(left)
	case MathCeil:
		return math.Ceil(left)
	case MathAbs:
		return math.Abs(left)
	}
	if e.Right == nil {
		return coerce.NaN
	}
	right, rok := coerce.ToFloat64(v.eval(*e.Right, rec))
	if !rok {
		return coerce.NaN
	}
	switch e.MathOp {
	case MathAdd:
		return left + right
	case MathSub:
		return left - right
	case MathMul:
		return left * right
	case MathDiv:
		if right == 0 {
			return coerce.NaN
		}
		return left / right
	case MathMod:
		if right == 0 {
			return coerce.NaN
		}
		return math.Mod(left, right)
	default:
		return coerce.NaN
	}
}

func (v *evaluator) evalCoalesce(e Expr, rec record.Record) any {
	for _, candidate := range e.Candidates {
		val := v.eval(candidate, rec)
		if !coerce.IsAbsent(val) {
			return val
		}
	}
	return nil
}

func (v *evaluator) evalConditional(e Expr, rec record.Record) any {
	if e.Cond == nil {
		return nil
	}
	ok := condition.EvaluateWorkflow(v.ctx, *e.Cond, rec, v.src)
	if ok {
		if e.Then == nil {
			return nil
		}
		return v.eval(*e.Then, rec)
	}
	if e.Else == nil {
		return nil
	}
	return v.eval(*e.Else, rec)
}

const (
	dayDuration  = 24 * time.Hour
	weekDuration = 7 * dayDuration
)

func (v *evaluator) resolveTime(e *Expr, rec record.Record) (time.Time, bool) {
	if e == nil {
		return time.Time{}, false
	}
	val := v.eval(*e, rec)
	return coerce.ToTime(val)
}

func (v *evaluator) evalDate(e Expr, rec record.Record) any {
	switch e.DateOp {
	case DateNow:
		return time.Now().UTC()
	case DateParse:
		t, ok := v.resolveTime(e.Value, rec)
		if !ok {
			return nil
		}
		return t
	case DateFormat:
		t, ok := v.resolveTime(e.Value, rec)
		if !ok {
			return nil
		}
		return formatDate(t, e.Format)
	case DateAdd:
		t, ok := v.resolveTime(e.Value, rec)
		if !ok {
			return nil
		}
		amount := 0.0
		if e.Amount != nil {
			a, aok := coerce.ToFloat64(v.eval(*e.Amount, rec))
			if !aok {
				return nil
			}
			amount = a
		}
		return addUnit(t, e.Unit, amount)
	case DateDiff:
		a, aok := v.resolveTime(e.Value, rec)
		b, bok := v.resolveTime(e.Other, rec)
		if !aok || !bok {
			return nil
		}
		return diffUnit(a, b, e.Unit)
	case DateStartOf:
		t, ok := v.resolveTime(e.Value, rec)
		if !ok {
			return nil
		}
		return startOf(t, e.Unit)
	case DateEndOf:
		t, ok := v.resolveTime(e.Value, rec)
		if !ok {
			return nil
		}
		start := startOf(t, e.Unit)
		next := addUnit(start, e.Unit, 1)
		return next.Add(-time.Nanosecond)
	default:
		return nil
	}
}

func formatDate(t time.Time, tokens string) string {
	t = t.UTC()
	replacer := strings.NewReplacer(
		"YYYY", strconv.Itoa(t.Year()),
		"MM", pad2(int(t.Month())),
		"DD", pad2(t.Day()),
		"HH", pad2(t.Hour()),
		"mm", pad2(t.Minute()),
		"ss", pad2(t.Second()),
	)
	return replacer.Replace(tokens)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func addUnit(t time.Time, unit DateUnit, amount float64) time.Time {
	n := int(amount)
	switch unit {
	case UnitSecond:
		return t.Add(time.Duration(amount * float64(time.Second)))
	case UnitMinute:
		return t.Add(time.Duration(amount * float64(time.Minute)))
	case UnitHour:
		return t.Add(time.Duration(amount * float64(time.Hour)))
	case UnitDay:
		return t.AddDate(0, 0, n)
	case UnitWeek:
		return t.AddDate(0, 0, n*7)
	case UnitMonth:
		return t.AddDate(0, n, 0)
	case UnitYear:
		return t.AddDate(n, 0, 0)
	default:
		return t
	}
}

func diffUnit(a, b time.Time, unit DateUnit) float64 {
	delta := a.Sub(b)
	switch unit {
	case UnitSecond:
		return math.Trunc(delta.Seconds())
	case UnitMinute:
		return math.Trunc(delta.Minutes())
	case UnitHour:
		return math.Trunc(delta.Hours())
	case UnitDay:
		return math.Trunc(delta.Hours() / 24)
	case UnitWeek:
		return math.Trunc(delta.Hours() / (24 * 7))
	case UnitMonth:
		months := (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
		if a.Day() < b.Day() {
			months--
		}
		return float64(months)
	case UnitYear:
		years := a.Year() - b.Year()
		if a.Month() < b.Month() || (a.Month() == b.Month() && a.Day() < b.Day()) {
			years--
		}
		return float64(years)
	default:
		return 0
	}
}

func startOf(t time.Time, unit DateUnit) time.Time {
	t = t.UTC()
	switch unit {
	case UnitSecond:
		return t.Truncate(time.Second)
	case UnitMinute:
		return t.Truncate(time.Minute)
	case UnitHour:
		return t.Truncate(time.Hour)
	case UnitDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case UnitWeek:
		// Sunday-based.
		weekday := int(t.Weekday())
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -weekday)
	case UnitMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case UnitYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

func (v *evaluator) evalArray(e Expr, rec record.Record) any {
	raw := pathutil.Resolve(rec, e.ArrayPath)
	arr, ok := raw.([]any)
	if !ok {
		if e.ArrayOp == ArrayLength {
			return 0.0
		}
		return nil
	}
	switch e.ArrayOp {
	case ArrayLength:
		return float64(len(arr))
	case ArrayFirst:
		if len(arr) == 0 {
			return nil
		}
		return arr[0]
	case ArrayLast:
		if len(arr) == 0 {
			return nil
		}
		return arr[len(arr)-1]
	case ArrayJoin:
		sep := ","
		if len(e.ArrayArgs) > 0 {
			sep = coerce.ToString(v.eval(e.ArrayArgs[0], rec))
		}
		parts := make([]string, len(arr))
		for i, item := range arr {
			parts[i] = coerce.ToString(item)
		}
		return strings.Join(parts, sep)
	case ArrayIncludes:
		if len(e.ArrayArgs) == 0 {
			return nil
		}
		needle := v.eval(e.ArrayArgs[0], rec)
		for _, item := range arr {
			if valuesEqual(item, needle) {
				return true
			}
		}
		return false
	case ArrayAt:
		if len(e.ArrayArgs) == 0 {
			return nil
		}
		idxF, ok := coerce.ToFloat64(v.eval(e.ArrayArgs[0], rec))
		if !ok {
			return nil
		}
		idx := int(idxF)
		if idx < 0 {
			idx += len(arr)
		}
		if idx < 0 || idx >= len(arr) {
			return nil
		}
		return arr[idx]
	case ArraySlice:
		start, end := 0, len(arr)
		if len(e.ArrayArgs) > 0 {
			if f, ok := coerce.ToFloat64(v.eval(e.ArrayArgs[0], rec)); ok {
				start = normalizeIndex(int(f), len(arr))
			}
		}
		if len(e.ArrayArgs) > 1 {
			if f, ok := coerce.ToFloat64(v.eval(e.ArrayArgs[1], rec)); ok {
				end = normalizeIndex(int(f), len(arr))
			}
		}
		if start < 0 {
			start = 0
		}
		if end > len(arr) {
			end = len(arr)
		}
		if start > end {
			return []any{}
		}
		out := make([]any, end-start)
		copy(out, arr[start:end])
		return out
	default:
		return nil
	}
}

func normalizeIndex(idx, length int) int {
	if idx < 0 {
		return length + idx
	}
	return idx
}

func valuesEqual(a, b any) bool {
	if af, aok := coerce.ToFloat64(a); aok {
		if bf, bok := coerce.ToFloat64(b); bok {
			return af == bf
		}
	}
	return coerce.ToString(a) == coerce.ToString(b)
}

func (v *evaluator) evalString(e Expr, rec record.Record) any {
	raw := pathutil.Resolve(rec, e.StringPath)
	s, ok := raw.(string)
	if !ok {
		if e.StringOp == StringLength {
			return 0.0
		}
		return nil
	}
	switch e.StringOp {
	case StringUpper:
		return strings.ToUpper(s)
	case StringLower:
		return strings.ToLower(s)
	case StringTrim:
		return strings.TrimSpace(s)
	case StringLength:
		return float64(len(s))
	case StringSplit:
		sep := ","
		if len(e.StringArgs) > 0 {
			sep = coerce.ToString(v.eval(e.StringArgs[0], rec))
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	case StringSubstring:
		start, end := 0, len(s)
		if len(e.StringArgs) > 0 {
			if f, ok := coerce.ToFloat64(v.eval(e.StringArgs[0], rec)); ok {
				start = clampInt(int(f), 0, len(s))
			}
		}
		if len(e.StringArgs) > 1 {
			if f, ok := coerce.ToFloat64(v.eval(e.StringArgs[1], rec)); ok {
				end = clampInt(int(f), 0, len(s))
			}
		}
		if start > end {
			return ""
		}
		return s[start:end]
	case StringReplace:
		if len(e.StringArgs) < 2 {
			return s
		}
		search := coerce.ToString(v.eval(e.StringArgs[0], rec))
		replacement := coerce.ToString(v.eval(e.StringArgs[1], rec))
		return strings.ReplaceAll(s, search, replacement)
	case StringPadStart:
		return pad(s, e, v, rec, true)
	case StringPadEnd:
		return pad(s, e, v, rec, false)
	default:
		return nil
	}
}

func pad(s string, e Expr, v *evaluator, rec record.Record, start bool) string {
	if len(e.StringArgs) == 0 {
		return s
	}
	targetF, ok := coerce.ToFloat64(v.eval(e.StringArgs[0], rec))
	if !ok {
		return s
	}
	target := int(targetF)
	padStr := " "
	if len(e.StringArgs) > 1 {
		padStr = coerce.ToString(v.eval(e.StringArgs[1], rec))
	}
	if padStr == "" || len(s) >= target {
		return s
	}
	var b strings.Builder
	for b.Len()+len(s) < target {
		remaining := target - b.Len() - len(s)
		if remaining >= len(padStr) {
			b.WriteString(padStr)
		} else {
			b.WriteString(padStr[:remaining])
		}
	}
	if start {
		return b.String() + s
	}
	return s + b.String()
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
