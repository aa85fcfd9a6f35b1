package exprlang

import (
	"context"
	"math"
	"testing"

	"github.com/flowlayer/enginecore/internal/app/condition"
	"github.com/flowlayer/enginecore/internal/app/record"
)

func evalBG(e Expr, rec record.Record) any {
	return Eval(context.Background(), e, rec, nil)
}

func TestFieldResolvesPath(t *testing.T) {
	rec := record.Record{"order": map[string]any{"total": 42.5}}
	got := evalBG(Field("order.total"), rec)
	if got != 42.5 {
		t.Fatalf("expected 42.5, got %v", got)
	}
}

func TestFieldAbsentIsNil(t *testing.T) {
	rec := record.Record{}
	if got := evalBG(Field("missing"), rec); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestLiteralPassthrough(t *testing.T) {
	if got := evalBG(Literal(7.0), record.Record{}); got != 7.0 {
		t.Fatalf("expected 7.0, got %v", got)
	}
}

func TestConcatJoinsWithSeparator(t *testing.T) {
	e := Expr{Kind: KindConcat, Parts: []Expr{Literal("a"), Literal("b"), Literal(3.0)}, Separator: "-"}
	got := evalBG(e, record.Record{})
	if got != "a-b-3" {
		t.Fatalf("expected a-b-3, got %v", got)
	}
}

func TestTemplateInterpolatesFieldsAndTreatsAbsentAsEmpty(t *testing.T) {
	rec := record.Record{"name": "Ada"}
	e := Expr{Kind: KindTemplate, Template: "Hello {{name}}, code {{missing}}!"}
	got := evalBG(e, rec)
	if got != "Hello Ada, code !" {
		t.Fatalf("unexpected template result: %q", got)
	}
}

func TestMathBinaryOps(t *testing.T) {
	add := Expr{Kind: KindMath, MathOp: MathAdd, Left: ptr(Literal(2.0)), Right: ptr(Literal(3.0))}
	if got := evalBG(add, record.Record{}); got != 5.0 {
		t.Fatalf("expected 5, got %v", got)
	}

	div := Expr{Kind: KindMath, MathOp: MathDiv, Left: ptr(Literal(10.0)), Right: ptr(Literal(4.0))}
	if got := evalBG(div, record.Record{}); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
}

func TestMathDivisionByZeroIsNaN(t *testing.T) {
	e := Expr{Kind: KindMath, MathOp: MathDiv, Left: ptr(Literal(10.0)), Right: ptr(Literal(0.0))}
	got := evalBG(e, record.Record{})
	f, ok := got.(float64)
	if !ok || !math.IsNaN(f) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestMathNonNumericOperandIsNaN(t *testing.T) {
	e := Expr{Kind: KindMath, MathOp: MathAdd, Left: ptr(Literal("x")), Right: ptr(Literal(1.0))}
	got := evalBG(e, record.Record{})
	f, ok := got.(float64)
	if !ok || !math.IsNaN(f) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestMathUnaryOps(t *testing.T) {
	round := Expr{Kind: KindMath, MathOp: MathRound, Left: ptr(Literal(2.6))}
	if got := evalBG(round, record.Record{}); got != 3.0 {
		t.Fatalf("expected 3, got %v", got)
	}
	abs := Expr{Kind: KindMath, MathOp: MathAbs, Left: ptr(Literal(-5.0))}
	if got := evalBG(abs, record.Record{}); got != 5.0 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestCoalesceReturnsFirstNonAbsent(t *testing.T) {
	e := Expr{Kind: KindCoalesce, Candidates: []Expr{Field("missing"), Literal(nil), Literal("fallback")}}
	if got := evalBG(e, record.Record{}); got != "fallback" {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestConditionalEvaluatesExactlyOneBranch(t *testing.T) {
	rec := record.Record{"value": 15.0}
	cond := condition.AtomNode(condition.WorkflowAtom{
		Kind: condition.WorkflowCompare, Left: condition.FieldSource("value"),
		Op: condition.OpGt, Right: condition.ConstantSource(10.0),
	})
	e := Expr{Kind: KindConditional, Cond: &cond, Then: ptr(Literal("big")), Else: ptr(Literal("small"))}
	if got := evalBG(e, rec); got != "big" {
		t.Fatalf("expected big, got %v", got)
	}

	rec["value"] = 1.0
	if got := evalBG(e, rec); got != "small" {
		t.Fatalf("expected small, got %v", got)
	}
}

func TestDateFormatAndAdd(t *testing.T) {
	e := Expr{
		Kind: KindDate, DateOp: DateFormat,
		Value:  ptr(Literal("2024-06-15T12:00:00Z")),
		Format: "YYYY-MM-DD HH:mm:ss",
	}
	if got := evalBG(e, record.Record{}); got != "2024-06-15 12:00:00" {
		t.Fatalf("unexpected format result: %v", got)
	}

	add := Expr{
		Kind: KindDate, DateOp: DateAdd, Unit: UnitDay,
		Value: ptr(Literal("2024-06-15T12:00:00Z")), Amount: ptr(Literal(1.0)),
	}
	format := Expr{Kind: KindDate, DateOp: DateFormat, Value: &add, Format: "YYYY-MM-DD"}
	if got := evalBG(format, record.Record{}); got != "2024-06-16" {
		t.Fatalf("expected 2024-06-16, got %v", got)
	}
}

func TestDateDiffTruncatesTowardZero(t *testing.T) {
	e := Expr{
		Kind: KindDate, DateOp: DateDiff, Unit: UnitDay,
		Value: ptr(Literal("2024-06-16T10:00:00Z")),
		Other: ptr(Literal("2024-06-15T12:00:00Z")),
	}
	if got := evalBG(e, record.Record{}); got != 0.0 {
		t.Fatalf("expected truncated 0, got %v", got)
	}
}

func TestDateStartOfWeekIsSundayBased(t *testing.T) {
	// 2024-06-13 is a Thursday.
	e := Expr{Kind: KindDate, DateOp: DateStartOf, Unit: UnitWeek, Value: ptr(Literal("2024-06-13T15:00:00Z"))}
	format := Expr{Kind: KindDate, DateOp: DateFormat, Value: &e, Format: "YYYY-MM-DD"}
	if got := evalBG(format, record.Record{}); got != "2024-06-09" {
		t.Fatalf("expected Sunday 2024-06-09, got %v", got)
	}
}

func TestDateInvalidInputIsAbsent(t *testing.T) {
	e := Expr{Kind: KindDate, DateOp: DateFormat, Value: ptr(Literal("not-a-date")), Format: "YYYY"}
	if got := evalBG(e, record.Record{}); got != nil {
		t.Fatalf("expected nil for invalid date, got %v", got)
	}
}

func TestArrayOpsOnNonArrayFallback(t *testing.T) {
	rec := record.Record{"tags": "not-an-array"}
	length := Expr{Kind: KindArray, ArrayOp: ArrayLength, ArrayPath: "tags"}
	if got := evalBG(length, rec); got != 0.0 {
		t.Fatalf("expected 0 length fallback, got %v", got)
	}
	first := Expr{Kind: KindArray, ArrayOp: ArrayFirst, ArrayPath: "tags"}
	if got := evalBG(first, rec); got != nil {
		t.Fatalf("expected absent, got %v", got)
	}
}

func TestArrayOps(t *testing.T) {
	rec := record.Record{"tags": []any{"a", "b", "c"}}

	if got := evalBG(Expr{Kind: KindArray, ArrayOp: ArrayLength, ArrayPath: "tags"}, rec); got != 3.0 {
		t.Fatalf("expected length 3, got %v", got)
	}
	if got := evalBG(Expr{Kind: KindArray, ArrayOp: ArrayFirst, ArrayPath: "tags"}, rec); got != "a" {
		t.Fatalf("expected a, got %v", got)
	}
	if got := evalBG(Expr{Kind: KindArray, ArrayOp: ArrayLast, ArrayPath: "tags"}, rec); got != "c" {
		t.Fatalf("expected c, got %v", got)
	}
	join := Expr{Kind: KindArray, ArrayOp: ArrayJoin, ArrayPath: "tags", ArrayArgs: []Expr{Literal("|")}}
	if got := evalBG(join, rec); got != "a|b|c" {
		t.Fatalf("expected a|b|c, got %v", got)
	}
	includes := Expr{Kind: KindArray, ArrayOp: ArrayIncludes, ArrayPath: "tags", ArrayArgs: []Expr{Literal("b")}}
	if got := evalBG(includes, rec); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	at := Expr{Kind: KindArray, ArrayOp: ArrayAt, ArrayPath: "tags", ArrayArgs: []Expr{Literal(1.0)}}
	if got := evalBG(at, rec); got != "b" {
		t.Fatalf("expected b, got %v", got)
	}
	slice := Expr{Kind: KindArray, ArrayOp: ArraySlice, ArrayPath: "tags", ArrayArgs: []Expr{Literal(1.0)}}
	got, ok := evalBG(slice, rec).([]any)
	if !ok || len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected slice result: %v", got)
	}
}

func TestStringOpsOnNonStringFallback(t *testing.T) {
	rec := record.Record{"name": 5.0}
	length := Expr{Kind: KindString, StringOp: StringLength, StringPath: "name"}
	if got := evalBG(length, rec); got != 0.0 {
		t.Fatalf("expected 0 length fallback, got %v", got)
	}
	upper := Expr{Kind: KindString, StringOp: StringUpper, StringPath: "name"}
	if got := evalBG(upper, rec); got != nil {
		t.Fatalf("expected absent, got %v", got)
	}
}

func TestStringOps(t *testing.T) {
	rec := record.Record{"name": "  Hello World  "}

	if got := evalBG(Expr{Kind: KindString, StringOp: StringTrim, StringPath: "name"}, rec); got != "Hello World" {
		t.Fatalf("unexpected trim result: %v", got)
	}
	if got := evalBG(Expr{Kind: KindString, StringOp: StringUpper, StringPath: "name"}, rec); got != "  HELLO WORLD  " {
		t.Fatalf("unexpected upper result: %v", got)
	}
	if got := evalBG(Expr{Kind: KindString, StringOp: StringLower, StringPath: "name"}, rec); got != "  hello world  " {
		t.Fatalf("unexpected lower result: %v", got)
	}

	rec2 := record.Record{"csv": "a,b,c"}
	split := Expr{Kind: KindString, StringOp: StringSplit, StringPath: "csv", StringArgs: []Expr{Literal(",")}}
	parts, ok := evalBG(split, rec2).([]any)
	if !ok || len(parts) != 3 || parts[1] != "b" {
		t.Fatalf("unexpected split result: %v", parts)
	}

	rec3 := record.Record{"name": "hello world"}
	sub := Expr{Kind: KindString, StringOp: StringSubstring, StringPath: "name", StringArgs: []Expr{Literal(0.0), Literal(5.0)}}
	if got := evalBG(sub, rec3); got != "hello" {
		t.Fatalf("expected hello, got %v", got)
	}

	replace := Expr{Kind: KindString, StringOp: StringReplace, StringPath: "name", StringArgs: []Expr{Literal("world"), Literal("there")}}
	if got := evalBG(replace, rec3); got != "hello there" {
		t.Fatalf("expected hello there, got %v", got)
	}

	padStart := Expr{Kind: KindString, StringOp: StringPadStart, StringPath: "name", StringArgs: []Expr{Literal(14.0), Literal("*")}}
	if got := evalBG(padStart, rec3); got != "***hello world" {
		t.Fatalf("unexpected padStart result: %v", got)
	}

	padEnd := Expr{Kind: KindString, StringOp: StringPadEnd, StringPath: "name", StringArgs: []Expr{Literal(14.0), Literal("*")}}
	if got := evalBG(padEnd, rec3); got != "hello world***" {
		t.Fatalf("unexpected padEnd result: %v", got)
	}
}

func ptr(e Expr) *Expr { return &e }
