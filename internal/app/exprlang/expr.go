// Package exprlang implements the Expression Evaluator: a pure tree-walk
// interpreter over a ten-kind tagged expression variant, evaluated
// against a record.Record. No I/O occurs during evaluation; the only
// failure modes are the NaN sentinel (math) and absent (nil) values
// (field/array/string/date ops), per the evaluator's contract.
package exprlang

import (
	"context"

	"github.com/flowlayer/enginecore/internal/app/condition"
	"github.com/flowlayer/enginecore/internal/app/record"
)

// Kind identifies an expression node's tag.
type Kind string

const (
	KindField       Kind = "field"
	KindLiteral     Kind = "literal"
	KindConcat      Kind = "concat"
	KindTemplate    Kind = "template"
	KindMath        Kind = "math"
	KindCoalesce    Kind = "coalesce"
	KindConditional Kind = "conditional"
	KindDate        Kind = "date"
	KindArray       Kind = "array"
	KindString      Kind = "string"
)

// MathOp enumerates math() operators.
type MathOp string

const (
	MathAdd   MathOp = "+"
	MathSub   MathOp = "-"
	MathMul   MathOp = "*"
	MathDiv   MathOp = "/"
	MathMod   MathOp = "%"
	MathRound MathOp = "round"
	MathFloor MathOp = "floor"
	MathCeil  MathOp = "ceil"
	MathAbs   MathOp = "abs"
)

// DateOp enumerates date() operators.
type DateOp string

const (
	DateNow     DateOp = "now"
	DateFormat  DateOp = "format"
	DateParse   DateOp = "parse"
	DateAdd     DateOp = "add"
	DateDiff    DateOp = "diff"
	DateStartOf DateOp = "startOf"
	DateEndOf   DateOp = "endOf"
)

// DateUnit enumerates the unit enum add/diff/startOf/endOf operate over.
type DateUnit string

const (
	UnitSecond DateUnit = "second"
	UnitMinute DateUnit = "minute"
	UnitHour   DateUnit = "hour"
	UnitDay    DateUnit = "day"
	UnitWeek   DateUnit = "week"
	UnitMonth  DateUnit = "month"
	UnitYear   DateUnit = "year"
)

// ArrayOp enumerates array() operators.
type ArrayOp string

const (
	ArrayLength   ArrayOp = "length"
	ArrayFirst    ArrayOp = "first"
	ArrayLast     ArrayOp = "last"
	ArrayJoin     ArrayOp = "join"
	ArrayIncludes ArrayOp = "includes"
	ArrayAt       ArrayOp = "at"
	ArraySlice    ArrayOp = "slice"
)

// StringOp enumerates string() operators.
type StringOp string

const (
	StringUpper     StringOp = "upper"
	StringLower     StringOp = "lower"
	StringTrim      StringOp = "trim"
	StringSplit     StringOp = "split"
	StringSubstring StringOp = "substring"
	StringReplace   StringOp = "replace"
	StringLength    StringOp = "length"
	StringPadStart  StringOp = "padStart"
	StringPadEnd    StringOp = "padEnd"
)

// Expr is the closed expression variant. Exactly one set of fields is
// populated per Kind; evaluation is a pure switch over Kind.
type Expr struct {
	Kind Kind

	// field
	Path string

	// literal
	Literal any

	// concat
	Parts     []Expr
	Separator string

	// template
	Template string

	// math
	MathOp MathOp
	Left   *Expr
	Right  *Expr // nil for unary ops (round/floor/ceil/abs)

	// coalesce
	Candidates []Expr

	// conditional
	Cond *condition.WorkflowTree
	Then *Expr
	Else *Expr

	// date
	DateOp  DateOp
	Value   *Expr // operand resolving to a time value (format/add/diff/startOf/endOf)
	Other   *Expr // diff's second operand
	Unit    DateUnit
	Amount  *Expr  // add()'s signed amount
	Format  string // format()'s token string

	// array
	ArrayOp   ArrayOp
	ArrayPath string
	ArrayArgs []Expr

	// string
	StringOp   StringOp
	StringPath string
	StringArgs []Expr
}

// Field builds a field(path) expression.
func Field(path string) Expr { return Expr{Kind: KindField, Path: path} }

// Literal builds a literal(value) expression.
func Literal(v any) Expr { return Expr{Kind: KindLiteral, Literal: v} }

// Eval is the pure entrypoint: evaluate(expr, record) -> value. ctx and src
// are threaded through only to support a conditional expression whose
// embedded condition tree contains an exists() atom; most callers may pass
// context.Background() and a nil src.
func Eval(ctx context.Context, e Expr, rec record.Record, src condition.RecordSource) any {
	v := &evaluator{ctx: ctx, src: src}
	return v.eval(e, rec)
}
