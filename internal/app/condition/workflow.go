package condition

import (
	"context"
	"regexp"
	"strings"

	"github.com/flowlayer/enginecore/internal/app/coerce"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
)

// WorkflowAtomKind enumerates the workflow dialect's atomic condition kinds.
type WorkflowAtomKind string

const (
	WorkflowCompare WorkflowAtomKind = "compare"
	WorkflowExists  WorkflowAtomKind = "exists"
)

// CompareOp enumerates compare/filter operators shared by the workflow
// condition dialect, the exists() single-field filter, and the transform
// filter step.
type CompareOp string

const (
	OpEq         CompareOp = "=="
	OpNe         CompareOp = "!="
	OpGt         CompareOp = ">"
	OpGte        CompareOp = ">="
	OpLt         CompareOp = "<"
	OpLte        CompareOp = "<="
	OpContains   CompareOp = "contains"
	OpStartsWith CompareOp = "startsWith"
	OpEndsWith   CompareOp = "endsWith"
	OpMatches    CompareOp = "matches"
)

// Source is a value source for compare atoms: either a record field path or
// a constant.
type Source struct {
	Field    bool
	Path     string
	Constant any
}

// FieldSource builds a field-path value source.
func FieldSource(path string) Source { return Source{Field: true, Path: path} }

// ConstantSource builds a constant value source.
func ConstantSource(v any) Source { return Source{Constant: v} }

func (s Source) resolve(rec record.Record) any {
	if s.Field {
		return pathutil.Resolve(rec, s.Path)
	}
	return s.Constant
}

// Resolve is the exported form of resolve, used outside this package by the
// action executor's own field|constant inputs (§4.G), which share this
// source shape.
func (s Source) Resolve(rec record.Record) any {
	return s.resolve(rec)
}

// ExistsFilter is the single-field filter exists() applies to each
// candidate record.
type ExistsFilter struct {
	Field string
	Op    CompareOp
	Value any
}

// WorkflowAtom is the workflow dialect's tagged atom leaf.
type WorkflowAtom struct {
	Kind WorkflowAtomKind

	// compare
	Left  Source
	Op    CompareOp
	Right Source

	// exists
	Collection string
	Filter     ExistsFilter
}

// WorkflowTree is a condition tree in the workflow dialect.
type WorkflowTree = Tree[WorkflowAtom]

// RecordSource reads every record of a named collection. storage.Storage
// satisfies this interface structurally; exists() depends only on this
// narrow slice of the repository contract.
type RecordSource interface {
	FindAllRecords(ctx context.Context, collection string) ([]record.Record, error)
}

// EvaluateWorkflow evaluates tree against rec, using src to resolve
// exists() lookups. src may be nil when the tree contains no exists atoms.
func EvaluateWorkflow(ctx context.Context, tree WorkflowTree, rec record.Record, src RecordSource) bool {
	return Evaluate(tree, func(atom WorkflowAtom) bool {
		return evaluateWorkflowAtom(ctx, atom, rec, src)
	})
}

func evaluateWorkflowAtom(ctx context.Context, atom WorkflowAtom, rec record.Record, src RecordSource) bool {
	switch atom.Kind {
	case WorkflowCompare:
		left := atom.Left.resolve(rec)
		right := atom.Right.resolve(rec)
		return Compare(left, atom.Op, right)
	case WorkflowExists:
		if src == nil {
			return false
		}
		rows, err := src.FindAllRecords(ctx, atom.Collection)
		if err != nil {
			return false
		}
		for _, row := range rows {
			val := pathutil.Resolve(row, atom.Filter.Field)
			if Compare(val, atom.Filter.Op, atom.Filter.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Compare applies op to left/right with the evaluator's coercion rules:
// numeric comparators coerce both sides via numeric parse and are false
// when either side fails to coerce; string-ish comparators stringify both
// sides first.
func Compare(left any, op CompareOp, right any) bool {
	switch op {
	case OpEq:
		return equalValues(left, right)
	case OpNe:
		return !equalValues(left, right)
	case OpGt, OpGte, OpLt, OpLte:
		lf, lok := coerce.ToFloat64(left)
		rf, rok := coerce.ToFloat64(right)
		if !lok || !rok {
			return false
		}
		switch op {
		case OpGt:
			return lf > rf
		case OpGte:
			return lf >= rf
		case OpLt:
			return lf < rf
		case OpLte:
			return lf <= rf
		}
		return false
	case OpContains:
		return strings.Contains(coerce.ToString(left), coerce.ToString(right))
	case OpStartsWith:
		return strings.HasPrefix(coerce.ToString(left), coerce.ToString(right))
	case OpEndsWith:
		return strings.HasSuffix(coerce.ToString(left), coerce.ToString(right))
	case OpMatches:
		pattern := coerce.ToString(right)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(coerce.ToString(left))
	default:
		return false
	}
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
