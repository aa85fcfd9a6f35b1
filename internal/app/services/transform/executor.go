// Package transform implements the Transform Step Executor (component E)
// and Pipeline Orchestrator (component F): twelve relational/reshaping
// operators over named record.Record collections, sequenced and recorded
// by runPipeline.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/flowlayer/enginecore/internal/app/coerce"
	"github.com/flowlayer/enginecore/internal/app/condition"
	domain "github.com/flowlayer/enginecore/internal/app/domain/transform"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

// StepError carries the step id and a human-readable message, per §4.E's
// failure policy.
type StepError struct {
	StepID  string
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %s", e.StepID, e.Message)
}

func stepErr(stepID, format string, args ...any) error {
	return &StepError{StepID: stepID, Message: fmt.Sprintf(format, args...)}
}

// Outcome is one step invocation's measured result.
type Outcome struct {
	InputRows        int
	OutputRows       int
	OutputCollection string
}

// Execute dispatches step by its Type, reading from the source
// collection(s) its Config names and writing the result to Config's
// "output" collection (cleared and recreated).
func Execute(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	switch step.Type {
	case domain.StepFilter:
		return executeFilter(ctx, store, step)
	case domain.StepMap:
		return executeMap(ctx, store, step)
	case domain.StepAggregate:
		return executeAggregate(ctx, store, step)
	case domain.StepJoin:
		return executeJoin(ctx, store, step)
	case domain.StepLookup:
		return executeLookup(ctx, store, step)
	case domain.StepUnion:
		return executeUnion(ctx, store, step)
	case domain.StepDeduplicate:
		return executeDeduplicate(ctx, store, step)
	case domain.StepSort:
		return executeSort(ctx, store, step)
	case domain.StepLimit:
		return executeLimit(ctx, store, step)
	case domain.StepPivot:
		return executePivot(ctx, store, step)
	case domain.StepUnpivot:
		return executeUnpivot(ctx, store, step)
	case domain.StepFlatten:
		return executeFlatten(ctx, store, step)
	default:
		return Outcome{}, stepErr(step.ID, "unknown step type %q", step.Type)
	}
}

func configString(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func configBool(cfg map[string]any, key string) bool {
	b, _ := cfg[key].(bool)
	return b
}

func configInt(cfg map[string]any, key string, def int) int {
	f, ok := coerce.ToFloat64(cfg[key])
	if !ok {
		return def
	}
	return int(f)
}

func readSource(ctx context.Context, store *storage.Storage, step domain.Step, key string) ([]record.Record, error) {
	name := configString(step.Config, key)
	if name == "" {
		return nil, stepErr(step.ID, "missing %q", key)
	}
	rows, err := store.FindAllRecords(ctx, name)
	if err != nil {
		return nil, stepErr(step.ID, "read %s: %v", name, err)
	}
	return rows, nil
}

func writeOutput(ctx context.Context, store *storage.Storage, step domain.Step, rows []record.Record) (Outcome, error) {
	out := configString(step.Config, "output")
	if out == "" {
		return Outcome{}, stepErr(step.ID, "missing %q", "output")
	}
	if err := store.ReplaceAll(ctx, out, rows); err != nil {
		return Outcome{}, stepErr(step.ID, "write %s: %v", out, err)
	}
	fresh, err := store.FindAllRecords(ctx, out)
	if err != nil {
		return Outcome{}, stepErr(step.ID, "read back %s: %v", out, err)
	}
	return Outcome{OutputRows: len(fresh), OutputCollection: out}, nil
}

// --- filter ---

type fieldCondition struct {
	Field string          `json:"field"`
	Op    condition.CompareOp `json:"op"`
	Value any             `json:"value"`
}

func executeFilter(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	conds := decodeConditions(step.Config["conditions"])
	mode, _ := step.Config["mode"].(string)
	matchAll := mode != "or"

	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		if matchFilterConditions(row, conds, matchAll) {
			out = append(out, row)
		}
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

func decodeConditions(raw any) []fieldCondition {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	conds := make([]fieldCondition, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		conds = append(conds, fieldCondition{
			Field: configString(m, "field"),
			Op:    condition.CompareOp(configString(m, "op")),
			Value: m["value"],
		})
	}
	return conds
}

func matchFilterConditions(row record.Record, conds []fieldCondition, matchAll bool) bool {
	if len(conds) == 0 {
		return true
	}
	for _, c := range conds {
		ok := matchFilterCondition(row, c)
		if matchAll && !ok {
			return false
		}
		if !matchAll && ok {
			return true
		}
	}
	return matchAll
}

func matchFilterCondition(row record.Record, c fieldCondition) bool {
	val := pathutil.Resolve(row, c.Field)
	switch c.Op {
	case "in":
		return containsAny(c.Value, val)
	case "notIn":
		return !containsAny(c.Value, val)
	case "exists":
		return pathutil.Exists(row, c.Field)
	case "isNull":
		return val == nil
	case "regex":
		return matchesRegex(coerce.ToString(val), coerce.ToString(c.Value))
	default:
		return condition.Compare(val, c.Op, c.Value)
	}
}

func containsAny(list any, val any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if condition.Compare(val, condition.OpEq, item) {
			return true
		}
	}
	return false
}

// --- map ---

type projection struct {
	Target     string          `json:"target"`
	Expression exprJSON        `json:"expression"`
}

func executeMap(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	includeOriginal := configBool(step.Config, "includeOriginal")
	projections := decodeProjections(step.Config["fields"])

	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		var result record.Record
		if includeOriginal {
			result = row.Clone()
		} else {
			result = record.Record{}
			if row.ID() != "" {
				result["id"] = row.ID()
			}
		}
		for _, p := range projections {
			result[p.Target] = evalMapExpression(p.Expression, row)
		}
		out = append(out, result)
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

func decodeProjections(raw any) []projection {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]projection, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, projection{Target: configString(m, "target"), Expression: exprJSON(m["expression"])})
	}
	return out
}

// exprJSON is a minimal {field|value|concat} expression shape kept local to
// the step executor: the full exprlang tree lives one layer up (action
// inputs, workflow conditions); map projections only need field lookup,
// literals, and string concatenation, so this avoids importing exprlang's
// heavier Expr just to move a handful of values around.
type exprJSON any

func evalMapExpression(e exprJSON, row record.Record) any {
	m, ok := e.(map[string]any)
	if !ok {
		return e
	}
	kind, _ := m["kind"].(string)
	switch kind {
	case "field":
		return pathutil.Resolve(row, configString(m, "path"))
	case "literal":
		return m["value"]
	case "concat":
		parts, _ := m["parts"].([]any)
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(coerce.ToString(evalMapExpression(part, row)))
		}
		return b.String()
	default:
		return nil
	}
}

func matchesRegex(value, pattern string) bool {
	return condition.Compare(value, condition.OpMatches, pattern)
}
