package transform

import (
	"context"
	"sort"
	"strings"

	"github.com/flowlayer/enginecore/internal/app/coerce"
	"github.com/flowlayer/enginecore/internal/app/condition"
	domain "github.com/flowlayer/enginecore/internal/app/domain/transform"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

// --- aggregate ---

func executeAggregate(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	groupBy := stringList(step.Config["groupBy"])
	aggs := decodeAggregations(step.Config["aggregations"])

	opts := storage.AggregateOptions{GroupBy: groupBy, Aggregations: aggs}
	grouped := storage.Aggregate(rows, opts)

	having := decodeConditions(step.Config["having"])
	out := make([]record.Record, 0, len(grouped))
	for _, row := range grouped {
		if matchFilterConditions(row, having, true) {
			out = append(out, row)
		}
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

func stringList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func decodeAggregations(raw any) []storage.Aggregation {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]storage.Aggregation, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, storage.Aggregation{
			Field: configString(m, "field"),
			Op:    storage.AggregateOp(configString(m, "function")),
			As:    configString(m, "as"),
		})
	}
	return out
}

// --- join ---

func executeJoin(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	left, err := readSource(ctx, store, step, "left")
	if err != nil {
		return Outcome{}, err
	}
	right, err := readSource(ctx, store, step, "right")
	if err != nil {
		return Outcome{}, err
	}
	pairs := decodeJoinFields(step.Config["on"])
	if len(pairs) == 0 {
		return Outcome{}, stepErr(step.ID, "join requires at least one (leftField, rightField) pair")
	}
	joinType := configString(step.Config, "type")
	if joinType == "" {
		joinType = "inner"
	}
	leftPrefix := configString(step.Config, "leftPrefix")
	rightPrefix := configString(step.Config, "rightPrefix")

	index := map[string][]record.Record{}
	for _, r := range right {
		key := joinKey(r, pairs, false)
		index[key] = append(index[key], r)
	}

	matchedRight := map[int]bool{}
	out := make([]record.Record, 0, len(left))
	for _, l := range left {
		key := joinKey(l, pairs, true)
		matches := index[key]
		if len(matches) == 0 {
			if joinType == "left" || joinType == "full" {
				out = append(out, mergeJoinRow(l, nil, leftPrefix, rightPrefix))
			}
			continue
		}
		for i, r := range matches {
			_ = i
			out = append(out, mergeJoinRow(l, r, leftPrefix, rightPrefix))
		}
	}
	if joinType == "right" || joinType == "full" {
		for _, r := range right {
			key := joinKey(r, pairs, false)
			hasMatch := false
			for _, l := range left {
				if joinKey(l, pairs, true) == key {
					hasMatch = true
					break
				}
			}
			if !hasMatch {
				out = append(out, mergeJoinRow(nil, r, leftPrefix, rightPrefix))
			}
			_ = matchedRight
		}
	}

	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(left) + len(right)
	return outcome, err
}

type joinFieldPair struct {
	Left  string `json:"leftField"`
	Right string `json:"rightField"`
}

func decodeJoinFields(raw any) []joinFieldPair {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]joinFieldPair, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, joinFieldPair{Left: configString(m, "leftField"), Right: configString(m, "rightField")})
	}
	return out
}

func joinKey(row record.Record, pairs []joinFieldPair, left bool) string {
	var b strings.Builder
	for _, p := range pairs {
		field := p.Right
		if left {
			field = p.Left
		}
		b.WriteString(coerce.ToString(pathutil.Resolve(row, field)))
		b.WriteByte('\x1f')
	}
	return b.String()
}

func mergeJoinRow(left, right record.Record, leftPrefix, rightPrefix string) record.Record {
	out := record.Record{}
	if left != nil {
		for k, v := range left {
			key := k
			if k == "id" {
				key = idKey(leftPrefix, "left_id")
			} else if leftPrefix != "" {
				key = leftPrefix + k
			}
			out[key] = record.CloneValue(v)
		}
	}
	if right != nil {
		for k, v := range right {
			key := k
			if k == "id" {
				key = idKey(rightPrefix, "right_id")
			} else if rightPrefix != "" {
				key = rightPrefix + k
			}
			out[key] = record.CloneValue(v)
		}
	}
	return out
}

func idKey(prefix, fallback string) string {
	if prefix == "" {
		return fallback
	}
	return prefix + "id"
}

// --- lookup ---

func executeLookup(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	from := configString(step.Config, "from")
	if from == "" {
		return Outcome{}, stepErr(step.ID, "missing %q", "from")
	}
	fromRows, err := store.FindAllRecords(ctx, from)
	if err != nil {
		return Outcome{}, stepErr(step.ID, "read %s: %v", from, err)
	}
	localField := configString(step.Config, "localField")
	foreignField := configString(step.Config, "foreignField")
	as := configString(step.Config, "as")
	multiple := configBool(step.Config, "multiple")

	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		localVal := pathutil.Resolve(row, localField)
		var matches []any
		for _, f := range fromRows {
			if condition.Compare(localVal, condition.OpEq, pathutil.Resolve(f, foreignField)) {
				matches = append(matches, map[string]any(f.Clone()))
			}
		}
		result := row.Clone()
		if multiple {
			result[as] = matches
		} else if len(matches) > 0 {
			result[as] = matches[0]
		}
		out = append(out, result)
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

// --- union ---

func executeUnion(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	sources := stringList(step.Config["sources"])
	var all []record.Record
	for _, name := range sources {
		rows, err := store.FindAllRecords(ctx, name)
		if err != nil {
			return Outcome{}, stepErr(step.ID, "read %s: %v", name, err)
		}
		all = append(all, rows...)
	}
	input := len(all)

	mode := configString(step.Config, "mode")
	if mode == "distinct" {
		keys := stringList(step.Config["distinctKeys"])
		seen := map[string]bool{}
		out := make([]record.Record, 0, len(all))
		for _, row := range all {
			key := keyOf(row, keys)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, row)
		}
		all = out
	}

	outcome, err := writeOutput(ctx, store, step, all)
	outcome.InputRows = input
	return outcome, err
}

func keyOf(row record.Record, fields []string) string {
	if len(fields) == 0 {
		return coerce.ToString(map[string]any(row))
	}
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(coerce.ToString(pathutil.Resolve(row, f)))
		b.WriteByte('\x1f')
	}
	return b.String()
}

// --- deduplicate ---

func executeDeduplicate(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	keys := stringList(step.Config["keys"])
	keep := configString(step.Config, "keep")
	if keep == "" {
		keep = "first"
	}

	ordered := rows
	if orderBy := decodeSortFields(step.Config["orderBy"]); len(orderBy) > 0 {
		ordered = sortRows(rows, orderBy)
	}

	seenAt := map[string]int{}
	order := make([]string, 0, len(ordered))
	byKey := map[string]record.Record{}
	for _, row := range ordered {
		key := keyOf(row, keys)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		if keep == "last" {
			byKey[key] = row
		} else if _, ok := byKey[key]; !ok {
			byKey[key] = row
		}
		seenAt[key]++
	}
	out := make([]record.Record, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

// --- sort ---

type sortField struct {
	Field string `json:"field"`
	Desc  bool
	Nulls string
}

func decodeSortFields(raw any) []sortField {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]sortField, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		dir := configString(m, "direction")
		if dir == "" {
			dir = "asc"
		}
		nulls := configString(m, "nulls")
		if nulls == "" {
			nulls = "last"
		}
		out = append(out, sortField{Field: configString(m, "field"), Desc: dir == "desc", Nulls: nulls})
	}
	return out
}

func executeSort(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	fields := decodeSortFields(step.Config["orderBy"])
	out := sortRows(rows, fields)
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

func sortRows(rows []record.Record, fields []sortField) []record.Record {
	out := make([]record.Record, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		for _, f := range fields {
			cmp := compareField(out[i], out[j], f)
			if cmp != 0 {
				if f.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})
	return out
}

func compareField(a, b record.Record, f sortField) int {
	av := pathutil.Resolve(a, f.Field)
	bv := pathutil.Resolve(b, f.Field)
	if av == nil || bv == nil {
		if av == nil && bv == nil {
			return 0
		}
		nullsFirst := f.Nulls == "first"
		if av == nil {
			if nullsFirst {
				return -1
			}
			return 1
		}
		if nullsFirst {
			return 1
		}
		return -1
	}
	if af, aok := coerce.ToFloat64(av); aok {
		if bf, bok := coerce.ToFloat64(bv); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := coerce.ToString(av), coerce.ToString(bv)
	return strings.Compare(as, bs)
}

// --- limit ---

func executeLimit(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	offset := configInt(step.Config, "offset", 0)
	limit := configInt(step.Config, "limit", len(rows))
	out := sliceWindow(rows, offset, limit)
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

func sliceWindow(rows []record.Record, offset, limit int) []record.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if limit < 0 || end > len(rows) {
		end = len(rows)
	}
	out := make([]record.Record, end-offset)
	copy(out, rows[offset:end])
	return out
}

// --- pivot ---

func executePivot(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	groupBy := stringList(step.Config["groupBy"])
	pivotField := configString(step.Config, "pivotField")
	aggCfg, _ := step.Config["aggregation"].(map[string]any)
	aggField := configString(aggCfg, "field")
	aggOp := storage.AggregateOp(configString(aggCfg, "function"))

	type bucketKey struct {
		group  string
		bucket string
	}
	groups := map[string]record.Record{}
	order := []string{}
	values := map[bucketKey][]float64{}

	for _, row := range rows {
		groupKey := keyOf(row, groupBy)
		if _, ok := groups[groupKey]; !ok {
			groups[groupKey] = groupRowFields(row, groupBy)
			order = append(order, groupKey)
		}
		bucket := coerce.ToString(pathutil.Resolve(row, pivotField))
		if bucket == "" {
			bucket = "null"
		}
		if f, ok := coerce.ToFloat64(pathutil.Resolve(row, aggField)); ok {
			values[bucketKey{groupKey, bucket}] = append(values[bucketKey{groupKey, bucket}], f)
		} else {
			values[bucketKey{groupKey, bucket}] = append(values[bucketKey{groupKey, bucket}], 0)
		}
	}

	out := make([]record.Record, 0, len(order))
	for _, groupKey := range order {
		result := groups[groupKey].Clone()
		for key, vals := range values {
			if key.group != groupKey {
				continue
			}
			result[key.bucket] = reducePivotBucket(aggOp, vals)
		}
		out = append(out, result)
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

func groupRowFields(row record.Record, fields []string) record.Record {
	out := record.Record{}
	for _, f := range fields {
		out[f] = pathutil.Resolve(row, f)
	}
	return out
}

func reducePivotBucket(op storage.AggregateOp, vals []float64) float64 {
	switch op {
	case storage.AggCount:
		return float64(len(vals))
	case storage.AggAvg:
		if len(vals) == 0 {
			return 0
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	case storage.AggMin:
		min := vals[0]
		for _, v := range vals {
			if v < min {
				min = v
			}
		}
		return min
	case storage.AggMax:
		max := vals[0]
		for _, v := range vals {
			if v > max {
				max = v
			}
		}
		return max
	default:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum
	}
}

// --- unpivot ---

func executeUnpivot(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	idFields := stringList(step.Config["idFields"])
	unpivotFields := stringList(step.Config["unpivotFields"])
	nameField := configString(step.Config, "nameField")
	valueField := configString(step.Config, "valueField")

	out := make([]record.Record, 0, len(rows)*len(unpivotFields))
	for _, row := range rows {
		for _, field := range unpivotFields {
			result := groupRowFields(row, idFields)
			result[nameField] = field
			result[valueField] = pathutil.Resolve(row, field)
			out = append(out, result)
		}
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}

// --- flatten ---

func executeFlatten(ctx context.Context, store *storage.Storage, step domain.Step) (Outcome, error) {
	rows, err := readSource(ctx, store, step, "source")
	if err != nil {
		return Outcome{}, err
	}
	field := configString(step.Config, "field")
	as := configString(step.Config, "as")
	if as == "" {
		as = field
	}
	preserveEmpty := configBool(step.Config, "preserveEmpty")

	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		items, ok := pathutil.Resolve(row, field).([]any)
		if !ok || len(items) == 0 {
			if preserveEmpty {
				result := row.Clone()
				delete(result, field)
				if as != field {
					result[as] = nil
				} else {
					result[field] = nil
				}
				out = append(out, result)
			}
			continue
		}
		for _, item := range items {
			result := row.Clone()
			if as != field {
				delete(result, field)
			}
			result[as] = item
			out = append(out, result)
		}
	}
	outcome, err := writeOutput(ctx, store, step, out)
	outcome.InputRows = len(rows)
	return outcome, err
}
