package storage

import (
	"github.com/flowlayer/enginecore/internal/app/coerce"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
)

// AggregateOp enumerates the per-field reduction functions Aggregate
// supports.
type AggregateOp string

const (
	AggCount         AggregateOp = "count"
	AggCountDistinct AggregateOp = "countDistinct"
	AggSum           AggregateOp = "sum"
	AggAvg           AggregateOp = "avg"
	AggMin           AggregateOp = "min"
	AggMax           AggregateOp = "max"
	AggFirst         AggregateOp = "first"
	AggLast          AggregateOp = "last"
	AggCollect       AggregateOp = "collect"
)

// Aggregation names one reduction to compute and the output field to store
// it under.
type Aggregation struct {
	Field string
	Op    AggregateOp
	As    string
}

// AggregateOptions groups rows by GroupBy (empty means a single implicit
// group) and reduces them per Aggregations.
type AggregateOptions struct {
	Filter       Filter
	GroupBy      []string
	Aggregations []Aggregation
}

// Aggregate is the backend-agnostic reduction shared by every RecordStore
// implementation: each backend resolves its rows, then delegates here.
// With an empty GroupBy, exactly one output row is emitted even for an
// empty input (count=0, sum=0, avg=0, min/max/first/last=nil).
func Aggregate(rows []record.Record, opts AggregateOptions) []record.Record {
	groups := map[string][]record.Record{}
	order := []string{}
	keyOf := func(r record.Record) string {
		if len(opts.GroupBy) == 0 {
			return ""
		}
		key := ""
		for _, field := range opts.GroupBy {
			key += "\x1f" + coerce.ToString(fieldValue(r, field))
		}
		return key
	}
	for _, r := range rows {
		if !Matches(r, opts.Filter) {
			continue
		}
		k := keyOf(r)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	if len(opts.GroupBy) == 0 && len(order) == 0 {
		order = append(order, "")
		groups[""] = nil
	}

	out := make([]record.Record, 0, len(order))
	for _, k := range order {
		members := groups[k]
		row := record.Record{}
		if len(members) > 0 {
			for _, field := range opts.GroupBy {
				row[field] = fieldValue(members[0], field)
			}
		}
		for _, agg := range opts.Aggregations {
			row[agg.As] = reduce(members, agg)
		}
		out = append(out, row)
	}
	return out
}

func fieldValue(r record.Record, field string) any {
	return pathutil.Resolve(r, field)
}

func reduce(rows []record.Record, agg Aggregation) any {
	switch agg.Op {
	case AggCount:
		return float64(len(rows))
	case AggSum:
		sum := 0.0
		for _, r := range rows {
			if v, ok := coerce.ToFloat64(fieldValue(r, agg.Field)); ok {
				sum += v
			}
		}
		return sum
	case AggAvg:
		if len(rows) == 0 {
			return 0.0
		}
		sum := 0.0
		n := 0
		for _, r := range rows {
			if v, ok := coerce.ToFloat64(fieldValue(r, agg.Field)); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return 0.0
		}
		return sum / float64(n)
	case AggMin:
		var min *float64
		for _, r := range rows {
			if v, ok := coerce.ToFloat64(fieldValue(r, agg.Field)); ok {
				if min == nil || v < *min {
					vv := v
					min = &vv
				}
			}
		}
		if min == nil {
			return nil
		}
		return *min
	case AggMax:
		var max *float64
		for _, r := range rows {
			if v, ok := coerce.ToFloat64(fieldValue(r, agg.Field)); ok {
				if max == nil || v > *max {
					vv := v
					max = &vv
				}
			}
		}
		if max == nil {
			return nil
		}
		return *max
	case AggFirst:
		if len(rows) == 0 {
			return nil
		}
		return fieldValue(rows[0], agg.Field)
	case AggLast:
		if len(rows) == 0 {
			return nil
		}
		return fieldValue(rows[len(rows)-1], agg.Field)
	case AggCountDistinct:
		seen := map[string]bool{}
		for _, r := range rows {
			seen[coerce.ToString(fieldValue(r, agg.Field))] = true
		}
		return float64(len(seen))
	case AggCollect:
		values := make([]any, 0, len(rows))
		for _, r := range rows {
			values = append(values, fieldValue(r, agg.Field))
		}
		return values
	default:
		return nil
	}
}
