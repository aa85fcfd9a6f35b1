// Package storage provides pagination and multi-field sorting over the
// record rows the engine's in-process Storage returns. The engines
// themselves filter through internal/app/storage.Filter; this package only
// orders and pages an already-filtered slice, the shape an enginectl list
// command presents to a caller.
package storage

import (
	"sort"

	"github.com/flowlayer/enginecore/internal/app/coerce"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
)

// Pagination holds pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// DefaultPagination returns default pagination settings.
func DefaultPagination() Pagination {
	return Pagination{
		Limit:  50,
		Offset: 0,
	}
}

// Normalize clamps Limit to (0, maxLimit] and floors Offset at zero.
func (p Pagination) Normalize(maxLimit int) Pagination {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListResult wraps a page of items with pagination metadata.
type ListResult[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// Paginate slices items per p, reporting the pre-slice length as Total.
func Paginate[T any](items []T, p Pagination) ListResult[T] {
	total := int64(len(items))
	start := p.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]
	return ListResult[T]{
		Items:   page,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: int64(end) < total,
	}
}

// SortOrder represents a sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort names one field and direction within a multi-key sort.
type Sort struct {
	Field string
	Order SortOrder
}

// SortSet is an ordered list of sort keys, applied left to right as
// tie-breakers.
type SortSet []Sort

// Asc appends an ascending sort key.
func (ss *SortSet) Asc(field string) { *ss = append(*ss, Sort{Field: field, Order: SortAsc}) }

// Desc appends a descending sort key.
func (ss *SortSet) Desc(field string) { *ss = append(*ss, Sort{Field: field, Order: SortDesc}) }

// SortRecords orders rows in place per sorts, resolving each key through
// the same dotted-path rules the Storage filter grammar uses, and returns
// rows for chaining.
func SortRecords(rows []record.Record, sorts SortSet) []record.Record {
	if len(sorts) == 0 {
		return rows
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range sorts {
			left := pathutil.Resolve(rows[i], key.Field)
			right := pathutil.Resolve(rows[j], key.Field)
			cmp := compareValues(left, right)
			if cmp == 0 {
				continue
			}
			if key.Order == SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return rows
}

// compareValues orders two resolved field values, preferring numeric
// comparison and falling back to lexical string comparison.
func compareValues(left, right any) int {
	if lf, lok := coerce.ToFloat64(left); lok {
		if rf, rok := coerce.ToFloat64(right); rok {
			switch {
			case lf < rf:
				return -1
			case lf > rf:
				return 1
			default:
				return 0
			}
		}
	}
	ls, rs := coerce.ToString(left), coerce.ToString(right)
	switch {
	case ls < rs:
		return -1
	case ls > rs:
		return 1
	default:
		return 0
	}
}
