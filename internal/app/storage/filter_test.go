package storage

import (
	"testing"

	"github.com/flowlayer/enginecore/internal/app/record"
)

func TestMatchesEqAndNe(t *testing.T) {
	rec := record.Record{"status": "active"}
	if !Matches(rec, Filter{Field: "status", Op: FilterEq, Value: "active"}) {
		t.Fatalf("expected eq match")
	}
	if Matches(rec, Filter{Field: "status", Op: FilterNe, Value: "active"}) {
		t.Fatalf("expected ne mismatch")
	}
}

func TestMatchesNumericComparators(t *testing.T) {
	rec := record.Record{"total": 42.0}
	if !Matches(rec, Filter{Field: "total", Op: FilterGte, Value: 42.0}) {
		t.Fatalf("expected gte to pass")
	}
	if Matches(rec, Filter{Field: "total", Op: FilterLt, Value: 42.0}) {
		t.Fatalf("expected lt to fail")
	}
}

func TestMatchesInAndNin(t *testing.T) {
	rec := record.Record{"tags": []any{"a", "b"}}
	if !Matches(rec, Filter{Field: "tags", Op: FilterIn, Value: []any{"a"}}) {
		t.Fatalf("expected a to be found in tags")
	}
	if !Matches(rec, Filter{Field: "tags", Op: FilterNin, Value: []any{"z"}}) {
		t.Fatalf("expected z to be absent from tags")
	}
}

func TestMatchesBetweenIsInclusiveLowerExclusiveUpper(t *testing.T) {
	rec := record.Record{"createdAt": "2024-06-15T12:00:00Z"}
	f := Filter{
		Field: "createdAt", Op: FilterBetween,
		Value: "2024-06-15T12:00:00Z", Upper: "2024-06-15T13:00:00Z",
	}
	if !Matches(rec, f) {
		t.Fatalf("expected lower bound to be inclusive")
	}
	f.Value, f.Upper = "2024-06-15T11:00:00Z", "2024-06-15T12:00:00Z"
	if Matches(rec, f) {
		t.Fatalf("expected upper bound to be exclusive")
	}
}

func TestMatchesIsNullAndIsNotNull(t *testing.T) {
	rec := record.Record{"note": nil}
	if !Matches(rec, Filter{Field: "note", Op: FilterIsNull}) {
		t.Fatalf("expected absent note to satisfy isNull")
	}
	rec["note"] = "hi"
	if !Matches(rec, Filter{Field: "note", Op: FilterIsNotNull}) {
		t.Fatalf("expected present note to satisfy isNotNull")
	}
}

func TestMatchesRegex(t *testing.T) {
	rec := record.Record{"sku": "ABC-123"}
	if !Matches(rec, Filter{Field: "sku", Op: FilterRegex, Value: `^ABC-\d+$`}) {
		t.Fatalf("expected sku to match pattern")
	}
}

func TestMatchesAndOrCombinators(t *testing.T) {
	rec := record.Record{"status": "active", "total": 150.0}
	tree := Filter{And: []Filter{
		{Field: "status", Op: FilterEq, Value: "active"},
		{Or: []Filter{
			{Field: "total", Op: FilterGte, Value: 200.0},
			{Field: "total", Op: FilterGte, Value: 100.0},
		}},
	}}
	if !Matches(rec, tree) {
		t.Fatalf("expected combined and/or filter to match")
	}
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	if !Matches(record.Record{}, Filter{}) {
		t.Fatalf("expected zero-value filter to match")
	}
}
