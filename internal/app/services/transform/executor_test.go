package transform

import (
	"context"
	"testing"

	domain "github.com/flowlayer/enginecore/internal/app/domain/transform"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
	"github.com/flowlayer/enginecore/internal/app/storage/memory"
)

func newStore(t *testing.T) *storage.Storage {
	t.Helper()
	return storage.New(memory.New())
}

func seed(t *testing.T, store *storage.Storage, collection string, rows ...record.Record) {
	t.Helper()
	if err := store.ReplaceAll(context.Background(), collection, rows); err != nil {
		t.Fatalf("seed %s: %v", collection, err)
	}
}

func TestExecuteFilterRetainsMatchingRecords(t *testing.T) {
	store := newStore(t)
	seed(t, store, "orders",
		record.Record{"status": "completed", "amount": 10.0},
		record.Record{"status": "pending", "amount": 20.0},
	)
	step := domain.Step{ID: "s1", Type: domain.StepFilter, Config: map[string]any{
		"source": "orders", "output": "out",
		"conditions": []any{map[string]any{"field": "status", "op": "==", "value": "completed"}},
	}}
	outcome, err := Execute(context.Background(), store, step)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.InputRows != 2 || outcome.OutputRows != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestExecuteMapProjectsFields(t *testing.T) {
	store := newStore(t)
	seed(t, store, "src", record.Record{"id": "r1", "name": "alice"})
	step := domain.Step{ID: "s1", Type: domain.StepMap, Config: map[string]any{
		"source": "src", "output": "out",
		"fields": []any{map[string]any{
			"target":     "greeting",
			"expression": map[string]any{"kind": "concat", "parts": []any{"hello ", map[string]any{"kind": "field", "path": "name"}}},
		}},
	}}
	if _, err := Execute(context.Background(), store, step); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "out")
	if len(rows) != 1 || rows[0]["greeting"] != "hello alice" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestExecuteAggregateGroupsByField(t *testing.T) {
	store := newStore(t)
	seed(t, store, "orders",
		record.Record{"region": "North", "amount": 100.0},
		record.Record{"region": "North", "amount": 150.0},
		record.Record{"region": "South", "amount": 200.0},
	)
	step := domain.Step{ID: "s1", Type: domain.StepAggregate, Config: map[string]any{
		"source": "orders", "output": "out",
		"groupBy":      []any{"region"},
		"aggregations": []any{map[string]any{"field": "amount", "function": "sum", "as": "total"}},
	}}
	if _, err := Execute(context.Background(), store, step); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "out")
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
}

func TestExecuteJoinInnerProducesRegionalSales(t *testing.T) {
	store := newStore(t)
	seed(t, store, "orders",
		record.Record{"customerId": "c1", "amount": 100.0, "status": "completed"},
		record.Record{"customerId": "c1", "amount": 150.0, "status": "completed"},
		record.Record{"customerId": "c2", "amount": 200.0, "status": "pending"},
		record.Record{"customerId": "c3", "amount": 75.0, "status": "completed"},
	)
	seed(t, store, "customers",
		record.Record{"id": "c1", "region": "North"},
		record.Record{"id": "c2", "region": "South"},
		record.Record{"id": "c3", "region": "North"},
	)

	filterStep := domain.Step{ID: "filter", Type: domain.StepFilter, Config: map[string]any{
		"source": "orders", "output": "_temp_filtered",
		"conditions": []any{map[string]any{"field": "status", "op": "==", "value": "completed"}},
	}}
	if _, err := Execute(context.Background(), store, filterStep); err != nil {
		t.Fatalf("filter: %v", err)
	}

	joinStep := domain.Step{ID: "join", Type: domain.StepJoin, Config: map[string]any{
		"left": "_temp_filtered", "right": "customers", "output": "_temp_joined",
		"type": "inner",
		"on":   []any{map[string]any{"leftField": "customerId", "rightField": "id"}},
	}}
	if _, err := Execute(context.Background(), store, joinStep); err != nil {
		t.Fatalf("join: %v", err)
	}

	aggStep := domain.Step{ID: "agg", Type: domain.StepAggregate, Config: map[string]any{
		"source": "_temp_joined", "output": "out",
		"groupBy": []any{"region"},
		"aggregations": []any{
			map[string]any{"field": "amount", "function": "sum", "as": "totalSales"},
			map[string]any{"function": "count", "as": "orderCount"},
		},
	}}
	if _, err := Execute(context.Background(), store, aggStep); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	rows, _ := store.FindAllRecords(context.Background(), "out")
	if len(rows) != 1 {
		t.Fatalf("expected exactly one region row, got %+v", rows)
	}
	if rows[0]["region"] != "North" || rows[0]["totalSales"] != 325.0 || rows[0]["orderCount"] != 3.0 {
		t.Fatalf("unexpected regional row: %+v", rows[0])
	}
}

func TestExecuteSortIsStableAndHandlesNulls(t *testing.T) {
	store := newStore(t)
	seed(t, store, "src",
		record.Record{"v": 2.0},
		record.Record{"v": nil},
		record.Record{"v": 1.0},
	)
	step := domain.Step{ID: "s1", Type: domain.StepSort, Config: map[string]any{
		"source": "src", "output": "out",
		"orderBy": []any{map[string]any{"field": "v", "direction": "asc", "nulls": "last"}},
	}}
	if _, err := Execute(context.Background(), store, step); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "out")
	if rows[0]["v"] != 1.0 || rows[1]["v"] != 2.0 || rows[2]["v"] != nil {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestExecuteLimitTakesWindow(t *testing.T) {
	store := newStore(t)
	seed(t, store, "src",
		record.Record{"v": 1.0}, record.Record{"v": 2.0}, record.Record{"v": 3.0},
	)
	step := domain.Step{ID: "s1", Type: domain.StepLimit, Config: map[string]any{
		"source": "src", "output": "out", "offset": 1.0, "limit": 1.0,
	}}
	if _, err := Execute(context.Background(), store, step); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "out")
	if len(rows) != 1 || rows[0]["v"] != 2.0 {
		t.Fatalf("unexpected window: %+v", rows)
	}
}

func TestExecuteFlattenEmitsOneRowPerElement(t *testing.T) {
	store := newStore(t)
	seed(t, store, "src", record.Record{"tags": []any{"a", "b"}})
	step := domain.Step{ID: "s1", Type: domain.StepFlatten, Config: map[string]any{
		"source": "src", "output": "out", "field": "tags",
	}}
	if _, err := Execute(context.Background(), store, step); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "out")
	if len(rows) != 2 || rows[0]["tags"] != "a" || rows[1]["tags"] != "b" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestExecuteUnpivotEmitsNameValueRows(t *testing.T) {
	store := newStore(t)
	seed(t, store, "src", record.Record{"id": "r1", "jan": 10.0, "feb": 20.0})
	step := domain.Step{ID: "s1", Type: domain.StepUnpivot, Config: map[string]any{
		"source": "src", "output": "out",
		"idFields": []any{"id"}, "unpivotFields": []any{"jan", "feb"},
		"nameField": "month", "valueField": "amount",
	}}
	if _, err := Execute(context.Background(), store, step); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "out")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
}

func TestExecuteDeduplicateKeepsFirstByDefault(t *testing.T) {
	store := newStore(t)
	seed(t, store, "src",
		record.Record{"k": "a", "v": 1.0},
		record.Record{"k": "a", "v": 2.0},
		record.Record{"k": "b", "v": 3.0},
	)
	step := domain.Step{ID: "s1", Type: domain.StepDeduplicate, Config: map[string]any{
		"source": "src", "output": "out", "keys": []any{"k"},
	}}
	if _, err := Execute(context.Background(), store, step); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "out")
	if len(rows) != 2 {
		t.Fatalf("expected 2 deduplicated rows, got %+v", rows)
	}
}
