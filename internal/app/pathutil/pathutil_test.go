package pathutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flowlayer/enginecore/internal/app/record"
)

func TestGetDotPath(t *testing.T) {
	rec := record.Record{"a": map[string]any{"b": map[string]any{"c": 42.0}}}
	v, ok := Get(rec, "a.b.c")
	if !ok || v != 42.0 {
		t.Fatalf("expected 42, got %v (ok=%v)", v, ok)
	}
}

func TestGetBracketPath(t *testing.T) {
	rec := record.Record{"items": []any{
		map[string]any{"name": "first"},
		map[string]any{"name": "second"},
	}}
	v, ok := Get(rec, "items[1].name")
	if !ok || v != "second" {
		t.Fatalf("expected second, got %v (ok=%v)", v, ok)
	}
}

func TestGetMissingSegmentIsAbsent(t *testing.T) {
	rec := record.Record{"a": 1.0}
	if _, ok := Get(rec, "a.b.c"); ok {
		t.Fatalf("expected absent when traversing through a scalar")
	}
	if _, ok := Get(rec, "missing"); ok {
		t.Fatalf("expected absent for missing top-level key")
	}
}

func TestSetCreatesIntermediateObjects(t *testing.T) {
	rec := record.Record{}
	out, err := Set(rec, "a.b.c", "value")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok := Get(out, "a.b.c")
	if !ok || v != "value" {
		t.Fatalf("expected value, got %v (ok=%v)", v, ok)
	}
}

func TestSetCreatesArraysForNumericSegments(t *testing.T) {
	rec := record.Record{}
	out, err := Set(rec, "items[2].name", "third")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	items, ok := out["items"].([]any)
	if !ok {
		t.Fatalf("expected items to be an array, got %T", out["items"])
	}
	if len(items) != 3 {
		t.Fatalf("expected array length 3, got %d", len(items))
	}
	v, ok := Get(out, "items[2].name")
	if !ok || v != "third" {
		t.Fatalf("expected third, got %v (ok=%v)", v, ok)
	}
}

func TestSetDoesNotMutateOriginal(t *testing.T) {
	rec := record.Record{"a": 1.0}
	_, err := Set(rec, "b", 2.0)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if diff := cmp.Diff(record.Record{"a": 1.0}, rec); diff != "" {
		t.Fatalf("original record mutated (-want +got):\n%s", diff)
	}
}

func TestNormalizeBracketPaths(t *testing.T) {
	cases := map[string]string{
		"a.b.c":             "a.b.c",
		"items[0].name":     "items.0.name",
		"a[1][2].c":         "a.1.2.c",
		"items[0]":          "items.0",
		"plain":             "plain",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
