// Package pathutil resolves and writes dot/bracket addressed paths against a
// record.Record, grounded on the teacher's use of github.com/tidwall/gjson
// for JSON path queries, paired with github.com/tidwall/sjson for writes.
//
// Path syntax: dot-separated segments (a.b.c) and bracketed numeric indexes
// (items[0].name). A missing segment yields an absent value, never an
// error — this package reports absence as (nil, false) rather than panic
// or error, matching the expression evaluator's contract.
package pathutil

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/flowlayer/enginecore/internal/app/record"
)

// Normalize rewrites bracket-index segments (items[0].name) into the
// dot-index form gjson/sjson expect (items.0.name).
func Normalize(path string) string {
	if !strings.ContainsAny(path, "[]") {
		return path
	}
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			b.WriteByte('.')
		case ']':
			// skip; the following '.' (if any) is collapsed naturally
		default:
			b.WriteByte(path[i])
		}
	}
	out := b.String()
	out = strings.ReplaceAll(out, "..", ".")
	return strings.Trim(out, ".")
}

// Get resolves path against rec. ok is false when any segment is absent or
// traverses through a non-object/non-array value.
func Get(rec record.Record, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	data, err := json.Marshal(map[string]any(rec))
	if err != nil {
		return nil, false
	}
	result := gjson.GetBytes(data, Normalize(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// Resolve is Get without the existence flag: absent values resolve to nil.
func Resolve(rec record.Record, path string) any {
	v, _ := Get(rec, path)
	return v
}

// Set returns a new record with value written at path, creating
// intermediate objects/arrays as needed. A purely numeric path segment
// creates an array at that level rather than an object.
func Set(rec record.Record, path string, value any) (record.Record, error) {
	data, err := json.Marshal(map[string]any(rec))
	if err != nil {
		return nil, err
	}
	updated, err := sjson.SetBytes(data, Normalize(path), value)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(updated, &out); err != nil {
		return nil, err
	}
	return record.Record(out), nil
}

// Exists reports whether path resolves to any value (including explicit
// null) within rec.
func Exists(rec record.Record, path string) bool {
	_, ok := Get(rec, path)
	return ok
}
