// Package idgen generates stable string identifiers for records, executions,
// pipeline runs, and other engine-created entities, grounded in the same
// google/uuid usage the teacher's account/secret services rely on.
package idgen

import "github.com/google/uuid"

// New returns a new random identifier suitable as a record's "id" field.
func New() string {
	return uuid.NewString()
}

// Prefixed returns a new identifier with a human-readable prefix, used for
// engine-internal entities (executions, runs) where a bare UUID is harder
// to eyeball in logs and history entries.
func Prefixed(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "_" + uuid.NewString()
}
