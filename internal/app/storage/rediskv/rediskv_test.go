package rediskv

import "testing"

func TestKeyNamespacing(t *testing.T) {
	s := New(nil, "")
	if got := s.recordKey("orders", "o1"); got != "enginecore:orders:record:o1" {
		t.Fatalf("unexpected record key: %q", got)
	}
	if got := s.indexKey("orders"); got != "enginecore:orders:ids" {
		t.Fatalf("unexpected index key: %q", got)
	}
}

func TestCustomPrefixIsRespected(t *testing.T) {
	s := New(nil, "custom")
	if got := s.recordKey("orders", "o1"); got != "custom:orders:record:o1" {
		t.Fatalf("unexpected record key: %q", got)
	}
}
