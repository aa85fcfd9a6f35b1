package condition

import "testing"

func TestEvaluateAndShortCircuits(t *testing.T) {
	tree := And(AtomNode(false), AtomNode(true))
	evalCount := 0
	result := Evaluate(tree, func(b bool) bool {
		evalCount++
		return b
	})
	if result {
		t.Fatalf("expected false")
	}
	if evalCount != 1 {
		t.Fatalf("expected short-circuit after first atom, got %d evaluations", evalCount)
	}
}

func TestEvaluateOrShortCircuits(t *testing.T) {
	evalCount := 0
	tree := Or(AtomNode(true), AtomNode(false))
	result := Evaluate(tree, func(b bool) bool {
		evalCount++
		return b
	})
	if !result {
		t.Fatalf("expected true")
	}
	if evalCount != 1 {
		t.Fatalf("expected short-circuit after first atom, got %d evaluations", evalCount)
	}
}

func TestEvaluateNotInverts(t *testing.T) {
	tree := Not(AtomNode(true))
	if Evaluate(tree, func(b bool) bool { return b }) {
		t.Fatalf("expected false")
	}
}

func TestEvaluateEmptyAndIsVacuouslyTrue(t *testing.T) {
	tree := And[bool]()
	if !Evaluate(tree, func(b bool) bool { return b }) {
		t.Fatalf("expected empty and to be true")
	}
}

func TestEvaluateEmptyOrIsVacuouslyFalse(t *testing.T) {
	tree := Or[bool]()
	if Evaluate(tree, func(b bool) bool { return b }) {
		t.Fatalf("expected empty or to be false")
	}
}
