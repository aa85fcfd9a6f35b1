// Package condition implements the shared condition-tree shape used by both
// the discount dialect (minAmount, dateRange, ...) and the workflow dialect
// (compare, exists), combined by and/or/not with short-circuit evaluation.
//
// The two dialects share this generic combinator (Tree[A]/Evaluate) rather
// than duplicating and/or/not plumbing, the same way the teacher's
// pkg/storage/crud.go shares CRUDStore[T Entity] across every domain
// collection.
package condition

// Kind identifies a tree node's role.
type Kind string

const (
	KindAnd  Kind = "and"
	KindOr   Kind = "or"
	KindNot  Kind = "not"
	KindAtom Kind = "atom"
)

// Tree is a condition tree over a dialect-specific atom type A.
type Tree[A any] struct {
	Kind     Kind
	Children []Tree[A] // and/or
	Child    *Tree[A]  // not
	Atom     *A        // atom leaf
}

// And builds an "and" node.
func And[A any](children ...Tree[A]) Tree[A] {
	return Tree[A]{Kind: KindAnd, Children: children}
}

// Or builds an "or" node.
func Or[A any](children ...Tree[A]) Tree[A] {
	return Tree[A]{Kind: KindOr, Children: children}
}

// Not builds a "not" node.
func Not[A any](child Tree[A]) Tree[A] {
	return Tree[A]{Kind: KindNot, Child: &child}
}

// AtomNode builds a leaf node wrapping atom.
func AtomNode[A any](atom A) Tree[A] {
	return Tree[A]{Kind: KindAtom, Atom: &atom}
}

// Evaluate walks t, dispatching atom leaves to evalAtom, with short-circuit
// semantics for and/or: an empty "and" is vacuously true, an empty "or" is
// vacuously false.
func Evaluate[A any](t Tree[A], evalAtom func(A) bool) bool {
	switch t.Kind {
	case KindAnd:
		for _, c := range t.Children {
			if !Evaluate(c, evalAtom) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range t.Children {
			if Evaluate(c, evalAtom) {
				return true
			}
		}
		return false
	case KindNot:
		if t.Child == nil {
			return false
		}
		return !Evaluate(*t.Child, evalAtom)
	case KindAtom:
		if t.Atom == nil {
			return false
		}
		return evalAtom(*t.Atom)
	default:
		return false
	}
}
