package discount

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	domain "github.com/flowlayer/enginecore/internal/app/domain/discount"
)

func amounts(applied []Applied) []float64 {
	out := make([]float64, len(applied))
	for i, a := range applied {
		out[i] = a.Result.Amount
	}
	return out
}

func candidate(priority int, order int, amount float64, stacking domain.StackingBehavior, target domain.Target) Candidate {
	return Candidate{
		Discount: &domain.Discount{Priority: priority, Stacking: stacking, Target: target},
		Order:    order,
		Result:   &Result{Amount: amount},
	}
}

func TestSelectNonePicksGreatestAmount(t *testing.T) {
	candidates := []Candidate{
		candidate(1, 0, 5, domain.StackingStackable, domain.Target{Kind: domain.TargetCart}),
		candidate(1, 1, 15, domain.StackingStackable, domain.Target{Kind: domain.TargetCart}),
	}
	applied := SelectNone(candidates)
	if len(applied) != 1 || applied[0].Result.Amount != 15 {
		t.Fatalf("expected single greatest-amount candidate, got %#v", applied)
	}
}

func TestSelectAllAppliesEveryCandidate(t *testing.T) {
	candidates := []Candidate{
		candidate(2, 0, 5, domain.StackingStackable, domain.Target{Kind: domain.TargetCart}),
		candidate(1, 1, 15, domain.StackingStackable, domain.Target{Kind: domain.TargetCart}),
	}
	applied := SelectAll(candidates)
	if len(applied) != 2 {
		t.Fatalf("expected both candidates applied, got %#v", applied)
	}
	if diff := cmp.Diff([]float64{5, 15}, amounts(applied)); diff != "" {
		t.Fatalf("unexpected priority-descending order (-want +got):\n%s", diff)
	}
}

func TestSelectByPriorityStopsAfterExclusive(t *testing.T) {
	candidates := []Candidate{
		candidate(3, 0, 5, domain.StackingExclusive, domain.Target{Kind: domain.TargetCart}),
		candidate(2, 1, 5, domain.StackingStackable, domain.Target{Kind: domain.TargetCart}),
	}
	applied := SelectByPriority(candidates)
	if len(applied) != 1 {
		t.Fatalf("expected exclusive discount alone, got %#v", applied)
	}
}

func TestSelectByPrioritySkipsExclusiveByTargetCollision(t *testing.T) {
	target := domain.Target{Kind: domain.TargetProduct, IDs: []string{"p1"}}
	candidates := []Candidate{
		candidate(3, 0, 5, domain.StackingExclusiveByTarget, target),
		candidate(2, 1, 5, domain.StackingExclusiveByTarget, target),
	}
	applied := SelectByPriority(candidates)
	if len(applied) != 1 {
		t.Fatalf("expected only the higher priority target winner, got %#v", applied)
	}
}

func TestSelectBestCombinationPicksGreatestLegalTotal(t *testing.T) {
	target := domain.Target{Kind: domain.TargetProduct, IDs: []string{"p1"}}
	candidates := []Candidate{
		candidate(1, 0, 10, domain.StackingExclusiveByTarget, target),
		candidate(1, 1, 6, domain.StackingStackable, domain.Target{Kind: domain.TargetCart}),
		candidate(1, 2, 7, domain.StackingExclusiveByTarget, target),
	}
	applied := SelectBestCombination(candidates)
	var total float64
	for _, a := range applied {
		total += a.Result.Amount
	}
	if total != 16 {
		t.Fatalf("expected combination of 10+6=16 (not both exclusiveByTarget), got %v from %#v", total, applied)
	}
}

func TestSelectBestCombinationFallsBackToByPriorityAboveLimit(t *testing.T) {
	candidates := make([]Candidate, maxBestCombinationCandidates+1)
	for i := range candidates {
		candidates[i] = candidate(i, i, float64(i+1), domain.StackingStackable, domain.Target{Kind: domain.TargetCart})
	}
	applied := SelectBestCombination(candidates)
	if len(applied) != len(candidates) {
		t.Fatalf("expected byPriority fallback to apply all stackable candidates, got %d", len(applied))
	}
}
