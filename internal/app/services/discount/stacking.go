package discount

import (
	"sort"

	domain "github.com/flowlayer/enginecore/internal/app/domain/discount"
)

// Candidate pairs an applicable discount with its insertion order (for
// tie-breaking) and its computed result.
type Candidate struct {
	Discount *domain.Discount
	Order    int
	Result   *Result
}

// Applied is one selected discount in the stacking optimizer's output.
type Applied struct {
	Discount *domain.Discount
	Result   Result
}

// maxBestCombinationCandidates bounds the subset search's input size; above
// this, bestCombination falls back to byPriority.
const maxBestCombinationCandidates = 10

// Strategy enumerates the stacking optimizer's top-level strategies (§4.D),
// distinct from a per-discount domain.StackingBehavior.
type Strategy string

const (
	StrategyNone            Strategy = "none"
	StrategyAll             Strategy = "all"
	StrategyByPriority      Strategy = "byPriority"
	StrategyBestCombination Strategy = "bestCombination"
)

// Select runs the named strategy over candidates (already filtered to
// applicable, computed discounts) and returns the chosen subset ordered by
// descending priority, tie-broken by insertion order.
func Select(strategy Strategy, candidates []Candidate) []Applied {
	switch strategy {
	case StrategyNone:
		return SelectNone(candidates)
	case StrategyByPriority:
		return SelectByPriority(candidates)
	case StrategyBestCombination:
		return SelectBestCombination(candidates)
	default:
		return SelectAll(candidates)
	}
}

// SelectNone implements the "none" strategy: the single greatest-amount
// candidate, ties resolved to higher priority then insertion order.
func SelectNone(candidates []Candidate) []Applied {
	best := bestCandidate(candidates)
	if best == nil {
		return nil
	}
	return []Applied{{Discount: best.Discount, Result: *best.Result}}
}

func bestCandidate(candidates []Candidate) *Candidate {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if c.Result == nil {
			continue
		}
		if best == nil || better(*c, *best) {
			best = c
		}
	}
	return best
}

// better reports whether a should win over b under "greatest amount, then
// higher priority, then earlier insertion".
func better(a, b Candidate) bool {
	if a.Result.Amount != b.Result.Amount {
		return a.Result.Amount > b.Result.Amount
	}
	if a.Discount.Priority != b.Discount.Priority {
		return a.Discount.Priority > b.Discount.Priority
	}
	return a.Order < b.Order
}

func selectAll(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Result != nil {
			out = append(out, c)
		}
	}
	return out
}

// SelectAll implements the "all" strategy: every applicable candidate.
func SelectAll(candidates []Candidate) []Applied {
	return toApplied(orderByPriority(selectAll(candidates)))
}

func orderByPriority(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Discount.Priority != out[j].Discount.Priority {
			return out[i].Discount.Priority > out[j].Discount.Priority
		}
		return out[i].Order < out[j].Order
	})
	return out
}

func toApplied(candidates []Candidate) []Applied {
	out := make([]Applied, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Applied{Discount: c.Discount, Result: *c.Result})
	}
	return out
}

// SelectByPriority implements the "byPriority" strategy.
func SelectByPriority(candidates []Candidate) []Applied {
	ordered := orderByPriority(selectAll(candidates))
	used := map[string]bool{}
	appliedExclusive := false
	chosen := make([]Candidate, 0, len(ordered))
	for _, c := range ordered {
		if appliedExclusive {
			break
		}
		switch c.Discount.Stacking {
		case domain.StackingExclusive:
			if len(chosen) > 0 {
				continue
			}
		case domain.StackingExclusiveByTarget:
			if used[c.Discount.Target.Key()] {
				continue
			}
		}
		chosen = append(chosen, c)
		used[c.Discount.Target.Key()] = true
		if c.Discount.Stacking == domain.StackingExclusive {
			appliedExclusive = true
		}
	}
	return toApplied(chosen)
}

// SelectBestCombination implements the "bestCombination" strategy: an
// exhaustive subset search over up to maxBestCombinationCandidates
// applicable discounts, falling back to byPriority above that bound.
func SelectBestCombination(candidates []Candidate) []Applied {
	pool := selectAll(candidates)
	if len(pool) > maxBestCombinationCandidates {
		return SelectByPriority(candidates)
	}
	if len(pool) == 0 {
		return nil
	}

	var bestSubset []Candidate
	var bestTotal float64
	n := len(pool)
	for mask := 1; mask < (1 << n); mask++ {
		subset := make([]Candidate, 0, n)
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, pool[i])
			}
		}
		if !legalSubset(subset) {
			continue
		}
		total := subsetTotal(subset)
		if bestSubset == nil || subsetBetter(total, len(subset), subset, bestTotal, len(bestSubset), bestSubset) {
			bestSubset = subset
			bestTotal = total
		}
	}
	return toApplied(orderByPriority(bestSubset))
}

func subsetTotal(subset []Candidate) float64 {
	total := 0.0
	for _, c := range subset {
		total += c.Result.Amount
	}
	return total
}

// legalSubset reports whether subset obeys exclusive/exclusiveByTarget
// constraints: at most one exclusive discount, and no two discounts sharing
// an exclusiveByTarget target key, and an exclusive discount must be alone.
func legalSubset(subset []Candidate) bool {
	usedTargets := map[string]bool{}
	exclusiveCount := 0
	for _, c := range subset {
		if c.Discount.Stacking == domain.StackingExclusive {
			exclusiveCount++
		}
		if c.Discount.Stacking == domain.StackingExclusiveByTarget {
			key := c.Discount.Target.Key()
			if usedTargets[key] {
				return false
			}
			usedTargets[key] = true
		}
	}
	if exclusiveCount > 0 && len(subset) > 1 {
		return false
	}
	return true
}

// subsetBetter reports whether (totalA, sizeA) beats (totalB, sizeB):
// greatest total, tie-broken by fewer discounts, then by the ordered
// subset's priority sequence.
func subsetBetter(totalA float64, sizeA int, a []Candidate, totalB float64, sizeB int, b []Candidate) bool {
	if totalA != totalB {
		return totalA > totalB
	}
	if sizeA != sizeB {
		return sizeA < sizeB
	}
	oa, ob := orderByPriority(a), orderByPriority(b)
	for i := 0; i < len(oa) && i < len(ob); i++ {
		if oa[i].Discount.Priority != ob[i].Discount.Priority {
			return oa[i].Discount.Priority > ob[i].Discount.Priority
		}
	}
	return false
}
