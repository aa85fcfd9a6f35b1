package discount

import (
	"context"
	"time"

	"github.com/flowlayer/enginecore/internal/app/condition"
	core "github.com/flowlayer/enginecore/internal/app/core/service"
	"github.com/flowlayer/enginecore/internal/app/domain/cart"
	domain "github.com/flowlayer/enginecore/internal/app/domain/discount"
	"github.com/flowlayer/enginecore/internal/app/metrics"
)

// RejectionReason is the closed set of literal reasons a promo code can be
// rejected for (§4.D).
type RejectionReason string

const (
	ReasonInvalidCode      RejectionReason = "Invalid code"
	ReasonNotActive        RejectionReason = "Discount is not active"
	ReasonNotYetValid      RejectionReason = "Discount is not yet valid"
	ReasonExpired          RejectionReason = "Discount has expired"
	ReasonUsageLimitReached RejectionReason = "Discount usage limit reached"
	ReasonConditionsNotMet RejectionReason = "Conditions not met"
)

// RejectedCode pairs a submitted code with why it did not apply.
type RejectedCode struct {
	Code   string
	Reason RejectionReason
}

// EvaluationResult is the outcome of evaluating a cart against a discount
// catalog: the applied discounts, any rejected promo codes, and the three
// totals §4.D defines.
type EvaluationResult struct {
	Applied        []Applied
	RejectedCodes  []RejectedCode
	CartDiscount   float64
	ShippingDiscount float64
	Total          float64
}

// Evaluate filters discounts to those applicable against ctx (matching an
// applied code or automatic, active, within usage caps, conditions met),
// computes each one's amount, resolves stacking via strategy, and derives
// the final totals. Discounts carrying a non-empty Code only apply when
// ctx.AppliedCodes contains a case-insensitive match; codeless discounts are
// always considered automatic candidates.
func Evaluate(discounts []*domain.Discount, ctx cart.Context, strategy Strategy) EvaluationResult {
	start := time.Now()
	defer func() { metrics.RecordDiscountEvaluation(string(strategy), time.Since(start)) }()

	doneObserving := core.StartObservation(context.Background(), metrics.DiscountEvaluationHooks(), map[string]string{"resource": string(strategy)})
	defer func() { doneObserving(nil) }()

	var candidates []Candidate
	var rejected []RejectedCode
	order := 0

	for _, d := range discounts {
		if d.Code == "" {
			if c, ok := tryApply(d, ctx, &order); ok {
				candidates = append(candidates, c)
			}
			continue
		}
	}

	for _, code := range ctx.AppliedCodes {
		d := findByCode(discounts, code)
		if d == nil {
			rejected = append(rejected, RejectedCode{Code: code, Reason: ReasonInvalidCode})
			continue
		}
		reason, ok := eligibilityReason(d, ctx)
		if !ok {
			rejected = append(rejected, RejectedCode{Code: code, Reason: reason})
			continue
		}
		c, ok := tryApply(d, ctx, &order)
		if !ok {
			rejected = append(rejected, RejectedCode{Code: code, Reason: ReasonConditionsNotMet})
			continue
		}
		candidates = append(candidates, c)
	}

	applied := Select(strategy, candidates)
	return finalize(applied, ctx, rejected)
}

func findByCode(discounts []*domain.Discount, code string) *domain.Discount {
	for _, d := range discounts {
		if d.MatchesCode(code) {
			return d
		}
	}
	return nil
}

// eligibilityReason checks status/validity/usage, short-circuiting before
// condition evaluation (which is reported as ReasonConditionsNotMet by the
// caller once calculation also fails).
func eligibilityReason(d *domain.Discount, ctx cart.Context) (RejectionReason, bool) {
	now := ctx.Now()
	if d.Status != domain.StatusActive {
		return ReasonNotActive, false
	}
	if d.HasValidFrom && now.Before(d.ValidFrom) {
		return ReasonNotYetValid, false
	}
	if d.HasValidUntil && !now.Before(d.ValidUntil) {
		return ReasonExpired, false
	}
	if d.HasReachedUsageLimit() {
		return ReasonUsageLimitReached, false
	}
	return "", true
}

// tryApply reports whether d is applicable (active, within usage, conditions
// met) and produces a positive amount, returning the populated candidate
// when so.
func tryApply(d *domain.Discount, ctx cart.Context, order *int) (Candidate, bool) {
	if _, ok := eligibilityReason(d, ctx); !ok {
		return Candidate{}, false
	}
	if !condition.EvaluateDiscount(d.Conditions, ctx) {
		return Candidate{}, false
	}
	result := Calculate(d, ctx)
	if result == nil {
		return Candidate{}, false
	}
	c := Candidate{Discount: d, Order: *order, Result: result}
	*order++
	return c, true
}

// finalize sums the applied amounts per target kind, caps the cart sum at
// subtotal and the shipping sum at shippingAmount, and computes the final
// total. The individual Applied amounts are returned unchanged.
func finalize(applied []Applied, ctx cart.Context, rejected []RejectedCode) EvaluationResult {
	subtotal := ctx.Subtotal()
	var cartDiscount, shippingDiscount float64
	for i := range applied {
		if applied[i].Discount.Target.Kind == domain.TargetShipping {
			shippingDiscount += applied[i].Result.Amount
		} else {
			cartDiscount += applied[i].Result.Amount
		}
	}
	if cartDiscount > subtotal {
		cartDiscount = subtotal
	}
	if shippingDiscount > ctx.ShippingAmount {
		shippingDiscount = ctx.ShippingAmount
	}
	total := subtotal - cartDiscount + ctx.ShippingAmount - shippingDiscount
	if total < 0 {
		total = 0
	}

	return EvaluationResult{
		Applied:          applied,
		RejectedCodes:    rejected,
		CartDiscount:     cartDiscount,
		ShippingDiscount: shippingDiscount,
		Total:            total,
	}
}
