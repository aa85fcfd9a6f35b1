// Package discount implements the Discount Calculator (component C) and
// the Discount Stacking Optimizer (component D): computing a monetary
// amount for one discount against a cart, then selecting which of several
// applicable discounts actually apply.
package discount

import (
	"sort"

	"github.com/flowlayer/enginecore/internal/app/domain/cart"
	domain "github.com/flowlayer/enginecore/internal/app/domain/discount"
)

// ItemApplication attributes a portion of a discount's amount to one
// product line.
type ItemApplication struct {
	ProductID string
	Amount    float64
}

// Result is calculate's non-nil outcome: a positive discount amount plus
// its per-item attribution.
type Result struct {
	Amount         float64
	AppliedToItems []ItemApplication
}

// Calculate computes d's discount amount against ctx. A nil result means
// the discount produces no positive amount (incomplete bundle, unmet tier
// threshold, empty target set, and so on) — never an error.
func Calculate(d *domain.Discount, ctx cart.Context) *Result {
	switch d.Value.Kind {
	case domain.ValuePercentage:
		return calculatePercentage(d, ctx)
	case domain.ValueFixedAmount:
		return calculateFixedAmount(d, ctx)
	case domain.ValueBuyXGetY:
		return calculateBuyXGetY(d, ctx)
	case domain.ValueTiered:
		return calculateTiered(d, ctx)
	case domain.ValueBundle:
		return calculateBundle(d, ctx)
	case domain.ValueFreeShipping:
		return calculateFreeShipping(ctx)
	default:
		return nil
	}
}

// eligibleItems resolves d's target against ctx's cart items.
func eligibleItems(target domain.Target, ctx cart.Context) []cart.Item {
	switch target.Kind {
	case domain.TargetCart:
		return ctx.Items
	case domain.TargetProduct:
		return filterItems(ctx.Items, target.IDs, func(i cart.Item) string { return i.ProductID })
	case domain.TargetCategory:
		return filterItems(ctx.Items, target.IDs, func(i cart.Item) string { return i.CategoryID })
	default: // shipping
		return nil
	}
}

func filterItems(items []cart.Item, ids []string, key func(cart.Item) string) []cart.Item {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	out := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if set[key(item)] {
			out = append(out, item)
		}
	}
	return out
}

func eligibleTotal(items []cart.Item) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Total()
	}
	return total
}

func calculatePercentage(d *domain.Discount, ctx cart.Context) *Result {
	items := eligibleItems(d.Target, ctx)
	if len(items) == 0 {
		return nil
	}
	lines := make([]ItemApplication, 0, len(items))
	total := 0.0
	for _, item := range items {
		amount := item.Total() * d.Value.Percentage / 100
		lines = append(lines, ItemApplication{ProductID: item.ProductID, Amount: amount})
		total += amount
	}
	if total <= 0 {
		return nil
	}
	if d.Value.HasMaxAmount && total > d.Value.MaxAmount {
		lines = scaleProportionally(lines, total, d.Value.MaxAmount)
		total = d.Value.MaxAmount
	}
	return &Result{Amount: total, AppliedToItems: lines}
}

func calculateFixedAmount(d *domain.Discount, ctx cart.Context) *Result {
	items := eligibleItems(d.Target, ctx)
	if len(items) == 0 {
		return nil
	}
	cap := eligibleTotal(items)
	if cap <= 0 {
		return nil
	}
	amount := d.Value.FixedAmount
	if amount > cap {
		amount = cap
	}
	if amount <= 0 {
		return nil
	}
	lines := make([]ItemApplication, 0, len(items))
	for _, item := range items {
		lines = append(lines, ItemApplication{ProductID: item.ProductID, Amount: item.Total()})
	}
	lines = scaleProportionally(lines, cap, amount)
	return &Result{Amount: amount, AppliedToItems: lines}
}

// scaleProportionally rescales each line's Amount so the lines sum to
// target, preserving each line's share of from.
func scaleProportionally(lines []ItemApplication, from, target float64) []ItemApplication {
	if from <= 0 {
		return lines
	}
	out := make([]ItemApplication, len(lines))
	for i, line := range lines {
		out[i] = ItemApplication{ProductID: line.ProductID, Amount: line.Amount / from * target}
	}
	return out
}

type unit struct {
	productID string
	unitPrice float64
}

func calculateBuyXGetY(d *domain.Discount, ctx cart.Context) *Result {
	items := eligibleItems(d.Target, ctx)
	if len(items) == 0 {
		return nil
	}
	setSize := d.Value.BuyQuantity + d.Value.GetQuantity
	if setSize <= 0 {
		return nil
	}
	totalQty := 0.0
	for _, item := range items {
		totalQty += item.Quantity
	}
	sets := float64(int(totalQty / setSize))
	freeCount := sets * d.Value.GetQuantity
	if freeCount <= 0 {
		return nil
	}

	pool := items
	if len(d.Value.GetProductIDs) > 0 {
		pool = filterItems(items, d.Value.GetProductIDs, func(i cart.Item) string { return i.ProductID })
	}
	units := make([]unit, 0, len(pool))
	for _, item := range pool {
		for i := 0; i < int(item.Quantity); i++ {
			units = append(units, unit{productID: item.ProductID, unitPrice: item.UnitPrice})
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].unitPrice < units[j].unitPrice })

	n := int(freeCount)
	if n > len(units) {
		n = len(units)
	}
	if n <= 0 {
		return nil
	}
	byProduct := map[string]float64{}
	total := 0.0
	for i := 0; i < n; i++ {
		amount := units[i].unitPrice * d.Value.DiscountPercentage / 100
		byProduct[units[i].productID] += amount
		total += amount
	}
	if total <= 0 {
		return nil
	}
	return &Result{Amount: total, AppliedToItems: mapToLines(byProduct)}
}

func mapToLines(byProduct map[string]float64) []ItemApplication {
	ids := make([]string, 0, len(byProduct))
	for id := range byProduct {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	lines := make([]ItemApplication, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, ItemApplication{ProductID: id, Amount: byProduct[id]})
	}
	return lines
}

func calculateTiered(d *domain.Discount, ctx cart.Context) *Result {
	items := eligibleItems(d.Target, ctx)
	if len(items) == 0 {
		return nil
	}
	var value float64
	switch d.Value.TierBy {
	case domain.TierByQuantity:
		for _, item := range items {
			value += item.Quantity
		}
	default:
		value = eligibleTotal(items)
	}

	var best *domain.Tier
	for i, tier := range d.Value.Tiers {
		if tier.Threshold > value {
			continue
		}
		if best == nil || tier.Threshold > best.Threshold {
			best = &d.Value.Tiers[i]
		}
	}
	if best == nil {
		return nil
	}

	eligible := eligibleTotal(items)
	var amount float64
	switch {
	case best.HasPercentage:
		amount = eligible * best.Percentage / 100
	case best.HasFixedAmount:
		amount = best.FixedAmount
		if amount > eligible {
			amount = eligible
		}
	default:
		return nil
	}
	if amount <= 0 {
		return nil
	}
	lines := make([]ItemApplication, 0, len(items))
	for _, item := range items {
		lines = append(lines, ItemApplication{ProductID: item.ProductID, Amount: item.Total()})
	}
	lines = scaleProportionally(lines, eligible, amount)
	return &Result{Amount: amount, AppliedToItems: lines}
}

func calculateBundle(d *domain.Discount, ctx cart.Context) *Result {
	originalPrice := 0.0
	byProduct := map[string]float64{}
	for _, req := range d.Value.BundleItems {
		unitPrice, have := unitPriceFor(ctx, req.ProductID)
		if !have || ctx.TotalQuantity([]string{req.ProductID}) < req.Quantity {
			return nil
		}
		line := unitPrice * req.Quantity
		originalPrice += line
		byProduct[req.ProductID] += line
	}
	if originalPrice <= 0 {
		return nil
	}

	var amount float64
	switch {
	case d.Value.HasBundlePrice:
		amount = originalPrice - d.Value.BundlePrice
	case d.Value.HasBundlePercentage:
		amount = originalPrice * d.Value.BundlePercentage / 100
	default:
		return nil
	}
	if amount < 0 {
		amount = 0
	}
	if amount <= 0 {
		return nil
	}
	lines := make([]ItemApplication, 0, len(byProduct))
	for productID, share := range byProduct {
		lines = append(lines, ItemApplication{ProductID: productID, Amount: share})
	}
	lines = scaleProportionally(lines, originalPrice, amount)
	return &Result{Amount: amount, AppliedToItems: lines}
}

func unitPriceFor(ctx cart.Context, productID string) (float64, bool) {
	for _, item := range ctx.Items {
		if item.ProductID == productID {
			return item.UnitPrice, true
		}
	}
	return 0, false
}

func calculateFreeShipping(ctx cart.Context) *Result {
	if ctx.ShippingAmount <= 0 {
		return nil
	}
	return &Result{Amount: ctx.ShippingAmount}
}
