package discount

import (
	"testing"

	"github.com/flowlayer/enginecore/internal/app/domain/cart"
	domain "github.com/flowlayer/enginecore/internal/app/domain/discount"
)

func cartCtx(items ...cart.Item) cart.Context {
	return cart.Context{Items: items}
}

func TestCalculatePercentageCapsAtMaxAmount(t *testing.T) {
	d := &domain.Discount{
		Target: domain.Target{Kind: domain.TargetCart},
		Value:  domain.Value{Kind: domain.ValuePercentage, Percentage: 50, HasMaxAmount: true, MaxAmount: 10},
	}
	ctx := cartCtx(cart.Item{ProductID: "p1", UnitPrice: 100, Quantity: 1})
	result := Calculate(d, ctx)
	if result == nil || result.Amount != 10 {
		t.Fatalf("expected capped amount 10, got %#v", result)
	}
}

func TestCalculatePercentageOnProductTarget(t *testing.T) {
	d := &domain.Discount{
		Target: domain.Target{Kind: domain.TargetProduct, IDs: []string{"p1"}},
		Value:  domain.Value{Kind: domain.ValuePercentage, Percentage: 10},
	}
	ctx := cartCtx(
		cart.Item{ProductID: "p1", UnitPrice: 100, Quantity: 1},
		cart.Item{ProductID: "p2", UnitPrice: 50, Quantity: 1},
	)
	result := Calculate(d, ctx)
	if result == nil || result.Amount != 10 {
		t.Fatalf("expected amount 10, got %#v", result)
	}
}

func TestCalculateFixedAmountCapsAtEligibleTotal(t *testing.T) {
	d := &domain.Discount{
		Target: domain.Target{Kind: domain.TargetCart},
		Value:  domain.Value{Kind: domain.ValueFixedAmount, FixedAmount: 1000},
	}
	ctx := cartCtx(cart.Item{ProductID: "p1", UnitPrice: 20, Quantity: 1})
	result := Calculate(d, ctx)
	if result == nil || result.Amount != 20 {
		t.Fatalf("expected amount capped at 20, got %#v", result)
	}
}

func TestCalculateBuyXGetYDiscountsCheapestUnits(t *testing.T) {
	d := &domain.Discount{
		Target: domain.Target{Kind: domain.TargetCart},
		Value: domain.Value{
			Kind: domain.ValueBuyXGetY, BuyQuantity: 2, GetQuantity: 1, DiscountPercentage: 100,
		},
	}
	ctx := cartCtx(cart.Item{ProductID: "p1", UnitPrice: 10, Quantity: 3})
	result := Calculate(d, ctx)
	if result == nil || result.Amount != 10 {
		t.Fatalf("expected one free unit at 10, got %#v", result)
	}
}

func TestCalculateBuyXGetYNoFreeUnitsYieldsNil(t *testing.T) {
	d := &domain.Discount{
		Target: domain.Target{Kind: domain.TargetCart},
		Value:  domain.Value{Kind: domain.ValueBuyXGetY, BuyQuantity: 2, GetQuantity: 1, DiscountPercentage: 100},
	}
	ctx := cartCtx(cart.Item{ProductID: "p1", UnitPrice: 10, Quantity: 2})
	if result := Calculate(d, ctx); result != nil {
		t.Fatalf("expected nil, got %#v", result)
	}
}

func TestCalculateTieredPicksGreatestThresholdNotExceeded(t *testing.T) {
	d := &domain.Discount{
		Target: domain.Target{Kind: domain.TargetCart},
		Value: domain.Value{
			Kind: domain.ValueTiered, TierBy: domain.TierByAmount,
			Tiers: []domain.Tier{
				{Threshold: 0, HasPercentage: true, Percentage: 5},
				{Threshold: 100, HasPercentage: true, Percentage: 10},
				{Threshold: 200, HasPercentage: true, Percentage: 20},
			},
		},
	}
	ctx := cartCtx(cart.Item{ProductID: "p1", UnitPrice: 150, Quantity: 1})
	result := Calculate(d, ctx)
	if result == nil || result.Amount != 15 {
		t.Fatalf("expected 10%% tier applied (15), got %#v", result)
	}
}

func TestCalculateTieredNoTierMetYieldsNil(t *testing.T) {
	d := &domain.Discount{
		Target: domain.Target{Kind: domain.TargetCart},
		Value: domain.Value{
			Kind: domain.ValueTiered, TierBy: domain.TierByAmount,
			Tiers: []domain.Tier{{Threshold: 500, HasPercentage: true, Percentage: 10}},
		},
	}
	ctx := cartCtx(cart.Item{ProductID: "p1", UnitPrice: 10, Quantity: 1})
	if result := Calculate(d, ctx); result != nil {
		t.Fatalf("expected nil, got %#v", result)
	}
}

func TestCalculateBundleRequiresAllItemsPresent(t *testing.T) {
	d := &domain.Discount{
		Value: domain.Value{
			Kind: domain.ValueBundle,
			BundleItems: []domain.BundleItem{
				{ProductID: "p1", Quantity: 1},
				{ProductID: "p2", Quantity: 1},
			},
			HasBundlePrice: true, BundlePrice: 15,
		},
	}
	incomplete := cartCtx(cart.Item{ProductID: "p1", UnitPrice: 10, Quantity: 1})
	if result := Calculate(d, incomplete); result != nil {
		t.Fatalf("expected nil for incomplete bundle, got %#v", result)
	}

	complete := cartCtx(
		cart.Item{ProductID: "p1", UnitPrice: 10, Quantity: 1},
		cart.Item{ProductID: "p2", UnitPrice: 10, Quantity: 1},
	)
	result := Calculate(d, complete)
	if result == nil || result.Amount != 5 {
		t.Fatalf("expected amount 5 (20-15), got %#v", result)
	}
}

func TestCalculateFreeShippingUsesShippingAmount(t *testing.T) {
	d := &domain.Discount{Value: domain.Value{Kind: domain.ValueFreeShipping}}
	ctx := cart.Context{ShippingAmount: 7.5}
	result := Calculate(d, ctx)
	if result == nil || result.Amount != 7.5 {
		t.Fatalf("expected amount 7.5, got %#v", result)
	}
	if res := Calculate(d, cart.Context{}); res != nil {
		t.Fatalf("expected nil for zero shipping, got %#v", res)
	}
}
