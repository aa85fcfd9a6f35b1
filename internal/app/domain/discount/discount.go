// Package discount models the Discount entity (§3) the Calculator and
// Stacking Optimizer operate over.
package discount

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/flowlayer/enginecore/internal/app/condition"
)

// TargetKind enumerates the portion of a cart a discount can affect.
type TargetKind string

const (
	TargetCart      TargetKind = "cart"
	TargetShipping  TargetKind = "shipping"
	TargetProduct   TargetKind = "product"
	TargetCategory  TargetKind = "category"
)

// Target names the cart|shipping|product(ids)|category(ids) variant.
type Target struct {
	Kind TargetKind `json:"kind"`
	IDs  []string   `json:"ids,omitempty"`
}

// Key returns the stable target key the stacking optimizer tracks used
// targets by: set-equal id lists always produce the same key regardless of
// order.
func (t Target) Key() string {
	switch t.Kind {
	case TargetProduct, TargetCategory:
		sorted := append([]string(nil), t.IDs...)
		sort.Strings(sorted)
		return string(t.Kind) + ":" + strings.Join(sorted, ",")
	default:
		return string(t.Kind)
	}
}

// ValueKind enumerates the discount value variant.
type ValueKind string

const (
	ValuePercentage   ValueKind = "percentage"
	ValueFixedAmount  ValueKind = "fixedAmount"
	ValueBuyXGetY     ValueKind = "buyXGetY"
	ValueTiered       ValueKind = "tiered"
	ValueBundle       ValueKind = "bundle"
	ValueFreeShipping ValueKind = "freeShipping"
)

// TierBy selects the threshold metric a tiered value uses.
type TierBy string

const (
	TierByAmount   TierBy = "amount"
	TierByQuantity TierBy = "quantity"
)

// Tier is one threshold/reward pair of a tiered value.
type Tier struct {
	Threshold      float64 `json:"threshold"`
	HasPercentage  bool    `json:"hasPercentage,omitempty"`
	Percentage     float64 `json:"percentage,omitempty"`
	HasFixedAmount bool    `json:"hasFixedAmount,omitempty"`
	FixedAmount    float64 `json:"fixedAmount,omitempty"`
}

// BundleItem is one required (productId, quantity) pair of a bundle value.
type BundleItem struct {
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

// Value is the tagged value-variant: exactly one sub-shape is populated
// per Kind.
type Value struct {
	Kind ValueKind `json:"kind"`

	// percentage
	Percentage   float64 `json:"percentage,omitempty"`
	HasMaxAmount bool    `json:"hasMaxAmount,omitempty"`
	MaxAmount    float64 `json:"maxAmount,omitempty"`

	// fixedAmount
	FixedAmount float64 `json:"fixedAmount,omitempty"`

	// buyXGetY
	BuyQuantity        float64  `json:"buyQuantity,omitempty"`
	GetQuantity        float64  `json:"getQuantity,omitempty"`
	DiscountPercentage float64  `json:"discountPercentage,omitempty"`
	GetProductIDs      []string `json:"getProductIds,omitempty"`

	// tiered
	TierBy TierBy `json:"tierBy,omitempty"`
	Tiers  []Tier `json:"tiers,omitempty"`

	// bundle
	BundleItems         []BundleItem `json:"bundleItems,omitempty"`
	HasBundlePrice      bool         `json:"hasBundlePrice,omitempty"`
	BundlePrice         float64      `json:"bundlePrice,omitempty"`
	HasBundlePercentage bool         `json:"hasBundlePercentage,omitempty"`
	BundlePercentage    float64      `json:"bundlePercentage,omitempty"`
}

// StackingBehavior is the per-discount combinability marker.
type StackingBehavior string

const (
	StackingStackable         StackingBehavior = "stackable"
	StackingExclusive         StackingBehavior = "exclusive"
	StackingExclusiveByTarget StackingBehavior = "exclusiveByTarget"
)

// Status is the discount's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Discount is the identified entity the Calculator and Stacking Optimizer
// consume.
type Discount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`

	Target Target `json:"target"`
	Value  Value  `json:"value"`

	Conditions condition.DiscountTree `json:"conditions"`

	Priority int              `json:"priority"`
	Stacking StackingBehavior `json:"stacking"`

	HasUsageLimit             bool `json:"hasUsageLimit,omitempty"`
	UsageLimit                int  `json:"usageLimit,omitempty"`
	HasUsageLimitPerCustomer  bool `json:"hasUsageLimitPerCustomer,omitempty"`
	UsageLimitPerCustomer     int  `json:"usageLimitPerCustomer,omitempty"`

	HasValidFrom  bool      `json:"hasValidFrom,omitempty"`
	ValidFrom     time.Time `json:"validFrom,omitempty"`
	HasValidUntil bool      `json:"hasValidUntil,omitempty"`
	ValidUntil    time.Time `json:"validUntil,omitempty"`

	CurrentUsage int    `json:"currentUsage"`
	Status       Status `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (d *Discount) GetID() string            { return d.ID }
func (d *Discount) SetID(id string)          { d.ID = id }
func (d *Discount) SetCreatedAt(t time.Time) { d.CreatedAt = t }
func (d *Discount) SetUpdatedAt(t time.Time) { d.UpdatedAt = t }

// Validate checks the invariants of §3: usage within its cap, a well-ordered
// validity window, percentage ranges, and non-negative monetary amounts.
// Errors are collected eagerly via go-multierror rather than failing fast.
func (d *Discount) Validate() error {
	var result *multierror.Error

	if d.Name == "" {
		result = multierror.Append(result, fmt.Errorf("field %q is required", "name"))
	}
	if d.HasUsageLimit && d.CurrentUsage > d.UsageLimit {
		result = multierror.Append(result, fmt.Errorf("currentUsage %d exceeds usageLimit %d", d.CurrentUsage, d.UsageLimit))
	}
	if d.HasValidFrom && d.HasValidUntil && d.ValidFrom.After(d.ValidUntil) {
		result = multierror.Append(result, fmt.Errorf("validFrom must not be after validUntil"))
	}
	if pct, ok := d.percentageOrZero(); ok && (pct < 0 || pct > 100) {
		result = multierror.Append(result, fmt.Errorf("percentage %v is out of range [0, 100]", pct))
	}
	for _, amt := range d.monetaryAmounts() {
		if amt < 0 {
			result = multierror.Append(result, fmt.Errorf("monetary amount %v must be non-negative", amt))
		}
	}

	return result.ErrorOrNil()
}

func (d *Discount) percentageOrZero() (float64, bool) {
	switch d.Value.Kind {
	case ValuePercentage:
		return d.Value.Percentage, true
	case ValueBuyXGetY:
		return d.Value.DiscountPercentage, true
	case ValueBundle:
		if d.Value.HasBundlePercentage {
			return d.Value.BundlePercentage, true
		}
	}
	return 0, false
}

func (d *Discount) monetaryAmounts() []float64 {
	amounts := []float64{}
	switch d.Value.Kind {
	case ValuePercentage:
		if d.Value.HasMaxAmount {
			amounts = append(amounts, d.Value.MaxAmount)
		}
	case ValueFixedAmount:
		amounts = append(amounts, d.Value.FixedAmount)
	case ValueBundle:
		if d.Value.HasBundlePrice {
			amounts = append(amounts, d.Value.BundlePrice)
		}
	}
	return amounts
}

// IsActiveAt reports whether status/validity allow evaluation at now.
func (d *Discount) IsActiveAt(now time.Time) bool {
	if d.Status != StatusActive {
		return false
	}
	if d.HasValidFrom && now.Before(d.ValidFrom) {
		return false
	}
	if d.HasValidUntil && !now.Before(d.ValidUntil) {
		return false
	}
	return true
}

// HasReachedUsageLimit reports whether currentUsage has exhausted the cap.
func (d *Discount) HasReachedUsageLimit() bool {
	return d.HasUsageLimit && d.CurrentUsage >= d.UsageLimit
}

// MatchesCode reports whether code matches this discount's code,
// case-insensitively (§8.8).
func (d *Discount) MatchesCode(code string) bool {
	return d.Code != "" && strings.EqualFold(d.Code, code)
}
