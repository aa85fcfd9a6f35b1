package condition

import (
	"github.com/flowlayer/enginecore/internal/app/domain/cart"
)

// DiscountAtomKind enumerates the discount dialect's atomic condition kinds.
type DiscountAtomKind string

const (
	DiscountMinAmount       DiscountAtomKind = "minAmount"
	DiscountMinQuantity     DiscountAtomKind = "minQuantity"
	DiscountDateRange       DiscountAtomKind = "dateRange"
	DiscountCustomerGroup   DiscountAtomKind = "customerGroup"
	DiscountFirstPurchase   DiscountAtomKind = "firstPurchase"
	DiscountCustomerTag     DiscountAtomKind = "customerTag"
	DiscountRequiredProduct DiscountAtomKind = "requiredProducts"
)

// RequiredProduct is one entry of a requiredProducts atom.
type RequiredProduct struct {
	ProductID string
	// MinQuantity defaults to 1 when zero.
	MinQuantity float64
}

// DiscountAtom is the discount dialect's tagged atom leaf.
type DiscountAtom struct {
	Kind DiscountAtomKind

	// minAmount
	Amount float64

	// minQuantity
	Quantity   float64
	ProductIDs []string

	// dateRange: validFrom inclusive, validUntil exclusive.
	HasValidFrom  bool
	ValidFrom     int64 // unix seconds, UTC
	HasValidUntil bool
	ValidUntil    int64

	// customerGroup
	Group string

	// customerTag
	Tag string

	// requiredProducts
	RequiredProducts []RequiredProduct
}

// DiscountTree is a condition tree in the discount dialect.
type DiscountTree = Tree[DiscountAtom]

// EvaluateDiscount evaluates tree against ctx.
func EvaluateDiscount(tree DiscountTree, ctx cart.Context) bool {
	return Evaluate(tree, func(atom DiscountAtom) bool {
		return evaluateDiscountAtom(atom, ctx)
	})
}

func evaluateDiscountAtom(atom DiscountAtom, ctx cart.Context) bool {
	switch atom.Kind {
	case DiscountMinAmount:
		return ctx.Subtotal() >= atom.Amount
	case DiscountMinQuantity:
		return ctx.TotalQuantity(atom.ProductIDs) >= atom.Quantity
	case DiscountDateRange:
		now := ctx.Now().Unix()
		if atom.HasValidFrom && now < atom.ValidFrom {
			return false
		}
		if atom.HasValidUntil && now >= atom.ValidUntil {
			return false
		}
		return true
	case DiscountCustomerGroup:
		if !ctx.Customer.Known {
			return false
		}
		return ctx.Customer.Group == atom.Group
	case DiscountFirstPurchase:
		if !ctx.Customer.Known {
			return false
		}
		return ctx.Customer.FirstPurchase
	case DiscountCustomerTag:
		if !ctx.Customer.Known {
			return false
		}
		return ctx.Customer.HasTag(atom.Tag)
	case DiscountRequiredProduct:
		for _, req := range atom.RequiredProducts {
			min := req.MinQuantity
			if min <= 0 {
				min = 1
			}
			if quantityOf(ctx, req.ProductID) < min {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func quantityOf(ctx cart.Context, productID string) float64 {
	var total float64
	for _, item := range ctx.Items {
		if item.ProductID == productID {
			total += item.Quantity
		}
	}
	return total
}
