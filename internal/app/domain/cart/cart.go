// Package cart defines the shopping-cart context the discount condition
// evaluator and calculator operate against.
package cart

import "time"

// Item is a single cart line.
type Item struct {
	ProductID  string
	CategoryID string
	UnitPrice  float64
	Quantity   float64
}

// Total returns unitPrice*quantity for this line.
func (i Item) Total() float64 {
	return i.UnitPrice * i.Quantity
}

// Customer carries the customer-scoped fields the discount conditions
// inspect. Absent fields (zero Group/Tags, FirstPurchase unset) fail closed
// per the condition evaluator's contract.
type Customer struct {
	ID            string
	Group         string
	Tags          []string
	FirstPurchase bool
	// Known reports whether customer data was supplied at all; when false,
	// every customer-scoped condition fails closed.
	Known bool
}

// HasTag reports whether the customer carries tag.
func (c Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Context is the full evaluation context a discount condition or
// calculation runs against.
type Context struct {
	Items           []Item
	Customer        Customer
	ShippingAmount  float64
	EvaluationDate  time.Time
	CustomerUsage   map[string]int // discountID -> usage count by this customer
	AppliedCodes    []string
}

// Subtotal sums UnitPrice*Quantity across every cart item.
func (c Context) Subtotal() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Total()
	}
	return total
}

// TotalQuantity sums quantities across items, optionally restricted to a
// set of product ids. A nil/empty productIDs means "all items".
func (c Context) TotalQuantity(productIDs []string) float64 {
	var allowed map[string]bool
	if len(productIDs) > 0 {
		allowed = make(map[string]bool, len(productIDs))
		for _, id := range productIDs {
			allowed[id] = true
		}
	}
	var total float64
	for _, item := range c.Items {
		if allowed != nil && !allowed[item.ProductID] {
			continue
		}
		total += item.Quantity
	}
	return total
}

// Now returns the evaluation instant: EvaluationDate when set, otherwise the
// current instant.
func (c Context) Now() time.Time {
	if c.EvaluationDate.IsZero() {
		return time.Now().UTC()
	}
	return c.EvaluationDate
}
