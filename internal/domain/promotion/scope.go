package promotion

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// OrderLine is a single order position as seen by the promotion engine.
type OrderLine struct {
	ItemID     string
	CategoryID string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// OrderContext carries everything scope resolution and discount math
// need to know about an order. An empty CustomerID marks a walk-in.
type OrderContext struct {
	Lines            []OrderLine
	ComboIDs         []string
	CustomerID       string
	CustomerGroupIDs []string
}

// Subtotal returns the sum of unit price times quantity across all lines.
func (o OrderContext) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Eligibility failure reasons, one per dimension. The first failing
// dimension wins; reasons are never aggregated.
var (
	ErrProductNotCovered  = errors.New("no order item, category or combo is covered by this promotion")
	ErrCustomerNotCovered = errors.New("this customer is not covered by the promotion")
	ErrWalkInNotCovered   = errors.New("promotion is not available for walk-in orders")
	ErrNotStarted         = errors.New("promotion has not started yet")
	ErrEnded              = errors.New("promotion has ended")
	ErrInactive           = errors.New("promotion is disabled")
	ErrUsageExhausted     = errors.New("promotion usage limit reached")
	// ErrUsageDeferred marks a per-customer cap that cannot be decided
	// without a customer; the server-side check-eligibility call is
	// authoritative in that case.
	ErrUsageDeferred = errors.New("per-customer usage limit requires a customer")
)

// MinOrderError reports a failed minimum-order-value dimension together
// with the required threshold.
type MinOrderError struct {
	Required decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("order subtotal is below the minimum of %s", e.Required)
}

// CheckScope evaluates the structural eligibility dimensions of the
// promotion against the order: product coverage, customer coverage,
// minimum order value and the temporal window. Usage caps are checked
// separately by the usage gate. It is a pure function of its inputs.
//
// The nil error result means every dimension passed; otherwise the
// returned error identifies the first failing dimension.
func CheckScope(p *Promotion, order OrderContext, now time.Time) error {
	if !productCovered(p.Scope, order) {
		return ErrProductNotCovered
	}
	if err := customerCovered(p.Scope, order); err != nil {
		return err
	}
	if p.MinOrderValue.IsPositive() && order.Subtotal().LessThan(p.MinOrderValue) {
		return &MinOrderError{Required: p.MinOrderValue}
	}
	if !p.IsActive {
		return ErrInactive
	}
	if now.Before(p.StartAt) {
		return ErrNotStarted
	}
	if now.After(p.EndAt) {
		return ErrEnded
	}
	return nil
}

// productCovered decides the product dimension. Items, categories and
// combos are alternative ways to match; any one suffices.
func productCovered(s Scope, order OrderContext) bool {
	if s.AllItems || s.AllCategories || s.AllCombos {
		return true
	}

	items := toSet(s.ItemIDs)
	categories := toSet(s.CategoryIDs)
	for _, l := range order.Lines {
		if _, ok := items[l.ItemID]; ok {
			return true
		}
		if _, ok := categories[l.CategoryID]; ok {
			return true
		}
	}

	combos := toSet(s.ComboIDs)
	for _, id := range order.ComboIDs {
		if _, ok := combos[id]; ok {
			return true
		}
	}
	return false
}

// customerCovered decides the customer dimension. Walk-in orders are
// covered only by the explicit walk-in flag; identified customers match
// by customer list or by any group membership.
func customerCovered(s Scope, order OrderContext) error {
	if order.CustomerID == "" {
		if s.WalkIn {
			return nil
		}
		return ErrWalkInNotCovered
	}

	if s.AllCustomers || s.AllCustomerGroups {
		return nil
	}
	if _, ok := toSet(s.CustomerIDs)[order.CustomerID]; ok {
		return nil
	}
	groups := toSet(s.CustomerGroupIDs)
	for _, g := range order.CustomerGroupIDs {
		if _, ok := groups[g]; ok {
			return nil
		}
	}
	return ErrCustomerNotCovered
}

// matchedLines returns the order lines covered by the promotion's
// product dimension. With an applyToAll flag set every line matches.
func matchedLines(s Scope, order OrderContext) []OrderLine {
	if s.AllItems || s.AllCategories {
		return order.Lines
	}
	items := toSet(s.ItemIDs)
	categories := toSet(s.CategoryIDs)

	var matched []OrderLine
	for _, l := range order.Lines {
		if _, ok := items[l.ItemID]; ok {
			matched = append(matched, l)
			continue
		}
		if _, ok := categories[l.CategoryID]; ok {
			matched = append(matched, l)
		}
	}
	return matched
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
