package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Evaluator runs the full rule pipeline for a promotion against an
// order context: scope resolution, the usage gate, then the discount
// calculator or gift entitlement. It mirrors the server-side rules for
// UI preview; the repository stays authoritative at apply time.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Preview evaluates one promotion against the order and renders the
// outcome as a DiscountPreview. Eligibility failures are data, not
// errors: they come back as CanApply=false with the first failing
// dimension's reason. Only unexpected failures (repository errors,
// unknown types) surface as errors.
func (e *Evaluator) Preview(ctx context.Context, p *Promotion, order OrderContext) (*DiscountPreview, error) {
	if err := CheckScope(p, order, e.now()); err != nil {
		return ineligible(p, err), nil
	}

	snap := UsageSnapshot{}
	if p.MaxUsagePerCustomer > 0 && order.CustomerID != "" {
		uses, err := e.repo.CustomerUsage(ctx, p.ID, order.CustomerID)
		if err != nil {
			return nil, errors.Wrap(err, "customer usage")
		}
		snap.CustomerUses = &uses
	}
	if err := CheckUsage(p, order.CustomerID, snap); err != nil {
		return ineligible(p, err), nil
	}

	result, err := ComputeDiscount(p, order)
	if err != nil {
		return nil, errors.Wrap(err, "compute discount")
	}

	return &DiscountPreview{
		Promotion: p,
		CanApply:  true,
		Discount:  result.Amount,
		Gift:      result.Gift,
	}, nil
}

// Available previews every listed promotion against the order and
// returns all results, eligible or not, for the checkout UI to render.
func (e *Evaluator) Available(ctx context.Context, order OrderContext) ([]DiscountPreview, error) {
	promos, err := e.repo.ListAllActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active promotions")
	}

	previews := make([]DiscountPreview, 0, len(promos))
	for i := range promos {
		pv, err := e.Preview(ctx, &promos[i], order)
		if err != nil {
			return nil, err
		}
		previews = append(previews, *pv)
	}
	return previews, nil
}

// CheckEligibility answers the order-independent eligibility question
// for a single customer: customer coverage, temporal window and usage
// caps, ignoring order contents entirely.
func (e *Evaluator) CheckEligibility(ctx context.Context, p *Promotion, customerID string, groupIDs []string) (*DiscountPreview, error) {
	probe := OrderContext{CustomerID: customerID, CustomerGroupIDs: groupIDs}

	if err := customerCovered(p.Scope, probe); err != nil {
		return ineligible(p, err), nil
	}
	now := e.now()
	if !p.IsActive {
		return ineligible(p, ErrInactive), nil
	}
	if now.Before(p.StartAt) {
		return ineligible(p, ErrNotStarted), nil
	}
	if now.After(p.EndAt) {
		return ineligible(p, ErrEnded), nil
	}

	snap := UsageSnapshot{}
	if p.MaxUsagePerCustomer > 0 && customerID != "" {
		uses, err := e.repo.CustomerUsage(ctx, p.ID, customerID)
		if err != nil {
			return nil, errors.Wrap(err, "customer usage")
		}
		snap.CustomerUses = &uses
	}
	if err := CheckUsage(p, customerID, snap); err != nil {
		return ineligible(p, err), nil
	}

	return &DiscountPreview{Promotion: p, CanApply: true, Discount: decimal.Zero}, nil
}

// Apply commits one usage of the promotion for the order. The
// repository enforces the caps and the one-apply-per-order rule
// atomically, so no local state is touched before the commit succeeds.
func (e *Evaluator) Apply(ctx context.Context, p *Promotion, orderID, customerID string) error {
	if err := e.repo.IncrementUsage(ctx, p.ID, orderID, customerID); err != nil {
		if errors.Is(err, ErrUsageExhausted) || errors.Is(err, ErrAlreadyApplied) {
			return err
		}
		return errors.Wrap(err, "increment usage")
	}
	return nil
}

// Unapply reverses a prior Apply for the same order, restoring the
// usage counter to its pre-apply value.
func (e *Evaluator) Unapply(ctx context.Context, p *Promotion, orderID string) error {
	if err := e.repo.DecrementUsage(ctx, p.ID, orderID); err != nil {
		if errors.Is(err, ErrNotApplied) {
			return err
		}
		return errors.Wrap(err, "decrement usage")
	}
	return nil
}

func ineligible(p *Promotion, reason error) *DiscountPreview {
	return &DiscountPreview{
		Promotion: p,
		CanApply:  false,
		Reason:    reason.Error(),
		Discount:  decimal.Zero,
	}
}
