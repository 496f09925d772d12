package promoclient

import (
	"context"
	"sort"
	"sync"

	"github.com/go-faster/errors"
)

// CheckoutSession tracks which promotions the server has confirmed for
// one order. Local state changes only after the server accepts the
// operation, so a rejected apply never leaves a phantom discount on the
// ticket.
type CheckoutSession struct {
	client     *Client
	orderID    string
	customerID string

	mu      sync.Mutex
	applied map[string]struct{}
}

// NewCheckoutSession starts a session for orderID. customerID may be
// empty for walk-in orders.
func NewCheckoutSession(client *Client, orderID, customerID string) *CheckoutSession {
	return &CheckoutSession{
		client:     client,
		orderID:    orderID,
		customerID: customerID,
		applied:    make(map[string]struct{}),
	}
}

// Apply commits promotionID to the order. On ErrUsageExhausted the
// session state is unchanged; the caller should refresh previews.
func (s *CheckoutSession) Apply(ctx context.Context, promotionID string) error {
	err := s.client.Apply(ctx, ApplyParams{
		OrderID:     s.orderID,
		PromotionID: promotionID,
		CustomerID:  s.customerID,
	})
	if err != nil {
		return errors.Wrapf(err, "apply promotion %s", promotionID)
	}

	s.mu.Lock()
	s.applied[promotionID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Unapply releases promotionID from the order. ErrNotApplied means the
// server holds no usage row, so the local record is dropped as well.
func (s *CheckoutSession) Unapply(ctx context.Context, promotionID string) error {
	err := s.client.Unapply(ctx, s.orderID, promotionID)
	if err != nil && !errors.Is(err, ErrNotApplied) {
		return errors.Wrapf(err, "unapply promotion %s", promotionID)
	}

	s.mu.Lock()
	delete(s.applied, promotionID)
	s.mu.Unlock()
	return err
}

// Applied returns the confirmed promotion IDs in stable order.
func (s *CheckoutSession) Applied() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.applied))
	for id := range s.applied {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Rollback unapplies every confirmed promotion, e.g. when the order is
// voided. It keeps going past individual failures and returns the
// first error encountered.
func (s *CheckoutSession) Rollback(ctx context.Context) error {
	var first error
	for _, id := range s.Applied() {
		if err := s.Unapply(ctx, id); err != nil && !errors.Is(err, ErrNotApplied) {
			if first == nil {
				first = err
			}
		}
	}
	return first
}
