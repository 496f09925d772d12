package promotion

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Gift selection failures, surfaced to the customer as-is.
var (
	ErrGiftNotOffered = errors.New("item is not part of the promotion's gift catalog")
	// ErrGiftQuotaExceeded rejects an increment past the entitlement;
	// quantities are never silently clamped.
	ErrGiftQuotaExceeded = errors.New("gift quota reached")
)

// SelectedGift is one chosen free item with its quantity.
type SelectedGift struct {
	ItemID   string
	Quantity int
}

// ValidateGiftSelection checks a complete selection against the
// entitlement: the summed quantity must stay within the quota and every
// chosen item must come from the gift catalog. Quantity per item is
// unbounded except by the total cap.
func ValidateGiftSelection(selected []SelectedGift, ent GiftEntitlement) error {
	catalog := toSet(ent.GiftItemIDs)

	total := 0
	for _, g := range selected {
		if g.Quantity < 0 {
			return fmt.Errorf("negative quantity for gift item %s", g.ItemID)
		}
		if _, ok := catalog[g.ItemID]; !ok {
			return errors.Wrapf(ErrGiftNotOffered, "item %s", g.ItemID)
		}
		total += g.Quantity
	}
	if total > ent.GiftCount {
		return errors.Wrapf(ErrGiftQuotaExceeded, "%d of %d units selected", total, ent.GiftCount)
	}
	return nil
}

// GiftSelection is the checkout-side scratch buffer a customer adjusts
// while picking free items. It is transient UI state, discarded when
// the dialog closes, and never the authoritative record of anything.
type GiftSelection struct {
	ent    GiftEntitlement
	counts map[string]int
	total  int
}

// NewGiftSelection creates an empty selection for the entitlement.
func NewGiftSelection(ent GiftEntitlement) *GiftSelection {
	return &GiftSelection{
		ent:    ent,
		counts: make(map[string]int),
	}
}

// Increment adds one unit of the item. An attempt at the quota is
// rejected with ErrGiftQuotaExceeded, leaving the selection unchanged.
func (s *GiftSelection) Increment(itemID string) error {
	if _, ok := toSet(s.ent.GiftItemIDs)[itemID]; !ok {
		return errors.Wrapf(ErrGiftNotOffered, "item %s", itemID)
	}
	if s.total >= s.ent.GiftCount {
		return errors.Wrapf(ErrGiftQuotaExceeded, "%d of %d units selected", s.total, s.ent.GiftCount)
	}
	s.counts[itemID]++
	s.total++
	return nil
}

// Decrement removes one unit of the item; removing below zero is a no-op.
func (s *GiftSelection) Decrement(itemID string) {
	if s.counts[itemID] == 0 {
		return
	}
	s.counts[itemID]--
	s.total--
	if s.counts[itemID] == 0 {
		delete(s.counts, itemID)
	}
}

// Total returns the number of units currently selected.
func (s *GiftSelection) Total() int {
	return s.total
}

// Remaining returns how many more units may still be selected.
func (s *GiftSelection) Remaining() int {
	return s.ent.GiftCount - s.total
}

// Selected returns the current selection as a stable slice.
func (s *GiftSelection) Selected() []SelectedGift {
	out := make([]SelectedGift, 0, len(s.counts))
	for _, id := range s.ent.GiftItemIDs {
		if n, ok := s.counts[id]; ok {
			out = append(out, SelectedGift{ItemID: id, Quantity: n})
		}
	}
	return out
}
