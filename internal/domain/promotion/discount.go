package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountResult holds the monetary discount or the gift entitlement a
// promotion produces for an eligible order. Gift promotions always
// yield a zero Amount.
type DiscountResult struct {
	Amount decimal.Decimal
	Gift   *GiftEntitlement
}

// ComputeDiscount calculates the discount for an order the promotion is
// already known to be eligible for. Fields outside the promotion
// type's FieldSet are ignored even when populated. All currency math
// stays in decimals and is rounded exactly once, at the final amount.
func ComputeDiscount(p *Promotion, order OrderContext) (DiscountResult, error) {
	if _, err := FieldsFor(p.Type); err != nil {
		return DiscountResult{}, err
	}

	switch p.Type {
	case TypePercentage:
		return percentageDiscount(p, order.Subtotal()), nil
	case TypeFixedAmount:
		return fixedAmountDiscount(p, order.Subtotal()), nil
	case TypeFixedPrice:
		return fixedPriceDiscount(p, order), nil
	case TypeGift:
		return giftDiscount(p, order), nil
	default:
		return DiscountResult{}, errors.Wrapf(ErrUnknownType, "type %d", int(p.Type))
	}
}

func percentageDiscount(p *Promotion, subtotal decimal.Decimal) DiscountResult {
	amount := subtotal.Mul(p.DiscountValue).Div(hundred)
	if p.MaxDiscount.IsPositive() && amount.GreaterThan(p.MaxDiscount) {
		amount = p.MaxDiscount
	}
	return DiscountResult{Amount: clampNonNegative(amount).Round(2)}
}

func fixedAmountDiscount(p *Promotion, subtotal decimal.Decimal) DiscountResult {
	// A discount can never exceed the subtotal; totals stay non-negative.
	amount := decimal.Min(p.DiscountValue, subtotal)
	return DiscountResult{Amount: clampNonNegative(amount).Round(2)}
}

// fixedPriceDiscount treats DiscountValue as the target sale price for
// the items the promotion covers. When the covered subtotal is already
// at or below the target, nothing is discounted.
func fixedPriceDiscount(p *Promotion, order OrderContext) DiscountResult {
	covered := decimal.Zero
	for _, l := range matchedLines(p.Scope, order) {
		covered = covered.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	amount := covered.Sub(p.DiscountValue)
	return DiscountResult{Amount: clampNonNegative(amount).Round(2)}
}

// giftDiscount computes the gift entitlement: GetQuantity free units per
// complete BuyQuantity bundle of covered items. With RequireSameItem
// set, only units of a single item ID count toward a bundle, so the
// best-represented covered item decides the entitlement; mixed baskets
// do not combine.
func giftDiscount(p *Promotion, order OrderContext) DiscountResult {
	if p.BuyQuantity <= 0 {
		return DiscountResult{Amount: decimal.Zero}
	}

	matched := matchedLines(p.Scope, order)

	var qualifying int
	if p.RequireSameItem {
		perItem := make(map[string]int)
		for _, l := range matched {
			perItem[l.ItemID] += l.Quantity
		}
		for _, n := range perItem {
			if n > qualifying {
				qualifying = n
			}
		}
	} else {
		for _, l := range matched {
			qualifying += l.Quantity
		}
	}

	// Remainder units never partially unlock a reward cycle.
	count := p.GetQuantity * (qualifying / p.BuyQuantity)
	if count <= 0 {
		return DiscountResult{Amount: decimal.Zero}
	}

	return DiscountResult{
		Amount: decimal.Zero,
		Gift: &GiftEntitlement{
			GiftCount:   count,
			GiftItemIDs: append([]string(nil), p.GiftItemIDs...),
		},
	}
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
