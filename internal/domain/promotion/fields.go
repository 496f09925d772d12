package promotion

import "github.com/go-faster/errors"

// FieldSet records which promotion fields carry meaning for a given
// Type. The form controller uses it to show or hide inputs and the
// payload assembler uses it to omit irrelevant fields from requests;
// the calculator relies on the same table to decide which formula runs.
type FieldSet struct {
	MinOrderValue   bool
	DiscountValue   bool
	MaxDiscount     bool
	BuyQuantity     bool
	GetQuantity     bool
	RequireSameItem bool
	GiftItems       bool
}

// fieldTable is the single source of truth for per-type field
// relevance. Keep it total over the four Type values.
var fieldTable = map[Type]FieldSet{
	TypePercentage: {
		MinOrderValue: true,
		DiscountValue: true,
		MaxDiscount:   true,
	},
	TypeFixedAmount: {
		MinOrderValue: true,
		DiscountValue: true,
	},
	TypeFixedPrice: {
		MinOrderValue: true,
		DiscountValue: true,
	},
	TypeGift: {
		BuyQuantity:     true,
		GetQuantity:     true,
		RequireSameItem: true,
		GiftItems:       true,
	},
}

// FieldsFor returns the FieldSet for the given promotion type. An
// unknown type is an error; callers must not treat it as an empty set.
func FieldsFor(t Type) (FieldSet, error) {
	fs, ok := fieldTable[t]
	if !ok {
		return FieldSet{}, errors.Wrapf(ErrUnknownType, "type %d", int(t))
	}
	return fs, nil
}
