package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsFor(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want FieldSet
	}{
		{
			name: "percentage",
			typ:  TypePercentage,
			want: FieldSet{MinOrderValue: true, DiscountValue: true, MaxDiscount: true},
		},
		{
			name: "fixed amount",
			typ:  TypeFixedAmount,
			want: FieldSet{MinOrderValue: true, DiscountValue: true},
		},
		{
			name: "fixed price",
			typ:  TypeFixedPrice,
			want: FieldSet{MinOrderValue: true, DiscountValue: true},
		},
		{
			name: "gift",
			typ:  TypeGift,
			want: FieldSet{BuyQuantity: true, GetQuantity: true, RequireSameItem: true, GiftItems: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FieldsFor(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldsFor_UnknownType(t *testing.T) {
	for _, typ := range []Type{0, 5, -1, 99} {
		_, err := FieldsFor(typ)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownType)
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "percentage", TypePercentage.String())
	assert.Equal(t, "fixed_amount", TypeFixedAmount.String())
	assert.Equal(t, "fixed_price", TypeFixedPrice.String())
	assert.Equal(t, "gift", TypeGift.String())
	assert.Equal(t, "unknown", Type(42).String())
}
