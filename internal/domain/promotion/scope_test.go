package promotion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalTime = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// activePromo returns a promotion that passes every dimension for the
// given order unless the test mutates it.
func activePromo() *Promotion {
	return &Promotion{
		ID:       "p1",
		Code:     "TEST",
		Type:     TypePercentage,
		IsActive: true,
		StartAt:  evalTime.Add(-24 * time.Hour),
		EndAt:    evalTime.Add(24 * time.Hour),
		Scope: Scope{
			AllItems:     true,
			AllCustomers: true,
			WalkIn:       true,
		},
	}
}

func coffeeOrder() OrderContext {
	return OrderContext{
		Lines: []OrderLine{
			{ItemID: "item-latte", CategoryID: "cat-coffee", Quantity: 2, UnitPrice: decimal.NewFromInt(45000)},
			{ItemID: "item-muffin", CategoryID: "cat-pastry", Quantity: 1, UnitPrice: decimal.NewFromInt(30000)},
		},
		CustomerID: "cust-anna",
	}
}

func TestCheckScope_AllDimensionsPass(t *testing.T) {
	require.NoError(t, CheckScope(activePromo(), coffeeOrder(), evalTime))
}

func TestCheckScope_ProductDimension(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		order   OrderContext
		covered bool
	}{
		{
			name:    "all items flag covers anything",
			scope:   Scope{AllItems: true, AllCustomers: true, WalkIn: true},
			order:   coffeeOrder(),
			covered: true,
		},
		{
			name: "all items flag overrides a stale item list",
			scope: Scope{
				AllItems: true, AllCustomers: true,
				ItemIDs: []string{"item-nothing-matches"},
			},
			order:   coffeeOrder(),
			covered: true,
		},
		{
			name:    "matching item id",
			scope:   Scope{ItemIDs: []string{"item-latte"}, AllCustomers: true},
			order:   coffeeOrder(),
			covered: true,
		},
		{
			name:    "matching category id",
			scope:   Scope{CategoryIDs: []string{"cat-pastry"}, AllCustomers: true},
			order:   coffeeOrder(),
			covered: true,
		},
		{
			name:  "matching combo id",
			scope: Scope{ComboIDs: []string{"combo-breakfast"}, AllCustomers: true},
			order: OrderContext{
				ComboIDs:   []string{"combo-breakfast"},
				CustomerID: "cust-anna",
			},
			covered: true,
		},
		{
			name:    "no product overlap",
			scope:   Scope{ItemIDs: []string{"item-espresso"}, CategoryIDs: []string{"cat-tea"}, AllCustomers: true},
			order:   coffeeOrder(),
			covered: false,
		},
		{
			name:    "empty scope covers nothing",
			scope:   Scope{AllCustomers: true},
			order:   coffeeOrder(),
			covered: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := activePromo()
			p.Scope = tt.scope

			err := CheckScope(p, tt.order, evalTime)
			if tt.covered {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrProductNotCovered)
			}
		})
	}
}

func TestCheckScope_CustomerDimension(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		order   OrderContext
		wantErr error
	}{
		{
			name:  "all customers",
			scope: Scope{AllItems: true, AllCustomers: true},
			order: coffeeOrder(),
		},
		{
			name:  "explicit customer id",
			scope: Scope{AllItems: true, CustomerIDs: []string{"cust-anna"}},
			order: coffeeOrder(),
		},
		{
			name:  "group membership",
			scope: Scope{AllItems: true, CustomerGroupIDs: []string{"grp-vip"}},
			order: OrderContext{
				Lines:            coffeeOrder().Lines,
				CustomerID:       "cust-anna",
				CustomerGroupIDs: []string{"grp-vip", "grp-staff"},
			},
		},
		{
			name:    "customer not listed",
			scope:   Scope{AllItems: true, CustomerIDs: []string{"cust-bao"}},
			order:   coffeeOrder(),
			wantErr: ErrCustomerNotCovered,
		},
		{
			name:  "walk-in allowed",
			scope: Scope{AllItems: true, WalkIn: true},
			order: OrderContext{Lines: coffeeOrder().Lines},
		},
		{
			name:    "walk-in not allowed even with all customers",
			scope:   Scope{AllItems: true, AllCustomers: true},
			order:   OrderContext{Lines: coffeeOrder().Lines},
			wantErr: ErrWalkInNotCovered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := activePromo()
			p.Scope = tt.scope

			err := CheckScope(p, tt.order, evalTime)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckScope_MinOrderValue(t *testing.T) {
	p := activePromo()
	p.MinOrderValue = decimal.NewFromInt(200000)

	// Subtotal is 2*45000 + 30000 = 120000, below the threshold.
	err := CheckScope(p, coffeeOrder(), evalTime)
	require.Error(t, err)

	var minErr *MinOrderError
	require.ErrorAs(t, err, &minErr)
	assert.True(t, minErr.Required.Equal(decimal.NewFromInt(200000)))

	p.MinOrderValue = decimal.NewFromInt(120000)
	assert.NoError(t, CheckScope(p, coffeeOrder(), evalTime), "subtotal equal to the minimum passes")
}

func TestCheckScope_TemporalDimension(t *testing.T) {
	t.Run("inactive", func(t *testing.T) {
		p := activePromo()
		p.IsActive = false
		assert.ErrorIs(t, CheckScope(p, coffeeOrder(), evalTime), ErrInactive)
	})
	t.Run("not started", func(t *testing.T) {
		p := activePromo()
		p.StartAt = evalTime.Add(time.Hour)
		assert.ErrorIs(t, CheckScope(p, coffeeOrder(), evalTime), ErrNotStarted)
	})
	t.Run("ended", func(t *testing.T) {
		p := activePromo()
		p.EndAt = evalTime.Add(-time.Hour)
		assert.ErrorIs(t, CheckScope(p, coffeeOrder(), evalTime), ErrEnded)
	})
	t.Run("boundary instants are inside the window", func(t *testing.T) {
		p := activePromo()
		assert.NoError(t, CheckScope(p, coffeeOrder(), p.StartAt))
		assert.NoError(t, CheckScope(p, coffeeOrder(), p.EndAt))
	})
}

func TestCheckScope_FirstFailingDimensionWins(t *testing.T) {
	// Both the product and temporal dimensions fail; the product
	// dimension is checked first and names the reason.
	p := activePromo()
	p.Scope = Scope{ItemIDs: []string{"item-nowhere"}, AllCustomers: true}
	p.IsActive = false

	assert.ErrorIs(t, CheckScope(p, coffeeOrder(), evalTime), ErrProductNotCovered)
}

func TestOrderContext_Subtotal(t *testing.T) {
	assert.True(t, OrderContext{}.Subtotal().IsZero())

	got := coffeeOrder().Subtotal()
	assert.True(t, got.Equal(decimal.NewFromInt(120000)), "got %s", got)
}
