package promotion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidationError is a client-side form error. It is raised before any
// request leaves the process.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// SavePayload is the single tagged-variant body used for both create
// and update. The Type field is the tag: validation and request
// assembly branch on it, and fields outside the type's FieldSet are
// dropped from the outbound request entirely so that server defaults
// survive.
type SavePayload struct {
	Type        Type
	Code        string
	Name        string
	Description string

	DiscountValue decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   decimal.Decimal

	BuyQuantity     int
	GetQuantity     int
	RequireSameItem bool
	GiftItemIDs     []string

	StartAt  time.Time
	EndAt    time.Time
	IsActive bool

	MaxTotalUsage       int
	MaxUsagePerCustomer int

	Scope Scope
}

// Validate enforces the per-type field rules at save time. Evaluation
// never re-validates these; a stored promotion is trusted.
func (p SavePayload) Validate() error {
	fields, err := FieldsFor(p.Type)
	if err != nil {
		return err
	}

	if p.Name == "" {
		return &ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if p.Code == "" {
		return &ValidationError{Field: "code", Detail: "must not be empty"}
	}
	if !p.EndAt.IsZero() && !p.StartAt.IsZero() && p.EndAt.Before(p.StartAt) {
		return &ValidationError{Field: "endDateTime", Detail: "must not precede startDateTime"}
	}

	if fields.DiscountValue {
		if !p.DiscountValue.IsPositive() {
			return &ValidationError{Field: "discountValue", Detail: "must be greater than zero"}
		}
		if p.Type == TypePercentage && p.DiscountValue.GreaterThan(hundred) {
			return &ValidationError{Field: "discountValue", Detail: "percentage must be between 0 and 100"}
		}
	}
	if fields.MinOrderValue && p.MinOrderValue.IsNegative() {
		return &ValidationError{Field: "minOrderValue", Detail: "must not be negative"}
	}
	if fields.MaxDiscount && p.MaxDiscount.IsNegative() {
		return &ValidationError{Field: "maxDiscount", Detail: "must not be negative"}
	}

	if fields.BuyQuantity && p.BuyQuantity <= 0 {
		return &ValidationError{Field: "buyQuantity", Detail: "must be greater than zero"}
	}
	if fields.GetQuantity && p.GetQuantity <= 0 {
		return &ValidationError{Field: "getQuantity", Detail: "must be greater than zero"}
	}
	if fields.GiftItems && len(p.GiftItemIDs) == 0 {
		return &ValidationError{Field: "giftItems", Detail: "at least one gift item is required"}
	}

	if p.MaxTotalUsage < 0 {
		return &ValidationError{Field: "maxTotalUsage", Detail: "must not be negative"}
	}
	if p.MaxUsagePerCustomer < 0 {
		return &ValidationError{Field: "maxUsagePerCustomer", Detail: "must not be negative"}
	}
	return nil
}

// SaveRequest is the outbound JSON body. Pointer fields are only set
// when the FieldSet marks them relevant, so irrelevant fields are
// omitted rather than sent as zeros.
type SaveRequest struct {
	TypeID      int    `json:"typeId"`
	Code        string `json:"code,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	DiscountValue *decimal.Decimal `json:"discountValue,omitempty"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`

	BuyQuantity     *int     `json:"buyQuantity,omitempty"`
	GetQuantity     *int     `json:"getQuantity,omitempty"`
	RequireSameItem *bool    `json:"requireSameItem,omitempty"`
	GiftItemIDs     []string `json:"giftItemIds,omitempty"`

	StartDateTime time.Time `json:"startDateTime"`
	EndDateTime   time.Time `json:"endDateTime"`
	IsActive      bool      `json:"isActive"`

	MaxTotalUsage       *int `json:"maxTotalUsage,omitempty"`
	MaxUsagePerCustomer *int `json:"maxUsagePerCustomer,omitempty"`

	ApplyToAllItems          bool     `json:"applyToAllItems"`
	ApplyToAllCategories     bool     `json:"applyToAllCategories"`
	ApplyToAllCombos         bool     `json:"applyToAllCombos"`
	ApplyToAllCustomers      bool     `json:"applyToAllCustomers"`
	ApplyToAllCustomerGroups bool     `json:"applyToAllCustomerGroups"`
	ApplyToWalkIn            bool     `json:"applyToWalkIn"`
	ApplicableItemIDs        []string `json:"applicableItemIds,omitempty"`
	ApplicableCategoryIDs    []string `json:"applicableCategoryIds,omitempty"`
	ApplicableComboIDs       []string `json:"applicableComboIds,omitempty"`
	ApplicableCustomerIDs    []string `json:"applicableCustomerIds,omitempty"`
	ApplicableCustomerGroups []string `json:"applicableCustomerGroupIds,omitempty"`
}

// BuildRequest validates the payload and assembles the outbound request
// for the tagged create/update operation.
func (p SavePayload) BuildRequest() (*SaveRequest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	fields, err := FieldsFor(p.Type)
	if err != nil {
		return nil, err
	}

	req := &SaveRequest{
		TypeID:        int(p.Type),
		Code:          p.Code,
		Name:          p.Name,
		Description:   p.Description,
		StartDateTime: p.StartAt,
		EndDateTime:   p.EndAt,
		IsActive:      p.IsActive,

		ApplyToAllItems:          p.Scope.AllItems,
		ApplyToAllCategories:     p.Scope.AllCategories,
		ApplyToAllCombos:         p.Scope.AllCombos,
		ApplyToAllCustomers:      p.Scope.AllCustomers,
		ApplyToAllCustomerGroups: p.Scope.AllCustomerGroups,
		ApplyToWalkIn:            p.Scope.WalkIn,
		ApplicableItemIDs:        p.Scope.ItemIDs,
		ApplicableCategoryIDs:    p.Scope.CategoryIDs,
		ApplicableComboIDs:       p.Scope.ComboIDs,
		ApplicableCustomerIDs:    p.Scope.CustomerIDs,
		ApplicableCustomerGroups: p.Scope.CustomerGroupIDs,
	}

	if fields.DiscountValue {
		req.DiscountValue = ptr(p.DiscountValue)
	}
	if fields.MinOrderValue {
		req.MinOrderValue = ptr(p.MinOrderValue)
	}
	if fields.MaxDiscount && p.MaxDiscount.IsPositive() {
		req.MaxDiscount = ptr(p.MaxDiscount)
	}
	if fields.BuyQuantity {
		req.BuyQuantity = ptr(p.BuyQuantity)
	}
	if fields.GetQuantity {
		req.GetQuantity = ptr(p.GetQuantity)
	}
	if fields.RequireSameItem {
		req.RequireSameItem = ptr(p.RequireSameItem)
	}
	if fields.GiftItems {
		req.GiftItemIDs = p.GiftItemIDs
	}
	if p.MaxTotalUsage > 0 {
		req.MaxTotalUsage = ptr(p.MaxTotalUsage)
	}
	if p.MaxUsagePerCustomer > 0 {
		req.MaxUsagePerCustomer = ptr(p.MaxUsagePerCustomer)
	}
	return req, nil
}

// Apply copies the payload onto a promotion record, honouring the
// FieldSet: irrelevant fields are reset to their zero values so a type
// change cannot leak stale settings.
func (p SavePayload) Apply(dst *Promotion) error {
	fields, err := FieldsFor(p.Type)
	if err != nil {
		return err
	}

	dst.Type = p.Type
	dst.Name = p.Name
	dst.Description = p.Description
	dst.StartAt = p.StartAt
	dst.EndAt = p.EndAt
	dst.IsActive = p.IsActive
	dst.MaxTotalUsage = p.MaxTotalUsage
	dst.MaxUsagePerCustomer = p.MaxUsagePerCustomer
	dst.Scope = p.Scope

	dst.DiscountValue = decimal.Zero
	dst.MinOrderValue = decimal.Zero
	dst.MaxDiscount = decimal.Zero
	dst.BuyQuantity = 0
	dst.GetQuantity = 0
	dst.RequireSameItem = false
	dst.GiftItemIDs = nil

	if fields.DiscountValue {
		dst.DiscountValue = p.DiscountValue
	}
	if fields.MinOrderValue {
		dst.MinOrderValue = p.MinOrderValue
	}
	if fields.MaxDiscount {
		dst.MaxDiscount = p.MaxDiscount
	}
	if fields.BuyQuantity {
		dst.BuyQuantity = p.BuyQuantity
	}
	if fields.GetQuantity {
		dst.GetQuantity = p.GetQuantity
	}
	if fields.RequireSameItem {
		dst.RequireSameItem = p.RequireSameItem
	}
	if fields.GiftItems {
		dst.GiftItemIDs = p.GiftItemIDs
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
