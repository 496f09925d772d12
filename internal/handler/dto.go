package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kavepos/promo-engine/internal/domain/catalog"
	"github.com/kavepos/promo-engine/internal/domain/promotion"
)

// errorResponse is the uniform error body. ErrorCode is a stable
// machine-readable identifier so clients never branch on the wording
// of Message.
type errorResponse struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message"`
}

type promotionResponse struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	TypeID        int     `json:"typeId"`
	Type          string  `json:"type"`
	DiscountValue float64 `json:"discountValue,omitempty"`
	MinOrderValue float64 `json:"minOrderValue,omitempty"`
	MaxDiscount   float64 `json:"maxDiscount,omitempty"`

	BuyQuantity     int      `json:"buyQuantity,omitempty"`
	GetQuantity     int      `json:"getQuantity,omitempty"`
	RequireSameItem bool     `json:"requireSameItem,omitempty"`
	GiftItemIDs     []string `json:"giftItemIds,omitempty"`

	StartDateTime time.Time `json:"startDateTime"`
	EndDateTime   time.Time `json:"endDateTime"`
	IsActive      bool      `json:"isActive"`

	MaxTotalUsage       int `json:"maxTotalUsage,omitempty"`
	MaxUsagePerCustomer int `json:"maxUsagePerCustomer,omitempty"`
	CurrentTotalUsage   int `json:"currentTotalUsage"`

	Scope scopeDTO `json:"scope"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type scopeDTO struct {
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

// promotionDetailResponse expands the scope ID lists and gift catalog
// into full catalog records for the edit form.
type promotionDetailResponse struct {
	promotionResponse

	ApplicableItems          []itemDTO          `json:"applicableItems,omitempty"`
	ApplicableCategories     []categoryDTO      `json:"applicableCategories,omitempty"`
	ApplicableCombos         []comboDTO         `json:"applicableCombos,omitempty"`
	ApplicableCustomers      []customerDTO      `json:"applicableCustomers,omitempty"`
	ApplicableCustomerGroups []customerGroupDTO `json:"applicableCustomerGroupDetails,omitempty"`
	GiftItems                []itemDTO          `json:"giftItems,omitempty"`
}

type itemDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	CategoryID string  `json:"categoryId"`
}

type categoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type comboDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type customerDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type customerGroupDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listResponse struct {
	Data  []promotionResponse `json:"data"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// saveRequest is the tagged-variant create/update body; typeId is the tag.
type saveRequest struct {
	TypeID      int    `json:"typeId"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`

	DiscountValue float64 `json:"discountValue"`
	MinOrderValue float64 `json:"minOrderValue"`
	MaxDiscount   float64 `json:"maxDiscount"`

	BuyQuantity     int      `json:"buyQuantity"`
	GetQuantity     int      `json:"getQuantity"`
	RequireSameItem bool     `json:"requireSameItem"`
	GiftItemIDs     []string `json:"giftItemIds"`

	StartDateTime time.Time `json:"startDateTime"`
	EndDateTime   time.Time `json:"endDateTime"`
	IsActive      bool      `json:"isActive"`

	MaxTotalUsage       int `json:"maxTotalUsage"`
	MaxUsagePerCustomer int `json:"maxUsagePerCustomer"`

	Scope scopeDTO `json:"scope"`
}

func (r saveRequest) toPayload() promotion.SavePayload {
	return promotion.SavePayload{
		Type:        promotion.Type(r.TypeID),
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,

		DiscountValue: decimal.NewFromFloat(r.DiscountValue),
		MinOrderValue: decimal.NewFromFloat(r.MinOrderValue),
		MaxDiscount:   decimal.NewFromFloat(r.MaxDiscount),

		BuyQuantity:     r.BuyQuantity,
		GetQuantity:     r.GetQuantity,
		RequireSameItem: r.RequireSameItem,
		GiftItemIDs:     r.GiftItemIDs,

		StartAt:  r.StartDateTime,
		EndAt:    r.EndDateTime,
		IsActive: r.IsActive,

		MaxTotalUsage:       r.MaxTotalUsage,
		MaxUsagePerCustomer: r.MaxUsagePerCustomer,

		Scope: r.Scope.toDomain(),
	}
}

func (s scopeDTO) toDomain() promotion.Scope {
	return promotion.Scope{
		AllItems:          s.ApplyToAllItems,
		AllCategories:     s.ApplyToAllCategories,
		AllCombos:         s.ApplyToAllCombos,
		AllCustomers:      s.ApplyToAllCustomers,
		AllCustomerGroups: s.ApplyToAllCustomerGroups,
		WalkIn:            s.ApplyToWalkIn,
		ItemIDs:           s.ApplicableItemIDs,
		CategoryIDs:       s.ApplicableCategoryIDs,
		ComboIDs:          s.ApplicableComboIDs,
		CustomerIDs:       s.ApplicableCustomerIDs,
		CustomerGroupIDs:  s.ApplicableCustomerGroups,
	}
}

// orderContextRequest is the order snapshot the checkout sends for
// evaluation. Prices and categories are resolved server-side from the
// catalog; the client only names items and quantities.
type orderContextRequest struct {
	OrderID    string             `json:"orderId"`
	CustomerID string             `json:"customerId"`
	Items      []orderItemRequest `json:"items"`
	ComboIDs   []string           `json:"comboIds"`
}

type orderItemRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type applyRequest struct {
	OrderID       string `json:"orderId"`
	PromotionID   string `json:"promotionId"`
	PromotionCode string `json:"promotionCode"`
	CustomerID    string `json:"customerId"`
}

type unapplyRequest struct {
	OrderID     string `json:"orderId"`
	PromotionID string `json:"promotionId"`
}

type applyResponse struct {
	OrderID     string `json:"orderId"`
	PromotionID string `json:"promotionId"`
	Applied     bool   `json:"applied"`
}

type unapplyResponse struct {
	OrderID     string `json:"orderId"`
	PromotionID string `json:"promotionId"`
	Applied     bool   `json:"applied"`
}

// previewResponse renders one DiscountPreview for the checkout UI.
type previewResponse struct {
	PromotionID     string    `json:"promotionId"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	TypeID          int       `json:"typeId"`
	CanApply        bool      `json:"canApply"`
	Reason          string    `json:"reason,omitempty"`
	DiscountPreview float64   `json:"discountPreview"`
	GiftCount       int       `json:"giftCount,omitempty"`
	GiftItems       []itemDTO `json:"giftItems,omitempty"`
}

func toPromotionResponse(p *promotion.Promotion) promotionResponse {
	return promotionResponse{
		ID:            p.ID,
		Code:          p.Code,
		Name:          p.Name,
		Description:   p.Description,
		TypeID:        int(p.Type),
		Type:          p.Type.String(),
		DiscountValue: p.DiscountValue.InexactFloat64(),
		MinOrderValue: p.MinOrderValue.InexactFloat64(),
		MaxDiscount:   p.MaxDiscount.InexactFloat64(),

		BuyQuantity:     p.BuyQuantity,
		GetQuantity:     p.GetQuantity,
		RequireSameItem: p.RequireSameItem,
		GiftItemIDs:     p.GiftItemIDs,

		StartDateTime: p.StartAt,
		EndDateTime:   p.EndAt,
		IsActive:      p.IsActive,

		MaxTotalUsage:       p.MaxTotalUsage,
		MaxUsagePerCustomer: p.MaxUsagePerCustomer,
		CurrentTotalUsage:   p.CurrentTotalUsage,

		Scope: scopeDTO{
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
		},

		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toItemDTOs(items []catalog.Item) []itemDTO {
	out := make([]itemDTO, len(items))
	for i, it := range items {
		out[i] = itemDTO{
			ID:         it.ID,
			Name:       it.Name,
			Price:      it.Price.InexactFloat64(),
			CategoryID: it.CategoryID,
		}
	}
	return out
}
