// Package promotion implements the promotion rule model for the POS
// back office: discount types, applicability scoping, usage caps and
// gift entitlements, plus the evaluation pipeline that turns a
// promotion and an order context into a DiscountPreview.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported promotion kinds. The numeric values are
// part of the wire contract with the backend and must not change.
type Type int

const (
	// TypePercentage discounts a percentage of the order subtotal,
	// optionally capped by MaxDiscount.
	TypePercentage Type = 1
	// TypeFixedAmount discounts a fixed currency amount, never more
	// than the subtotal itself.
	TypeFixedAmount Type = 2
	// TypeFixedPrice sells the applicable items for a fixed target
	// price; the discount is whatever exceeds that price.
	TypeFixedPrice Type = 3
	// TypeGift grants free items instead of a monetary discount.
	TypeGift Type = 4
)

// String returns the lowercase name used in logs and API payloads.
func (t Type) String() string {
	switch t {
	case TypePercentage:
		return "percentage"
	case TypeFixedAmount:
		return "fixed_amount"
	case TypeFixedPrice:
		return "fixed_price"
	case TypeGift:
		return "gift"
	default:
		return "unknown"
	}
}

// ErrUnknownType is returned whenever a promotion carries a type value
// outside the four supported kinds. It is always a hard error, never a
// silent no-op.
var ErrUnknownType = errors.New("unknown promotion type")

// Scope describes which orders a promotion may apply to. Each applyToAll
// flag overrides its paired ID list entirely: when the flag is set the
// list must not be consulted, whatever it contains.
type Scope struct {
	AllItems          bool
	AllCategories     bool
	AllCombos         bool
	AllCustomers      bool
	AllCustomerGroups bool
	WalkIn            bool

	ItemIDs          []string
	CategoryIDs      []string
	ComboIDs         []string
	CustomerIDs      []string
	CustomerGroupIDs []string
}

// Promotion mirrors the backend promotion record. Fields outside the
// active set for the promotion's Type (see FieldsFor) are carried but
// ignored by evaluation.
type Promotion struct {
	ID          string
	Code        string
	Name        string
	Description string
	Type        Type

	DiscountValue decimal.Decimal
	MinOrderValue decimal.Decimal
	// MaxDiscount caps percentage discounts. Non-positive means no cap.
	MaxDiscount decimal.Decimal

	BuyQuantity     int
	GetQuantity     int
	RequireSameItem bool
	GiftItemIDs     []string

	StartAt  time.Time
	EndAt    time.Time
	IsActive bool

	// MaxTotalUsage and MaxUsagePerCustomer are caps; zero means
	// unlimited. CurrentTotalUsage is a server-owned monotonic
	// counter, read as a snapshot.
	MaxTotalUsage       int
	MaxUsagePerCustomer int
	CurrentTotalUsage   int

	Scope Scope

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// GiftEntitlement is the computed free-item grant of a gift promotion
// for a concrete order.
type GiftEntitlement struct {
	// GiftCount is the total number of free units the customer may pick.
	GiftCount int
	// GiftItemIDs is the catalog of items the units may be picked from.
	GiftItemIDs []string
}

// DiscountPreview is the checkout-facing evaluation result. It is
// derived, never persisted.
type DiscountPreview struct {
	Promotion *Promotion
	CanApply  bool
	// Reason names the first failing eligibility dimension when
	// CanApply is false.
	Reason   string
	Discount decimal.Decimal
	Gift     *GiftEntitlement
}

// Sentinel errors shared across the package.
var (
	// ErrNotFound is returned when a promotion does not exist or is
	// soft-deleted.
	ErrNotFound = errors.New("promotion not found")
	// ErrCodeImmutable is returned when an update attempts to change
	// a promotion's code.
	ErrCodeImmutable = errors.New("promotion code is immutable")
	// ErrAlreadyApplied is returned when an order already holds a
	// usage of the promotion.
	ErrAlreadyApplied = errors.New("promotion already applied to this order")
	// ErrNotApplied is returned by unapply when no prior apply exists
	// for the order.
	ErrNotApplied = errors.New("promotion is not applied to this order")
)

// ListFilter narrows a promotion listing. Zero values mean "no filter".
type ListFilter struct {
	Search   string
	Type     Type
	IsActive *bool
	Limit    int
	Page     int
	Sort     string
}

// Repository is the persistence port for promotions. Usage mutation is
// authoritative here: IncrementUsage must enforce the caps atomically
// and reject double-applies per order.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Promotion, error)
	GetByCode(ctx context.Context, code string) (*Promotion, error)
	List(ctx context.Context, filter ListFilter) ([]Promotion, int, error)
	// ListAllActive returns every live, active promotion with no
	// paging. Checkout evaluation must see the full set; List's page
	// size would silently drop promotions past the first page.
	ListAllActive(ctx context.Context) ([]Promotion, error)
	Create(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	SoftDelete(ctx context.Context, id string) error

	// CustomerUsage reports how many times the customer has used the
	// promotion.
	CustomerUsage(ctx context.Context, promotionID, customerID string) (int, error)
	// IncrementUsage records one use for the order and bumps the
	// total counter. It fails with ErrUsageExhausted when a cap is
	// hit and ErrAlreadyApplied when the order already used it.
	IncrementUsage(ctx context.Context, promotionID, orderID, customerID string) error
	// DecrementUsage reverses a prior IncrementUsage for the order.
	DecrementUsage(ctx context.Context, promotionID, orderID string) error
}
