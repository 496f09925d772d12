// Package catalog holds the read-only product and customer entities the
// promotion engine resolves IDs against. The back office owns their
// CRUD elsewhere; the engine only looks them up.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a looked-up catalog entity does not exist.
var ErrNotFound = errors.New("catalog entity not found")

// Item is a sellable menu item.
type Item struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	CategoryID string
}

// Category groups items on the menu.
type Category struct {
	ID   string
	Name string
}

// Combo is a fixed bundle of items sold at its own price.
type Combo struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Customer is a registered customer record. Walk-in orders have none.
type Customer struct {
	ID       string
	Name     string
	Phone    string
	GroupIDs []string
}

// CustomerGroup is a named customer segment used for promotion scoping.
type CustomerGroup struct {
	ID   string
	Name string
}

// Repository is the lookup port the promotion engine consumes.
type Repository interface {
	ItemsByIDs(ctx context.Context, ids []string) ([]Item, error)
	CategoriesByIDs(ctx context.Context, ids []string) ([]Category, error)
	CombosByIDs(ctx context.Context, ids []string) ([]Combo, error)
	CustomersByIDs(ctx context.Context, ids []string) ([]Customer, error)
	CustomerGroupsByIDs(ctx context.Context, ids []string) ([]CustomerGroup, error)
	// GetCustomer resolves a single customer with group memberships.
	GetCustomer(ctx context.Context, id string) (*Customer, error)
}
