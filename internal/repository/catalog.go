package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kavepos/promo-engine/internal/domain/catalog"
)

const (
	itemsByIDsSQL = `SELECT id, name, price, category_id FROM items WHERE id = ANY($1)`

	categoriesByIDsSQL = `SELECT id, name FROM categories WHERE id = ANY($1)`

	combosByIDsSQL = `SELECT id, name, price FROM combos WHERE id = ANY($1)`

	customersByIDsSQL = `SELECT c.id, c.name, c.phone,
		coalesce(array_agg(m.group_id) FILTER (WHERE m.group_id IS NOT NULL), '{}')
		FROM customers c
		LEFT JOIN customer_group_members m ON m.customer_id = c.id
		WHERE c.id = ANY($1)
		GROUP BY c.id`

	customerGroupsByIDsSQL = `SELECT id, name FROM customer_groups WHERE id = ANY($1)`

	getCustomerSQL = `SELECT c.id, c.name, c.phone,
		coalesce(array_agg(m.group_id) FILTER (WHERE m.group_id IS NOT NULL), '{}')
		FROM customers c
		LEFT JOIN customer_group_members m ON m.customer_id = c.id
		WHERE c.id = $1
		GROUP BY c.id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository using the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ItemsByIDs fetches the given items in one query. Unknown IDs are
// simply absent from the result.
func (r *CatalogRepository) ItemsByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, itemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Item, error) {
		var it catalog.Item
		err := row.Scan(&it.ID, &it.Name, &it.Price, &it.CategoryID)
		return it, err
	})
}

// CategoriesByIDs fetches the given categories in one query.
func (r *CatalogRepository) CategoriesByIDs(ctx context.Context, ids []string) ([]catalog.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, categoriesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}

// CombosByIDs fetches the given combos in one query.
func (r *CatalogRepository) CombosByIDs(ctx context.Context, ids []string) ([]catalog.Combo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, combosByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying combos: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Combo, error) {
		var c catalog.Combo
		err := row.Scan(&c.ID, &c.Name, &c.Price)
		return c, err
	})
}

// CustomersByIDs fetches the given customers with group memberships.
func (r *CatalogRepository) CustomersByIDs(ctx context.Context, ids []string) ([]catalog.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, customersByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

// CustomerGroupsByIDs fetches the given customer groups in one query.
func (r *CatalogRepository) CustomerGroupsByIDs(ctx context.Context, ids []string) ([]catalog.CustomerGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, customerGroupsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying customer groups: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.CustomerGroup, error) {
		var g catalog.CustomerGroup
		err := row.Scan(&g.ID, &g.Name)
		return g, err
	})
}

// GetCustomer resolves a single customer including group memberships.
// Returns catalog.ErrNotFound for unknown IDs.
func (r *CatalogRepository) GetCustomer(ctx context.Context, id string) (*catalog.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("querying customer %q: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("scanning customer %q: %w", id, err)
	}
	return &c, nil
}

func scanCustomer(row pgx.CollectableRow) (catalog.Customer, error) {
	var c catalog.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.GroupIDs)
	return c, err
}
