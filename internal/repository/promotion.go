package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kavepos/promo-engine/internal/domain/promotion"
)

const promotionColumns = `id, code, name, description, type_id,
	discount_value, min_order_value, max_discount,
	buy_quantity, get_quantity, require_same_item, gift_item_ids,
	start_at, end_at, is_active,
	max_total_usage, max_usage_per_customer, current_total_usage,
	all_items, all_categories, all_combos, all_customers, all_customer_groups, walk_in,
	item_ids, category_ids, combo_ids, customer_ids, customer_group_ids,
	created_at, updated_at, deleted_at`

const (
	getPromotionByIDSQL = `SELECT ` + promotionColumns +
		` FROM promotions WHERE id = $1 AND deleted_at IS NULL`

	getPromotionByCodeSQL = `SELECT ` + promotionColumns +
		` FROM promotions WHERE UPPER(code) = UPPER($1) AND deleted_at IS NULL`

	insertPromotionSQL = `INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32)`

	updatePromotionSQL = `UPDATE promotions SET
		name = $2, description = $3, type_id = $4,
		discount_value = $5, min_order_value = $6, max_discount = $7,
		buy_quantity = $8, get_quantity = $9, require_same_item = $10, gift_item_ids = $11,
		start_at = $12, end_at = $13, is_active = $14,
		max_total_usage = $15, max_usage_per_customer = $16,
		all_items = $17, all_categories = $18, all_combos = $19,
		all_customers = $20, all_customer_groups = $21, walk_in = $22,
		item_ids = $23, category_ids = $24, combo_ids = $25,
		customer_ids = $26, customer_group_ids = $27,
		updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	softDeletePromotionSQL = `UPDATE promotions SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	listAllActiveSQL = `SELECT ` + promotionColumns +
		` FROM promotions WHERE deleted_at IS NULL AND is_active ORDER BY created_at`

	customerUsageSQL = `SELECT count(*) FROM promotion_usages
		WHERE promotion_id = $1 AND customer_id = $2`

	insertUsageSQL = `INSERT INTO promotion_usages (promotion_id, order_id, customer_id)
		VALUES ($1, $2, $3)`

	// Serializes concurrent applies of one promotion. Without the lock
	// two READ COMMITTED transactions can each count only their own
	// usage row and both pass the per-customer cap.
	lockPromotionSQL = `SELECT 1 FROM promotions
		WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	// The cap conditions make the increment a no-op when either limit
	// is hit; zero rows affected means exhausted. The per-customer
	// subquery runs under the row lock and counts the usage row
	// inserted in this tx plus everything committed before the lock
	// was granted.
	incrementUsageSQL = `UPDATE promotions SET
		current_total_usage = current_total_usage + 1, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		AND (max_total_usage = 0 OR current_total_usage < max_total_usage)
		AND (max_usage_per_customer = 0 OR $2 = ''
			OR (SELECT count(*) FROM promotion_usages
				WHERE promotion_id = $1 AND customer_id = $2) <= max_usage_per_customer)`

	deleteUsageSQL = `DELETE FROM promotion_usages
		WHERE promotion_id = $1 AND order_id = $2`

	decrementUsageSQL = `UPDATE promotions SET
		current_total_usage = GREATEST(current_total_usage - 1, 0), updated_at = now()
		WHERE id = $1`
)

// sortColumns whitelists the ORDER BY targets accepted from the API.
var sortColumns = map[string]string{
	"name":       "name",
	"code":       "code",
	"startAt":    "start_at",
	"endAt":      "end_at",
	"createdAt":  "created_at",
	"start_at":   "start_at",
	"end_at":     "end_at",
	"created_at": "created_at",
}

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository using the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// GetByID fetches a live promotion by ID. Soft-deleted rows are invisible.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	return r.getOne(ctx, getPromotionByIDSQL, id)
}

// GetByCode fetches a live promotion by its code, case-insensitively.
func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.getOne(ctx, getPromotionByCodeSQL, code)
}

func (r *PromotionRepository) getOne(ctx context.Context, sql, arg string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying promotion: %w", err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("scanning promotion: %w", err)
	}
	return &p, nil
}

// List returns a page of live promotions plus the unpaged total count.
func (r *PromotionRepository) List(ctx context.Context, f promotion.ListFilter) ([]promotion.Promotion, int, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %s OR code ILIKE %s)", p, p))
	}
	if f.Type != 0 {
		where = append(where, "type_id = "+arg(int(f.Type)))
	}
	if f.IsActive != nil {
		where = append(where, "is_active = "+arg(*f.IsActive))
	}

	order := "created_at DESC"
	if f.Sort != "" {
		dir := "ASC"
		key := f.Sort
		if strings.HasPrefix(key, "-") {
			dir = "DESC"
			key = key[1:]
		}
		if col, ok := sortColumns[key]; ok {
			order = col + " " + dir
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	sql := fmt.Sprintf(`SELECT %s, count(*) OVER() AS total FROM promotions
		WHERE %s ORDER BY %s LIMIT %s OFFSET %s`,
		promotionColumns, strings.Join(where, " AND "), order,
		arg(limit), arg((page-1)*limit))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing promotions: %w", err)
	}
	defer rows.Close()

	var (
		promos []promotion.Promotion
		total  int
	)
	for rows.Next() {
		p, n, err := scanPromotionWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning promotion row: %w", err)
		}
		promos = append(promos, p)
		total = n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing promotions: %w", err)
	}
	return promos, total, nil
}

// ListAllActive returns every live, active promotion without paging,
// for checkout evaluation.
func (r *PromotionRepository) ListAllActive(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listAllActiveSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// Create inserts a new promotion row.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	ensureTimestamps(p, time.Now())
	_, err := r.pool.Exec(ctx, insertPromotionSQL,
		p.ID, p.Code, p.Name, p.Description, int(p.Type),
		p.DiscountValue, p.MinOrderValue, p.MaxDiscount,
		p.BuyQuantity, p.GetQuantity, p.RequireSameItem, textArray(p.GiftItemIDs),
		p.StartAt, p.EndAt, p.IsActive,
		p.MaxTotalUsage, p.MaxUsagePerCustomer, p.CurrentTotalUsage,
		p.Scope.AllItems, p.Scope.AllCategories, p.Scope.AllCombos,
		p.Scope.AllCustomers, p.Scope.AllCustomerGroups, p.Scope.WalkIn,
		textArray(p.Scope.ItemIDs), textArray(p.Scope.CategoryIDs), textArray(p.Scope.ComboIDs),
		textArray(p.Scope.CustomerIDs), textArray(p.Scope.CustomerGroupIDs),
		p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting promotion %q: %w", p.Code, err)
	}
	return nil
}

// Update rewrites all mutable fields of a live promotion. The code
// column is deliberately absent from the statement; codes never change.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	tag, err := r.pool.Exec(ctx, updatePromotionSQL,
		p.ID, p.Name, p.Description, int(p.Type),
		p.DiscountValue, p.MinOrderValue, p.MaxDiscount,
		p.BuyQuantity, p.GetQuantity, p.RequireSameItem, textArray(p.GiftItemIDs),
		p.StartAt, p.EndAt, p.IsActive,
		p.MaxTotalUsage, p.MaxUsagePerCustomer,
		p.Scope.AllItems, p.Scope.AllCategories, p.Scope.AllCombos,
		p.Scope.AllCustomers, p.Scope.AllCustomerGroups, p.Scope.WalkIn,
		textArray(p.Scope.ItemIDs), textArray(p.Scope.CategoryIDs), textArray(p.Scope.ComboIDs),
		textArray(p.Scope.CustomerIDs), textArray(p.Scope.CustomerGroupIDs),
	)
	if err != nil {
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// SoftDelete marks the promotion deleted; the row stays for usage history.
func (r *PromotionRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, softDeletePromotionSQL, id)
	if err != nil {
		return fmt.Errorf("soft-deleting promotion %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// CustomerUsage counts recorded usages of the promotion by the customer.
func (r *PromotionRepository) CustomerUsage(ctx context.Context, promotionID, customerID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, customerUsageSQL, promotionID, customerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting customer usage: %w", err)
	}
	return n, nil
}

// IncrementUsage records one use for the order and bumps the total
// counter in a single transaction. The promotions row is locked first
// so concurrent applies by the same customer see each other's usage
// rows; the usage row's primary key rejects a second apply for the
// same order; the guarded UPDATE enforces both caps and rolls the
// insert back when a cap is hit.
func (r *PromotionRepository) IncrementUsage(ctx context.Context, promotionID, orderID, customerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning usage tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var one int
	if err := tx.QueryRow(ctx, lockPromotionSQL, promotionID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promotion.ErrNotFound
		}
		return fmt.Errorf("locking promotion: %w", err)
	}

	if _, err := tx.Exec(ctx, insertUsageSQL, promotionID, orderID, customerID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return promotion.ErrAlreadyApplied
		}
		return fmt.Errorf("recording usage: %w", err)
	}

	tag, err := tx.Exec(ctx, incrementUsageSQL, promotionID, customerID)
	if err != nil {
		return fmt.Errorf("incrementing usage counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrUsageExhausted
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing usage tx: %w", err)
	}
	return nil
}

// DecrementUsage removes the order's usage row and restores the total
// counter, making apply followed by unapply a no-op on the counter.
func (r *PromotionRepository) DecrementUsage(ctx context.Context, promotionID, orderID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning unapply tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, deleteUsageSQL, promotionID, orderID)
	if err != nil {
		return fmt.Errorf("deleting usage row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotApplied
	}

	if _, err := tx.Exec(ctx, decrementUsageSQL, promotionID); err != nil {
		return fmt.Errorf("decrementing usage counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing unapply tx: %w", err)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p      promotion.Promotion
		typeID int16
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &typeID,
		&p.DiscountValue, &p.MinOrderValue, &p.MaxDiscount,
		&p.BuyQuantity, &p.GetQuantity, &p.RequireSameItem, &p.GiftItemIDs,
		&p.StartAt, &p.EndAt, &p.IsActive,
		&p.MaxTotalUsage, &p.MaxUsagePerCustomer, &p.CurrentTotalUsage,
		&p.Scope.AllItems, &p.Scope.AllCategories, &p.Scope.AllCombos,
		&p.Scope.AllCustomers, &p.Scope.AllCustomerGroups, &p.Scope.WalkIn,
		&p.Scope.ItemIDs, &p.Scope.CategoryIDs, &p.Scope.ComboIDs,
		&p.Scope.CustomerIDs, &p.Scope.CustomerGroupIDs,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	p.Type = promotion.Type(typeID)
	return p, err
}

func scanPromotionWithTotal(rows pgx.Rows) (promotion.Promotion, int, error) {
	var (
		p      promotion.Promotion
		typeID int16
		total  int
	)
	err := rows.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &typeID,
		&p.DiscountValue, &p.MinOrderValue, &p.MaxDiscount,
		&p.BuyQuantity, &p.GetQuantity, &p.RequireSameItem, &p.GiftItemIDs,
		&p.StartAt, &p.EndAt, &p.IsActive,
		&p.MaxTotalUsage, &p.MaxUsagePerCustomer, &p.CurrentTotalUsage,
		&p.Scope.AllItems, &p.Scope.AllCategories, &p.Scope.AllCombos,
		&p.Scope.AllCustomers, &p.Scope.AllCustomerGroups, &p.Scope.WalkIn,
		&p.Scope.ItemIDs, &p.Scope.CategoryIDs, &p.Scope.ComboIDs,
		&p.Scope.CustomerIDs, &p.Scope.CustomerGroupIDs,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		&total,
	)
	p.Type = promotion.Type(typeID)
	return p, total, err
}

// textArray keeps nil slices out of TEXT[] parameters.
func textArray(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// touch timestamps for Create callers that did not set them.
func ensureTimestamps(p *promotion.Promotion, now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
}
