package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kavepos/promo-engine/internal/domain/auth"
	"github.com/kavepos/promo-engine/internal/domain/catalog"
	"github.com/kavepos/promo-engine/internal/domain/promotion"
)

const testAPIKey = "test-key"

// memKeys serves a single write-scoped API key.
type memKeys struct{}

func (memKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if hash != auth.HashKey(testAPIKey) {
		return nil, auth.ErrUnauthorized
	}
	return &auth.APIKeyInfo{
		ID:      "k1",
		KeyHash: hash,
		Name:    "test",
		Scopes:  []string{auth.ScopePromotionsWrite},
	}, nil
}

// memPromoRepo is an in-memory promotion.Repository for handler tests.
type memPromoRepo struct {
	promos map[string]*promotion.Promotion
	usages map[string]map[string]string
}

func newMemPromoRepo(promos ...*promotion.Promotion) *memPromoRepo {
	r := &memPromoRepo{
		promos: make(map[string]*promotion.Promotion),
		usages: make(map[string]map[string]string),
	}
	for _, p := range promos {
		r.promos[p.ID] = p
	}
	return r
}

func (r *memPromoRepo) GetByID(_ context.Context, id string) (*promotion.Promotion, error) {
	p, ok := r.promos[id]
	if !ok {
		return nil, promotion.ErrNotFound
	}
	return p, nil
}

func (r *memPromoRepo) GetByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	for _, p := range r.promos {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, promotion.ErrNotFound
}

func (r *memPromoRepo) List(_ context.Context, filter promotion.ListFilter) ([]promotion.Promotion, int, error) {
	var out []promotion.Promotion
	for _, p := range r.promos {
		if filter.IsActive != nil && p.IsActive != *filter.IsActive {
			continue
		}
		if filter.Type != 0 && p.Type != filter.Type {
			continue
		}
		out = append(out, *p)
	}
	total := len(out)
	// Same paging defaults as the Postgres repository.
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *memPromoRepo) ListAllActive(_ context.Context) ([]promotion.Promotion, error) {
	var out []promotion.Promotion
	for _, p := range r.promos {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPromoRepo) Create(_ context.Context, p *promotion.Promotion) error {
	r.promos[p.ID] = p
	return nil
}

func (r *memPromoRepo) Update(_ context.Context, p *promotion.Promotion) error {
	if _, ok := r.promos[p.ID]; !ok {
		return promotion.ErrNotFound
	}
	r.promos[p.ID] = p
	return nil
}

func (r *memPromoRepo) SoftDelete(_ context.Context, id string) error {
	if _, ok := r.promos[id]; !ok {
		return promotion.ErrNotFound
	}
	delete(r.promos, id)
	return nil
}

func (r *memPromoRepo) CustomerUsage(_ context.Context, promotionID, customerID string) (int, error) {
	n := 0
	for _, cust := range r.usages[promotionID] {
		if cust == customerID {
			n++
		}
	}
	return n, nil
}

func (r *memPromoRepo) IncrementUsage(_ context.Context, promotionID, orderID, customerID string) error {
	p, ok := r.promos[promotionID]
	if !ok {
		return promotion.ErrNotFound
	}
	orders := r.usages[promotionID]
	if orders == nil {
		orders = make(map[string]string)
		r.usages[promotionID] = orders
	}
	if _, ok := orders[orderID]; ok {
		return promotion.ErrAlreadyApplied
	}
	if p.MaxTotalUsage > 0 && p.CurrentTotalUsage >= p.MaxTotalUsage {
		return promotion.ErrUsageExhausted
	}
	orders[orderID] = customerID
	p.CurrentTotalUsage++
	return nil
}

func (r *memPromoRepo) DecrementUsage(_ context.Context, promotionID, orderID string) error {
	orders := r.usages[promotionID]
	if _, ok := orders[orderID]; !ok {
		return promotion.ErrNotApplied
	}
	delete(orders, orderID)
	r.promos[promotionID].CurrentTotalUsage--
	return nil
}

// memCatalog serves the fixture catalog used across handler tests.
type memCatalog struct {
	items     map[string]catalog.Item
	customers map[string]catalog.Customer
}

func newMemCatalog() *memCatalog {
	items := []catalog.Item{
		{ID: "item-latte", Name: "Caffe Latte", Price: decimal.NewFromInt(45000), CategoryID: "cat-coffee"},
		{ID: "item-espresso", Name: "Espresso", Price: decimal.NewFromInt(25000), CategoryID: "cat-coffee"},
		{ID: "item-croissant", Name: "Butter Croissant", Price: decimal.NewFromInt(35000), CategoryID: "cat-pastry"},
	}
	c := &memCatalog{
		items:     make(map[string]catalog.Item),
		customers: make(map[string]catalog.Customer),
	}
	for _, it := range items {
		c.items[it.ID] = it
	}
	c.customers["cust-anna"] = catalog.Customer{ID: "cust-anna", Name: "Anna", GroupIDs: []string{"grp-vip"}}
	return c
}

func (c *memCatalog) ItemsByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (c *memCatalog) CategoriesByIDs(_ context.Context, ids []string) ([]catalog.Category, error) {
	out := make([]catalog.Category, len(ids))
	for i, id := range ids {
		out[i] = catalog.Category{ID: id, Name: id}
	}
	return out, nil
}

func (c *memCatalog) CombosByIDs(_ context.Context, ids []string) ([]catalog.Combo, error) {
	out := make([]catalog.Combo, len(ids))
	for i, id := range ids {
		out[i] = catalog.Combo{ID: id, Name: id}
	}
	return out, nil
}

func (c *memCatalog) CustomersByIDs(_ context.Context, ids []string) ([]catalog.Customer, error) {
	var out []catalog.Customer
	for _, id := range ids {
		if cust, ok := c.customers[id]; ok {
			out = append(out, cust)
		}
	}
	return out, nil
}

func (c *memCatalog) CustomerGroupsByIDs(_ context.Context, ids []string) ([]catalog.CustomerGroup, error) {
	out := make([]catalog.CustomerGroup, len(ids))
	for i, id := range ids {
		out[i] = catalog.CustomerGroup{ID: id, Name: id}
	}
	return out, nil
}

func (c *memCatalog) GetCustomer(_ context.Context, id string) (*catalog.Customer, error) {
	cust, ok := c.customers[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &cust, nil
}

func newTestHandler(t *testing.T, promos ...*promotion.Promotion) (*Handler, *memPromoRepo) {
	t.Helper()
	repo := newMemPromoRepo(promos...)
	h, err := NewHandler(repo, newMemCatalog(), promotion.NewEvaluator(repo),
		auth.NewValidator(memKeys{}), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return h, repo
}

func livePromo(id, code string) *promotion.Promotion {
	now := time.Now()
	return &promotion.Promotion{
		ID:            id,
		Code:          code,
		Name:          "Test promotion " + code,
		Type:          promotion.TypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartAt:       now.Add(-time.Hour),
		EndAt:         now.Add(24 * time.Hour),
		IsActive:      true,
		Scope: promotion.Scope{
			AllItems:     true,
			AllCustomers: true,
			WalkIn:       true,
		},
	}
}

func doRequest(h *Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestWriteRoutesRequireAPIKey(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	req := httptest.NewRequest(http.MethodDelete, "/promotions/p1", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/promotions/p1", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReadRoutesAreOpen(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	req := httptest.NewRequest(http.MethodGet, "/promotions/p1", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListPromotions(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"), livePromo("p2", "TWENTY"))

	rec := doRequest(h, http.MethodGet, "/promotions?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data  []map[string]any `json:"data"`
		Total int              `json:"total"`
		Limit int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 10, resp.Limit)
}

func TestListPromotions_BadQuery(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/promotions?typeId=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePromotion(t *testing.T) {
	h, repo := newTestHandler(t)

	body := map[string]any{
		"typeId":        1,
		"code":          "NEW10",
		"name":          "New customer deal",
		"discountValue": 10,
		"maxDiscount":   20000,
		"startDateTime": time.Now().Format(time.RFC3339),
		"endDateTime":   time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
		"isActive":      true,
		"scope": map[string]any{
			"applyToAllItems":     true,
			"applyToAllCustomers": true,
			"applyToWalkIn":       true,
		},
	}
	rec := doRequest(h, http.MethodPost, "/promotions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NEW10", resp["code"])
	assert.NotEmpty(t, resp["id"])

	created, err := repo.GetByCode(context.Background(), "NEW10")
	require.NoError(t, err)
	assert.Equal(t, promotion.TypePercentage, created.Type)
}

func TestCreatePromotion_DuplicateCode(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	body := map[string]any{
		"typeId":        1,
		"code":          "TEN",
		"name":          "Duplicate",
		"discountValue": 5,
		"startDateTime": time.Now().Format(time.RFC3339),
		"endDateTime":   time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
		"scope":         map[string]any{"applyToAllItems": true, "applyToAllCustomers": true},
	}
	rec := doRequest(h, http.MethodPost, "/promotions", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreatePromotion_ValidationFailure(t *testing.T) {
	h, _ := newTestHandler(t)

	// Percentage above 100 trips the per-type rule.
	body := map[string]any{
		"typeId":        1,
		"code":          "BAD",
		"name":          "Bad deal",
		"discountValue": 150,
		"startDateTime": time.Now().Format(time.RFC3339),
		"endDateTime":   time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
		"scope":         map[string]any{"applyToAllItems": true},
	}
	rec := doRequest(h, http.MethodPost, "/promotions", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetPromotion_ExpandsScopeDetail(t *testing.T) {
	p := livePromo("p1", "TEN")
	p.Scope.AllItems = false
	p.Scope.ItemIDs = []string{"item-latte", "item-espresso"}
	h, _ := newTestHandler(t, p)

	rec := doRequest(h, http.MethodGet, "/promotions/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ApplicableItems []struct {
			ID    string  `json:"id"`
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		} `json:"applicableItems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ApplicableItems, 2)
	assert.Equal(t, "Caffe Latte", resp.ApplicableItems[0].Name)
	assert.Equal(t, float64(45000), resp.ApplicableItems[0].Price)
}

func TestGetPromotion_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/promotions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePromotion_CodeImmutable(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	body := map[string]any{
		"typeId":        1,
		"code":          "RENAMED",
		"name":          "Renamed",
		"discountValue": 10,
		"startDateTime": time.Now().Format(time.RFC3339),
		"endDateTime":   time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
		"scope":         map[string]any{"applyToAllItems": true},
	}
	rec := doRequest(h, http.MethodPut, "/promotions/p1", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdatePromotion_TypeSwitchClearsStaleFields(t *testing.T) {
	h, repo := newTestHandler(t, livePromo("p1", "TEN"))

	body := map[string]any{
		"typeId":          4,
		"code":            "TEN",
		"name":            "Now a gift",
		"buyQuantity":     2,
		"getQuantity":     1,
		"requireSameItem": true,
		"giftItemIds":     []string{"item-croissant"},
		"startDateTime":   time.Now().Format(time.RFC3339),
		"endDateTime":     time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
		"isActive":        true,
		"scope":           map[string]any{"applyToAllItems": true, "applyToAllCustomers": true},
	}
	rec := doRequest(h, http.MethodPut, "/promotions/p1", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, promotion.TypeGift, updated.Type)
	assert.True(t, updated.DiscountValue.IsZero(), "percentage value must be wiped on type switch")
	assert.Equal(t, 2, updated.BuyQuantity)
}

func TestDeletePromotion(t *testing.T) {
	h, repo := newTestHandler(t, livePromo("p1", "TEN"))

	rec := doRequest(h, http.MethodDelete, "/promotions/p1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := repo.GetByID(context.Background(), "p1")
	assert.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestAvailablePromotions(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	body := map[string]any{
		"orderId": "order-1",
		"items": []map[string]any{
			{"itemId": "item-latte", "quantity": 2},
		},
	}
	rec := doRequest(h, http.MethodPost, "/promotions/available", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp []struct {
		PromotionID     string  `json:"promotionId"`
		CanApply        bool    `json:"canApply"`
		DiscountPreview float64 `json:"discountPreview"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.True(t, resp[0].CanApply)
	assert.Equal(t, float64(9000), resp[0].DiscountPreview)
}

func TestAvailablePromotions_BeyondOnePage(t *testing.T) {
	promos := make([]*promotion.Promotion, 0, 60)
	for i := 0; i < 60; i++ {
		promos = append(promos, livePromo(fmt.Sprintf("p-%02d", i), fmt.Sprintf("BULK%02d", i)))
	}
	h, _ := newTestHandler(t, promos...)

	body := map[string]any{
		"orderId": "order-1",
		"items": []map[string]any{
			{"itemId": "item-latte", "quantity": 1},
		},
	}
	rec := doRequest(h, http.MethodPost, "/promotions/available", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Every active promotion is evaluated, not just the first listing page.
	var resp []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 60)
}

func TestAvailablePromotions_UnknownItem(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	body := map[string]any{
		"orderId": "order-1",
		"items": []map[string]any{
			{"itemId": "item-unknown", "quantity": 1},
		},
	}
	rec := doRequest(h, http.MethodPost, "/promotions/available", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAvailablePromotions_ZeroQuantity(t *testing.T) {
	h, _ := newTestHandler(t)

	body := map[string]any{
		"orderId": "order-1",
		"items": []map[string]any{
			{"itemId": "item-latte", "quantity": 0},
		},
	}
	rec := doRequest(h, http.MethodPost, "/promotions/available", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestApplyPromotion(t *testing.T) {
	h, repo := newTestHandler(t, livePromo("p1", "TEN"))

	rec := doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{
		"orderId":     "order-1",
		"promotionId": "p1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Applied)
	assert.Equal(t, "p1", resp.PromotionID)

	p, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentTotalUsage)
}

func TestApplyPromotion_ByCode(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	rec := doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{
		"orderId":       "order-1",
		"promotionCode": "TEN",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyPromotion_DoubleApplyConflicts(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	body := map[string]any{"orderId": "order-1", "promotionId": "p1"}
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/promotions/apply", body).Code)
	assert.Equal(t, http.StatusConflict, doRequest(h, http.MethodPost, "/promotions/apply", body).Code)
}

func TestApplyPromotion_CapExhausted(t *testing.T) {
	p := livePromo("p1", "TEN")
	p.MaxTotalUsage = 1
	h, _ := newTestHandler(t, p)

	first := doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{
		"orderId": "order-1", "promotionId": "p1",
	})
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{
		"orderId": "order-2", "promotionId": "p1",
	})
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestApplyPromotion_MissingIdentifiers(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{"orderId": "order-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{"promotionId": "p1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnapplyPromotion_RestoresUsage(t *testing.T) {
	p := livePromo("p1", "TEN")
	p.MaxTotalUsage = 1
	h, repo := newTestHandler(t, p)

	apply := map[string]any{"orderId": "order-1", "promotionId": "p1"}
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/promotions/apply", apply).Code)

	rec := doRequest(h, http.MethodPost, "/promotions/unapply", map[string]any{
		"orderId": "order-1", "promotionId": "p1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentTotalUsage)

	// The freed slot can be used by another order.
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{
		"orderId": "order-2", "promotionId": "p1",
	}).Code)
}

func TestUnapplyPromotion_NotApplied(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))

	rec := doRequest(h, http.MethodPost, "/promotions/unapply", map[string]any{
		"orderId": "order-1", "promotionId": "p1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorResponsesCarryErrorCode(t *testing.T) {
	capped := livePromo("p1", "TEN")
	capped.MaxTotalUsage = 1
	h, _ := newTestHandler(t, capped)

	decode := func(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
		t.Helper()
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(h, http.MethodGet, "/promotions/missing", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, codeNotFound, decode(t, rec).ErrorCode)
	})
	t.Run("not applied", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/promotions/unapply", map[string]any{
			"orderId": "order-x", "promotionId": "p1",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, codeNotApplied, decode(t, rec).ErrorCode)
	})
	t.Run("already applied", func(t *testing.T) {
		body := map[string]any{"orderId": "order-1", "promotionId": "p1"}
		require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/promotions/apply", body).Code)
		rec := doRequest(h, http.MethodPost, "/promotions/apply", body)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, codeAlreadyApplied, decode(t, rec).ErrorCode)
	})
	t.Run("usage exhausted", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{
			"orderId": "order-2", "promotionId": "p1",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, codeUsageExhausted, decode(t, rec).ErrorCode)
	})
}

func TestCheckEligibility(t *testing.T) {
	p := livePromo("p1", "TEN")
	p.Scope = promotion.Scope{AllItems: true, CustomerGroupIDs: []string{"grp-vip"}}
	h, _ := newTestHandler(t, p)

	rec := doRequest(h, http.MethodGet, "/promotions/p1/check-eligibility?customerId=cust-anna", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.CanApply)
}

func TestCheckEligibility_UnknownCustomer(t *testing.T) {
	h, _ := newTestHandler(t, livePromo("p1", "TEN"))
	rec := doRequest(h, http.MethodGet, "/promotions/p1/check-eligibility?customerId=cust-ghost", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDecodeBody_RejectsUnknownFields(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodPost, "/promotions/apply", map[string]any{
		"orderId": "order-1", "promotionId": "p1", "bogus": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
