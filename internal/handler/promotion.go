package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kavepos/promo-engine/internal/domain/catalog"
	"github.com/kavepos/promo-engine/internal/domain/promotion"
)

// ListPromotions serves GET /promotions with search, type, active,
// pagination and sort filters.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := promotion.ListFilter{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}
	if v := q.Get("typeId"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "typeId must be an integer")
			return
		}
		filter.Type = promotion.Type(n)
	}
	if v := q.Get("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "isActive must be a boolean")
			return
		}
		filter.IsActive = &b
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}

	promos, total, err := h.promos.List(r.Context(), filter)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	data := make([]promotionResponse, len(promos))
	for i := range promos {
		data[i] = toPromotionResponse(&promos[i])
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	respondJSON(w, http.StatusOK, listResponse{Data: data, Total: total, Page: page, Limit: limit})
}

// CreatePromotion serves POST /promotions: one tagged-variant body for
// all four promotion types.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload := req.toPayload()
	if err := payload.Validate(); err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	if _, err := h.promos.GetByCode(r.Context(), payload.Code); err == nil {
		respondError(w, http.StatusUnprocessableEntity, "promotion code already exists")
		return
	} else if !errors.Is(err, promotion.ErrNotFound) {
		h.respondDomainError(w, r, err)
		return
	}

	now := time.Now()
	p := &promotion.Promotion{
		ID:        uuid.New().String(),
		Code:      payload.Code,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := payload.Apply(p); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if err := h.promos.Create(r.Context(), p); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPromotionResponse(p))
}

// GetPromotion serves GET /promotions/{id} with resolved applicability
// detail: scope ID lists expanded into full catalog records.
func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.promos.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	detail := promotionDetailResponse{promotionResponse: toPromotionResponse(p)}
	ctx := r.Context()

	if !p.Scope.AllItems && len(p.Scope.ItemIDs) > 0 {
		items, err := h.catalog.ItemsByIDs(ctx, p.Scope.ItemIDs)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		detail.ApplicableItems = toItemDTOs(items)
	}
	if !p.Scope.AllCategories && len(p.Scope.CategoryIDs) > 0 {
		cats, err := h.catalog.CategoriesByIDs(ctx, p.Scope.CategoryIDs)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		for _, c := range cats {
			detail.ApplicableCategories = append(detail.ApplicableCategories, categoryDTO{ID: c.ID, Name: c.Name})
		}
	}
	if !p.Scope.AllCombos && len(p.Scope.ComboIDs) > 0 {
		combos, err := h.catalog.CombosByIDs(ctx, p.Scope.ComboIDs)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		for _, c := range combos {
			detail.ApplicableCombos = append(detail.ApplicableCombos, comboDTO{ID: c.ID, Name: c.Name, Price: c.Price.InexactFloat64()})
		}
	}
	if !p.Scope.AllCustomers && len(p.Scope.CustomerIDs) > 0 {
		customers, err := h.catalog.CustomersByIDs(ctx, p.Scope.CustomerIDs)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		for _, c := range customers {
			detail.ApplicableCustomers = append(detail.ApplicableCustomers, customerDTO{ID: c.ID, Name: c.Name, Phone: c.Phone})
		}
	}
	if !p.Scope.AllCustomerGroups && len(p.Scope.CustomerGroupIDs) > 0 {
		groups, err := h.catalog.CustomerGroupsByIDs(ctx, p.Scope.CustomerGroupIDs)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		for _, g := range groups {
			detail.ApplicableCustomerGroups = append(detail.ApplicableCustomerGroups, customerGroupDTO{ID: g.ID, Name: g.Name})
		}
	}
	if len(p.GiftItemIDs) > 0 {
		items, err := h.catalog.ItemsByIDs(ctx, p.GiftItemIDs)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		detail.GiftItems = toItemDTOs(items)
	}

	respondJSON(w, http.StatusOK, detail)
}

// UpdatePromotion serves PUT /promotions/{id}. The code is immutable;
// a body naming a different code is rejected before anything persists.
func (h *Handler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.promos.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	if req.Code != "" && req.Code != p.Code {
		h.respondDomainError(w, r, promotion.ErrCodeImmutable)
		return
	}

	payload := req.toPayload()
	payload.Code = p.Code
	if err := payload.Validate(); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if err := payload.Apply(p); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if err := h.promos.Update(r.Context(), p); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPromotionResponse(p))
}

// DeletePromotion serves DELETE /promotions/{id} as a soft delete.
func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := h.promos.SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckEligibility serves GET /promotions/{id}/check-eligibility: the
// order-independent eligibility answer for one customer.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	p, err := h.promos.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	customerID := r.URL.Query().Get("customerId")
	var groupIDs []string
	if customerID != "" {
		c, err := h.catalog.GetCustomer(r.Context(), customerID)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		groupIDs = c.GroupIDs
	}

	pv, err := h.eval.CheckEligibility(r.Context(), p, customerID, groupIDs)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toPreviewResponse(r, pv))
}

// AvailablePromotions serves POST /promotions/available: every active
// promotion evaluated against the posted order snapshot.
func (h *Handler) AvailablePromotions(w http.ResponseWriter, r *http.Request) {
	var req orderContextRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.buildOrderContext(r, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	previews, err := h.eval.Available(r.Context(), order)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	out := make([]previewResponse, len(previews))
	for i := range previews {
		out[i] = h.toPreviewResponse(r, &previews[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// ApplyPromotion serves POST /promotions/apply. Usage is committed
// atomically by the repository; a cap hit comes back as 409 so the
// client can revert its optimistic state.
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}

	p, err := h.resolvePromotion(r, req.PromotionID, req.PromotionCode)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	if err := h.eval.Apply(r.Context(), p, req.OrderID, req.CustomerID); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.applies.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("promotion.type", p.Type.String()),
	))

	respondJSON(w, http.StatusOK, applyResponse{
		OrderID:     req.OrderID,
		PromotionID: p.ID,
		Applied:     true,
	})
}

// UnapplyPromotion serves POST /promotions/unapply, reversing a prior
// apply for the same order.
func (h *Handler) UnapplyPromotion(w http.ResponseWriter, r *http.Request) {
	var req unapplyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrderID == "" || req.PromotionID == "" {
		respondError(w, http.StatusBadRequest, "orderId and promotionId are required")
		return
	}

	p, err := h.promos.GetByID(r.Context(), req.PromotionID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if err := h.eval.Unapply(r.Context(), p, req.OrderID); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, unapplyResponse{
		OrderID:     req.OrderID,
		PromotionID: p.ID,
		Applied:     false,
	})
}

func (h *Handler) resolvePromotion(r *http.Request, id, code string) (*promotion.Promotion, error) {
	switch {
	case id != "":
		return h.promos.GetByID(r.Context(), id)
	case code != "":
		return h.promos.GetByCode(r.Context(), code)
	default:
		return nil, &promotion.ValidationError{Field: "promotionId", Detail: "promotionId or promotionCode is required"}
	}
}

// buildOrderContext resolves the posted item IDs into priced,
// categorized order lines and attaches the customer's groups.
func (h *Handler) buildOrderContext(r *http.Request, req orderContextRequest) (promotion.OrderContext, error) {
	ctx := r.Context()

	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return promotion.OrderContext{}, &promotion.ValidationError{
				Field: "items", Detail: "quantity must be greater than 0 for item " + it.ItemID,
			}
		}
		ids[i] = it.ItemID
	}

	items, err := h.catalog.ItemsByIDs(ctx, ids)
	if err != nil {
		return promotion.OrderContext{}, errors.Wrap(err, "resolve items")
	}
	byID := make(map[string]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	lines := make([]promotion.OrderLine, len(req.Items))
	for i, it := range req.Items {
		item, ok := byID[it.ItemID]
		if !ok {
			return promotion.OrderContext{}, errors.Wrapf(catalog.ErrNotFound, "item %s", it.ItemID)
		}
		lines[i] = promotion.OrderLine{
			ItemID:     item.ID,
			CategoryID: item.CategoryID,
			Quantity:   it.Quantity,
			UnitPrice:  item.Price,
		}
	}

	order := promotion.OrderContext{
		Lines:      lines,
		ComboIDs:   req.ComboIDs,
		CustomerID: req.CustomerID,
	}
	if req.CustomerID != "" {
		c, err := h.catalog.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return promotion.OrderContext{}, errors.Wrapf(err, "customer %s", req.CustomerID)
		}
		order.CustomerGroupIDs = c.GroupIDs
	}
	return order, nil
}

// toPreviewResponse renders a preview, expanding gift catalog IDs into
// item records when an entitlement is present.
func (h *Handler) toPreviewResponse(r *http.Request, pv *promotion.DiscountPreview) previewResponse {
	out := previewResponse{
		PromotionID:     pv.Promotion.ID,
		Code:            pv.Promotion.Code,
		Name:            pv.Promotion.Name,
		TypeID:          int(pv.Promotion.Type),
		CanApply:        pv.CanApply,
		Reason:          pv.Reason,
		DiscountPreview: pv.Discount.InexactFloat64(),
	}
	if pv.Gift != nil {
		out.GiftCount = pv.Gift.GiftCount
		if items, err := h.catalog.ItemsByIDs(r.Context(), pv.Gift.GiftItemIDs); err == nil {
			out.GiftItems = toItemDTOs(items)
		}
	}
	return out
}
