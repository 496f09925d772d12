// Package handler exposes the promotion engine over JSON HTTP. Routing
// is chi; business rules live in internal/domain and are only invoked
// here.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/kavepos/promo-engine/internal/domain/auth"
	"github.com/kavepos/promo-engine/internal/domain/catalog"
	"github.com/kavepos/promo-engine/internal/domain/promotion"
)

// Handler serves the promotion API.
type Handler struct {
	promos  promotion.Repository
	catalog catalog.Repository
	eval    *promotion.Evaluator
	keys    *auth.Validator

	applies metric.Int64Counter
}

// NewHandler constructs a Handler with the required dependencies. The
// meter may be a noop provider's meter in tests.
func NewHandler(
	promos promotion.Repository,
	cat catalog.Repository,
	eval *promotion.Evaluator,
	keys *auth.Validator,
	meter metric.Meter,
) (*Handler, error) {
	applies, err := meter.Int64Counter("promo.applies",
		metric.WithDescription("Committed promotion applies"))
	if err != nil {
		return nil, errors.Wrap(err, "create applies counter")
	}
	return &Handler{
		promos:  promos,
		catalog: cat,
		eval:    eval,
		keys:    keys,
		applies: applies,
	}, nil
}

// Routes mounts all promotion endpoints on a fresh router. Checkout
// and read endpoints are open; admin writes require an API key with
// the promotions:write scope.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/promotions", func(r chi.Router) {
		r.Get("/", h.ListPromotions)
		r.Post("/available", h.AvailablePromotions)
		r.Post("/apply", h.ApplyPromotion)
		r.Post("/unapply", h.UnapplyPromotion)
		r.Get("/{id}", h.GetPromotion)
		r.Get("/{id}/check-eligibility", h.CheckEligibility)

		r.Group(func(r chi.Router) {
			r.Use(h.requireScope(auth.ScopePromotionsWrite))
			r.Post("/", h.CreatePromotion)
			r.Put("/{id}", h.UpdatePromotion)
			r.Delete("/{id}", h.DeletePromotion)
		})
	})
	return r
}

// requireScope authenticates the X-API-Key header and checks the scope
// before letting the request through.
func (h *Handler) requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := h.keys.Validate(r.Context(), r.Header.Get("X-API-Key"), scope)
			switch {
			case errors.Is(err, auth.ErrForbidden):
				respondError(w, http.StatusForbidden, err.Error())
				return
			case err != nil:
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Stable identifiers for errorResponse.ErrorCode.
const (
	codeValidationFailed = "validation_failed"
	codeUnknownType      = "unknown_type"
	codeNotFound         = "not_found"
	codeUsageExhausted   = "usage_exhausted"
	codeAlreadyApplied   = "already_applied"
	codeNotApplied       = "not_applied"
)

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

func respondErrorCode(w http.ResponseWriter, status int, errorCode, message string) {
	respondJSON(w, status, errorResponse{Code: status, ErrorCode: errorCode, Message: message})
}

// respondDomainError maps domain errors onto the taxonomy: validation
// problems are 400/422, missing records 404, usage conflicts 409, and
// anything else a logged 500 with no detail leaked.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *promotion.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondErrorCode(w, http.StatusUnprocessableEntity, codeValidationFailed, vErr.Error())
	case errors.Is(err, promotion.ErrUnknownType):
		respondErrorCode(w, http.StatusBadRequest, codeUnknownType, "unknown promotion type")
	case errors.Is(err, promotion.ErrNotFound):
		respondErrorCode(w, http.StatusNotFound, codeNotFound, "promotion not found")
	case errors.Is(err, catalog.ErrNotFound):
		respondErrorCode(w, http.StatusUnprocessableEntity, codeValidationFailed, err.Error())
	case errors.Is(err, promotion.ErrCodeImmutable):
		respondErrorCode(w, http.StatusUnprocessableEntity, codeValidationFailed, err.Error())
	case errors.Is(err, promotion.ErrUsageExhausted):
		respondErrorCode(w, http.StatusConflict, codeUsageExhausted, "promotion usage limit reached")
	case errors.Is(err, promotion.ErrAlreadyApplied):
		respondErrorCode(w, http.StatusConflict, codeAlreadyApplied, err.Error())
	case errors.Is(err, promotion.ErrNotApplied):
		respondErrorCode(w, http.StatusConflict, codeNotApplied, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
