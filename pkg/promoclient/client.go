// Package promoclient is a small Go client for the promotion engine
// API, used by POS terminals and internal tooling.
package promoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors mapped from the API's machine-readable error codes,
// with a status-code fallback. Callers branch on these with errors.Is.
var (
	ErrNotFound       = errors.New("promotion not found")
	ErrUsageExhausted = errors.New("promotion usage limit reached")
	ErrAlreadyApplied = errors.New("promotion already applied to order")
	ErrNotApplied     = errors.New("promotion not applied to order")
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError carries the raw status and message of a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a promotion engine instance.
type Client struct {
	base string
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the given base URL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: baseURL,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Promotion mirrors the API's promotion representation.
type Promotion struct {
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
}

// ListResult is one page of promotions.
type ListResult struct {
	Data  []Promotion `json:"data"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// ListQuery filters and paginates ListPromotions.
type ListQuery struct {
	Search   string
	TypeID   int
	IsActive *bool
	Page     int
	Limit    int
}

// OrderItem is one line of an order snapshot.
type OrderItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// OrderSnapshot describes the order under evaluation. The server
// resolves prices and categories from its catalog.
type OrderSnapshot struct {
	OrderID    string      `json:"orderId"`
	CustomerID string      `json:"customerId,omitempty"`
	Items      []OrderItem `json:"items"`
	ComboIDs   []string    `json:"comboIds,omitempty"`
}

// Preview is the evaluation result for one promotion against an order.
type Preview struct {
	PromotionID     string  `json:"promotionId"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	TypeID          int     `json:"typeId"`
	CanApply        bool    `json:"canApply"`
	Reason          string  `json:"reason,omitempty"`
	DiscountPreview float64 `json:"discountPreview"`
	GiftCount       int     `json:"giftCount,omitempty"`
}

// ApplyParams identifies the promotion to commit to an order. Exactly
// one of PromotionID or PromotionCode must be set.
type ApplyParams struct {
	OrderID       string `json:"orderId"`
	PromotionID   string `json:"promotionId,omitempty"`
	PromotionCode string `json:"promotionCode,omitempty"`
	CustomerID    string `json:"customerId,omitempty"`
}

// ListPromotions fetches one page of promotions matching q.
func (c *Client) ListPromotions(ctx context.Context, q ListQuery) (*ListResult, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.TypeID != 0 {
		params.Set("typeId", strconv.Itoa(q.TypeID))
	}
	if q.IsActive != nil {
		params.Set("isActive", strconv.FormatBool(*q.IsActive))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/promotions"
	if enc := params.Encode(); enc != "" {
		path += "?" + enc
	}

	var out ListResult
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPromotion fetches one promotion by ID.
func (c *Client) GetPromotion(ctx context.Context, id string) (*Promotion, error) {
	var out Promotion
	if err := c.do(ctx, http.MethodGet, "/promotions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Available evaluates all active promotions against the order snapshot.
func (c *Client) Available(ctx context.Context, order OrderSnapshot) ([]Preview, error) {
	var out []Preview
	if err := c.do(ctx, http.MethodPost, "/promotions/available", order, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply commits the promotion usage on the server. Returns
// ErrUsageExhausted when a cap rejects the apply and ErrAlreadyApplied
// when the order already holds a usage.
func (c *Client) Apply(ctx context.Context, p ApplyParams) error {
	return c.do(ctx, http.MethodPost, "/promotions/apply", p, nil)
}

// Unapply releases a previously committed usage.
func (c *Client) Unapply(ctx context.Context, orderID, promotionID string) error {
	body := map[string]string{"orderId": orderID, "promotionId": promotionID}
	return c.do(ctx, http.MethodPost, "/promotions/unapply", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var body struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	// The server's errorCode is the stable contract; the message is
	// free to change.
	switch body.ErrorCode {
	case "not_found":
		return errors.Wrap(ErrNotFound, body.Message)
	case "usage_exhausted":
		return errors.Wrap(ErrUsageExhausted, body.Message)
	case "already_applied":
		return errors.Wrap(ErrAlreadyApplied, body.Message)
	case "not_applied":
		return errors.Wrap(ErrNotApplied, body.Message)
	case "validation_failed", "unknown_type":
		return errors.Wrap(ErrInvalidRequest, body.Message)
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: body.Message}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Wrap(ErrNotFound, apiErr.Message)
	case http.StatusConflict:
		return errors.Wrap(ErrUsageExhausted, apiErr.Message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.Wrap(ErrInvalidRequest, apiErr.Message)
	default:
		return apiErr
	}
}
