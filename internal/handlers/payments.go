package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/httpx"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/pagination"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/services"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

const (
	maxPaymentRequestBody = 32 * 1024
	paymentFailedMessage  = "unable to process payment, please contact support"
)

// PaymentHandlers exposes split previews, payment intents and payment lookups.
type PaymentHandlers struct {
	payments          services.PaymentService
	validate          *validator.Validate
	idempotency       func(http.Handler) http.Handler
	idempotencyHeader string
	previewLimiter    *windowLimiter
}

// PaymentHandlersOption customises PaymentHandlers.
type PaymentHandlersOption func(*PaymentHandlers)

// WithIntentIdempotency guards intent creation with mw, which keys requests on header.
func WithIntentIdempotency(header string, mw func(http.Handler) http.Handler) PaymentHandlersOption {
	return func(h *PaymentHandlers) {
		h.idempotency = mw
		if header = strings.TrimSpace(header); header != "" {
			h.idempotencyHeader = header
		}
	}
}

// WithPreviewRateLimit caps split previews per client address. A non-positive limit disables it.
func WithPreviewRateLimit(limit int, window time.Duration) PaymentHandlersOption {
	return func(h *PaymentHandlers) {
		h.previewLimiter = newWindowLimiter(limit, window, nil)
	}
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(payments services.PaymentService, opts ...PaymentHandlersOption) *PaymentHandlers {
	h := &PaymentHandlers{
		payments:          payments,
		validate:          newValidator(),
		idempotencyHeader: "Idempotency-Key",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers payment endpoints under the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	preview := r
	if h.previewLimiter != nil {
		preview = r.With(h.previewLimiter.middleware)
	}
	preview.Post("/split-preview", h.previewSplit)
	intents := r
	if h.idempotency != nil {
		intents = r.With(h.idempotency)
	}
	intents.Post("/intents", h.createIntent)
	r.Get("/{paymentId}", h.getPayment)
}

type cartItemRequest struct {
	ItemID          string  `json:"itemId" validate:"required,max=128"`
	Name            string  `json:"name" validate:"max=200"`
	Quantity        int     `json:"quantity" validate:"gt=0,lte=1000"`
	Price           float64 `json:"price" validate:"gte=0"`
	DiscountedPrice float64 `json:"discountedPrice" validate:"gte=0"`
	Cost            float64 `json:"cost" validate:"gte=0"`
}

type splitPreviewRequest struct {
	ShopID      string                        `json:"shopId" validate:"max=128"`
	Config      *splits.MerchantPaymentConfig `json:"paymentConfig"`
	Currency    string                        `json:"currency" validate:"omitempty,len=3,alpha"`
	Items       []cartItemRequest             `json:"items" validate:"required,min=1,max=100,dive"`
	DeliveryFee float64                       `json:"deliveryFee" validate:"gte=0"`
	Tip         float64                       `json:"tip" validate:"gte=0"`
}

type paymentIntentRequest struct {
	ShopID        string            `json:"shopId" validate:"required,max=128"`
	Currency      string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Items         []cartItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	DeliveryFee   float64           `json:"deliveryFee" validate:"gte=0"`
	Tip           float64           `json:"tip" validate:"gte=0"`
	Amount        *float64          `json:"amount" validate:"omitempty,gt=0"`
	CustomerEmail string            `json:"customerEmail" validate:"omitempty,email,max=254"`
	Note          string            `json:"note" validate:"max=500"`
}

type paymentIntentResponse struct {
	PaymentID    string                  `json:"paymentId"`
	Provider     string                  `json:"provider"`
	ProviderRef  string                  `json:"providerRef"`
	ClientSecret string                  `json:"clientSecret"`
	Amount       float64                 `json:"amount"`
	AmountMinor  int64                   `json:"amountMinor"`
	Currency     string                  `json:"currency"`
	Breakdown    splits.PaymentBreakdown `json:"breakdown"`
}

type paymentItemResponse struct {
	ItemID          string  `json:"itemId"`
	Name            string  `json:"name,omitempty"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discountedPrice,omitempty"`
}

type paymentResponse struct {
	ID          string                  `json:"id"`
	ShopID      string                  `json:"shopId"`
	VendorID    string                  `json:"vendorId,omitempty"`
	HotelID     string                  `json:"hotelId,omitempty"`
	Provider    string                  `json:"provider"`
	ProviderRef string                  `json:"providerRef"`
	Status      string                  `json:"status"`
	Amount      int64                   `json:"amountMinor"`
	Currency    string                  `json:"currency"`
	Breakdown   splits.PaymentBreakdown `json:"breakdown"`
	Items       []paymentItemResponse   `json:"items"`
	Note        string                  `json:"note,omitempty"`
	CreatedAt   string                  `json:"createdAt"`
	UpdatedAt   string                  `json:"updatedAt,omitempty"`
}

type paymentListResponse struct {
	Items         []paymentResponse `json:"items"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

func (h *PaymentHandlers) previewSplit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req splitPreviewRequest
	if !decodeJSONBody(ctx, w, r, h.validate, maxPaymentRequestBody, &req) {
		return
	}
	if strings.TrimSpace(req.ShopID) == "" && req.Config == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shopId or paymentConfig is required", http.StatusBadRequest))
		return
	}

	breakdown, err := h.payments.PreviewSplit(ctx, services.PreviewSplitCommand{
		ShopID:      strings.TrimSpace(req.ShopID),
		Config:      req.Config,
		Currency:    req.Currency,
		Items:       toCartItems(req.Items),
		DeliveryFee: req.DeliveryFee,
		Tip:         req.Tip,
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, breakdown)
}

func (h *PaymentHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req paymentIntentRequest
	if !decodeJSONBody(ctx, w, r, h.validate, maxPaymentRequestBody, &req) {
		return
	}

	result, err := h.payments.CreatePaymentIntent(ctx, services.CreatePaymentIntentCommand{
		ShopID:         strings.TrimSpace(req.ShopID),
		Currency:       req.Currency,
		Items:          toCartItems(req.Items),
		DeliveryFee:    req.DeliveryFee,
		Tip:            req.Tip,
		Amount:         req.Amount,
		CustomerEmail:  req.CustomerEmail,
		Note:           req.Note,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(h.idempotencyHeader)),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, paymentIntentResponse{
		PaymentID:    result.PaymentID,
		Provider:     result.Provider,
		ProviderRef:  result.ProviderRef,
		ClientSecret: result.ClientSecret,
		Amount:       result.Amount,
		AmountMinor:  result.AmountMinor,
		Currency:     result.Currency,
		Breakdown:    result.Breakdown,
	})
}

func (h *PaymentHandlers) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	payment, err := h.payments.GetPayment(ctx, chi.URLParam(r, "paymentId"))
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toPaymentResponse(payment))
}

// listShopPayments is mounted by the shop routes.
func (h *PaymentHandlers) listShopPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{AllowedFilters: []string{"status"}})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	status, _ := params.Filter("status")

	page, err := h.payments.ListShopPayments(ctx, services.ListShopPaymentsCommand{
		ShopID:         chi.URLParam(r, "shopId"),
		Status:         status,
		PageSize:       params.PageSize,
		AfterCreatedAt: params.Cursor.CreatedAt,
		AfterPaymentID: params.Cursor.ID,
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	resp := paymentListResponse{
		Items:         make([]paymentResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, payment := range page.Items {
		resp.Items = append(resp.Items, toPaymentResponse(payment))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func toCartItems(items []cartItemRequest) []services.CartItem {
	out := make([]services.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, services.CartItem{
			ItemID:          strings.TrimSpace(item.ItemID),
			Name:            item.Name,
			Quantity:        item.Quantity,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
			Cost:            item.Cost,
		})
	}
	return out
}

// toPaymentResponse leaves out the customer email and item costs.
func toPaymentResponse(p domain.Payment) paymentResponse {
	resp := paymentResponse{
		ID:          p.ID,
		ShopID:      p.ShopID,
		VendorID:    p.VendorID,
		HotelID:     p.HotelID,
		Provider:    p.Provider,
		ProviderRef: p.ProviderRef,
		Status:      string(p.Status),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Breakdown:   p.Breakdown,
		Items:       make([]paymentItemResponse, 0, len(p.Items)),
		Note:        p.Note,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	for _, item := range p.Items {
		resp.Items = append(resp.Items, paymentItemResponse{
			ItemID:          item.ItemID,
			Name:            item.Name,
			Quantity:        item.Quantity,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
		})
	}
	return resp
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	var cfgErr *splits.ConfigurationError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request timed out", http.StatusGatewayTimeout))
	case errors.As(err, &cfgErr):
		httpx.WriteError(ctx, w, httpx.NewError("payment_config_invalid", paymentFailedMessage, http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"model": cfgErr.Model.Tag()}))
	case errors.Is(err, splits.ErrMissingConfiguration):
		httpx.WriteError(ctx, w, httpx.NewError("payment_config_missing", paymentFailedMessage, http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "payment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentShopNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("shop_not_found", "shop payment configuration not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentAmountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", "order total has changed; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentProviderFailure):
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_error", paymentFailedMessage, http.StatusBadGateway))
	case errors.Is(err, services.ErrPaymentRepositoryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusInternalServerError))
	}
}
