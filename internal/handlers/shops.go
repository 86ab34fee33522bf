package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/httpx"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/services"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

const maxShopConfigBody = 8 * 1024

// ShopHandlers manages per-shop payment configuration and payment listings.
type ShopHandlers struct {
	configs  services.ShopPaymentConfigService
	payments *PaymentHandlers
	validate *validator.Validate
}

// NewShopHandlers constructs shop handlers. payments may be nil when listings are not served.
func NewShopHandlers(configs services.ShopPaymentConfigService, payments *PaymentHandlers) *ShopHandlers {
	return &ShopHandlers{
		configs:  configs,
		payments: payments,
		validate: newValidator(),
	}
}

// Routes registers shop endpoints under the provided router.
func (h *ShopHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{shopId}/payment-config", h.getConfig)
	r.Put("/{shopId}/payment-config", h.putConfig)
	if h.payments != nil {
		r.Get("/{shopId}/payments", h.payments.listShopPayments)
	}
}

type shareMapRequest struct {
	Platform float64 `json:"platform" validate:"gte=0,lte=1"`
	Hotel    float64 `json:"hotel" validate:"gte=0,lte=1"`
	Vendor   float64 `json:"vendor" validate:"gte=0,lte=1"`
}

type paymentConfigRequest struct {
	Model               string           `json:"model" validate:"max=32"`
	PlatformFee         float64          `json:"platformFee" validate:"gte=0,lte=1"`
	VendorFee           float64          `json:"vendorFee" validate:"gte=0,lte=1"`
	HotelFee            float64          `json:"hotelFee" validate:"gte=0,lte=1"`
	DeliveryDestination string           `json:"deliveryDestination" validate:"max=32"`
	TipDestination      string           `json:"tipDestination" validate:"max=32"`
	DeliverySplit       *shareMapRequest `json:"deliverySplit"`
	TipSplit            *shareMapRequest `json:"tipSplit"`
	VendorID            string           `json:"vendorId" validate:"max=128"`
	HotelID             string           `json:"hotelId" validate:"max=128"`
}

type shopPaymentConfigResponse struct {
	ShopID    string                       `json:"shopId"`
	Config    splits.MerchantPaymentConfig `json:"paymentConfig"`
	UpdatedAt string                       `json:"updatedAt,omitempty"`
}

func (h *ShopHandlers) getConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.configs == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shops_unavailable", "shop service unavailable", http.StatusServiceUnavailable))
		return
	}

	cfg, err := h.configs.GetConfig(ctx, chi.URLParam(r, "shopId"))
	if err != nil {
		writeShopConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toShopConfigResponse(cfg))
}

func (h *ShopHandlers) putConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.configs == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shops_unavailable", "shop service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req paymentConfigRequest
	if !decodeJSONBody(ctx, w, r, h.validate, maxShopConfigBody, &req) {
		return
	}

	saved, err := h.configs.SaveConfig(ctx, services.SaveShopPaymentConfigCommand{
		ShopID: chi.URLParam(r, "shopId"),
		Config: req.toConfig(),
	})
	if err != nil {
		writeShopConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toShopConfigResponse(saved))
}

func (req paymentConfigRequest) toConfig() splits.MerchantPaymentConfig {
	cfg := splits.MerchantPaymentConfig{
		Model:               req.Model,
		PlatformFee:         req.PlatformFee,
		VendorFee:           req.VendorFee,
		HotelFee:            req.HotelFee,
		DeliveryDestination: req.DeliveryDestination,
		TipDestination:      req.TipDestination,
		VendorID:            req.VendorID,
		HotelID:             req.HotelID,
	}
	if req.DeliverySplit != nil {
		cfg.DeliverySplit = &splits.ShareMap{Platform: req.DeliverySplit.Platform, Hotel: req.DeliverySplit.Hotel, Vendor: req.DeliverySplit.Vendor}
	}
	if req.TipSplit != nil {
		cfg.TipSplit = &splits.ShareMap{Platform: req.TipSplit.Platform, Hotel: req.TipSplit.Hotel, Vendor: req.TipSplit.Vendor}
	}
	return cfg
}

func toShopConfigResponse(cfg services.ShopPaymentConfig) shopPaymentConfigResponse {
	resp := shopPaymentConfigResponse{ShopID: cfg.ShopID, Config: cfg.Config}
	if !cfg.UpdatedAt.IsZero() {
		resp.UpdatedAt = cfg.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

// writeShopConfigError reports configuration problems in detail since the caller is the shop operator.
func writeShopConfigError(ctx context.Context, w http.ResponseWriter, err error) {
	var cfgErr *splits.ConfigurationError
	if errors.As(err, &cfgErr) {
		details := map[string]any{"model": cfgErr.Model.Tag()}
		if cfgErr.Field != "" {
			details["field"] = cfgErr.Field
		} else {
			details["sum"] = cfgErr.Sum
		}
		httpx.WriteError(ctx, w, httpx.NewError("payment_config_invalid", cfgErr.Reason, http.StatusUnprocessableEntity).WithDetails(details))
		return
	}
	writePaymentError(ctx, w, err)
}
