package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/services"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

type stubShopConfigService struct {
	saved  services.SaveShopPaymentConfigCommand
	config services.ShopPaymentConfig
	err    error
}

func (s *stubShopConfigService) GetConfig(_ context.Context, shopID string) (services.ShopPaymentConfig, error) {
	if s.err != nil {
		return services.ShopPaymentConfig{}, s.err
	}
	cfg := s.config
	cfg.ShopID = shopID
	return cfg, nil
}

func (s *stubShopConfigService) SaveConfig(_ context.Context, cmd services.SaveShopPaymentConfigCommand) (services.ShopPaymentConfig, error) {
	s.saved = cmd
	if s.err != nil {
		return services.ShopPaymentConfig{}, s.err
	}
	return services.ShopPaymentConfig{
		ShopID:    cmd.ShopID,
		Config:    cmd.Config,
		UpdatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}, nil
}

var _ services.ShopPaymentConfigService = (*stubShopConfigService)(nil)

func TestShopHandlersPutConfig(t *testing.T) {
	svc := &stubShopConfigService{}
	router := NewRouter(WithShopRoutes(NewShopHandlers(svc, nil).Routes))

	body := `{"model":"3-way","platformFee":0.2,"hotelFee":0.3,"vendorFee":0.5,"tipDestination":"split","tipSplit":{"platform":0.5,"hotel":0.5},"hotelId":"hotel-1"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/shops/shop-1/payment-config", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.saved.ShopID != "shop-1" || svc.saved.Config.TipSplit == nil || svc.saved.Config.TipSplit.Hotel != 0.5 {
		t.Fatalf("unexpected save command %+v", svc.saved)
	}

	var resp struct {
		ShopID    string                       `json:"shopId"`
		Config    splits.MerchantPaymentConfig `json:"paymentConfig"`
		UpdatedAt string                       `json:"updatedAt"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Config.HotelID != "hotel-1" || resp.UpdatedAt != "2024-05-01T08:00:00Z" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestShopHandlersPutConfigRejectsOutOfRangeFee(t *testing.T) {
	svc := &stubShopConfigService{}
	router := NewRouter(WithShopRoutes(NewShopHandlers(svc, nil).Routes))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/shops/shop-1/payment-config", strings.NewReader(`{"model":"2-way","platformFee":1.5,"vendorFee":-0.5}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if svc.saved.ShopID != "" {
		t.Fatalf("service must not be called for invalid payload")
	}
}

func TestShopHandlersPutConfigReportsEngineRejection(t *testing.T) {
	svc := &stubShopConfigService{err: &splits.ConfigurationError{
		Model:  splits.ModelTwoWay,
		Field:  "tipDestination",
		Reason: "hotel destination requires a 3-way configuration with a hotel",
	}}
	router := NewRouter(WithShopRoutes(NewShopHandlers(svc, nil).Routes))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/shops/shop-1/payment-config", strings.NewReader(`{"model":"2-way","platformFee":0.5,"vendorFee":0.5,"tipDestination":"hotel"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "payment_config_invalid" || body["field"] != "tipDestination" || body["model"] != "2-way" {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestShopHandlersGetConfigNotFound(t *testing.T) {
	svc := &stubShopConfigService{err: services.ErrPaymentShopNotFound}
	router := NewRouter(WithShopRoutes(NewShopHandlers(svc, nil).Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shops/shop-9/payment-config", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
