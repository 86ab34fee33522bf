package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/repositories"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

// ShopPaymentConfigServiceDeps wires the dependencies required by the shop payment config service.
type ShopPaymentConfigServiceDeps struct {
	Configs repositories.ShopPaymentConfigRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type shopPaymentConfigService struct {
	configs repositories.ShopPaymentConfigRepository
	now     func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
}

var _ ShopPaymentConfigService = (*shopPaymentConfigService)(nil)

// NewShopPaymentConfigService constructs the service.
func NewShopPaymentConfigService(deps ShopPaymentConfigServiceDeps) (ShopPaymentConfigService, error) {
	if deps.Configs == nil {
		return nil, errors.New("shop payment config service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shopPaymentConfigService{
		configs: deps.Configs,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *shopPaymentConfigService) GetConfig(ctx context.Context, shopID string) (ShopPaymentConfig, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return ShopPaymentConfig{}, fmt.Errorf("%w: shop id is required", ErrPaymentInvalidInput)
	}
	cfg, err := s.configs.Get(ctx, shopID)
	if err != nil {
		return ShopPaymentConfig{}, translateConfigRepositoryError(err)
	}
	return cfg, nil
}

// SaveConfig rejects policies the split engine would refuse at checkout time.
func (s *shopPaymentConfigService) SaveConfig(ctx context.Context, cmd SaveShopPaymentConfigCommand) (ShopPaymentConfig, error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	if shopID == "" {
		return ShopPaymentConfig{}, fmt.Errorf("%w: shop id is required", ErrPaymentInvalidInput)
	}
	cfg := normaliseMerchantConfig(cmd.Config)
	if err := splits.Validate(&cfg); err != nil {
		return ShopPaymentConfig{}, err
	}

	saved, err := s.configs.Save(ctx, domain.ShopPaymentConfig{
		ShopID:    shopID,
		Config:    cfg,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return ShopPaymentConfig{}, translateConfigRepositoryError(err)
	}

	s.logger(ctx, "payments.config.saved", map[string]any{
		"shopId": shopID,
		"model":  cfg.SplitModel().Tag(),
	})
	return saved, nil
}

// normaliseMerchantConfig stores canonical tags so later reads never depend on aliases.
func normaliseMerchantConfig(cfg splits.MerchantPaymentConfig) splits.MerchantPaymentConfig {
	cfg.Model = splits.ParseSplitModel(cfg.Model).Tag()
	if strings.TrimSpace(cfg.DeliveryDestination) != "" {
		cfg.DeliveryDestination = string(splits.ParseDestination(cfg.DeliveryDestination))
	}
	if strings.TrimSpace(cfg.TipDestination) != "" {
		cfg.TipDestination = string(splits.ParseDestination(cfg.TipDestination))
	}
	cfg.VendorID = strings.TrimSpace(cfg.VendorID)
	cfg.HotelID = strings.TrimSpace(cfg.HotelID)
	return cfg
}

func translateConfigRepositoryError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isRepoNotFound(err) {
		return ErrPaymentShopNotFound
	}
	return fmt.Errorf("%w: %v", ErrPaymentRepositoryUnavailable, err)
}
