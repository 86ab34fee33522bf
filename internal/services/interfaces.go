package services

import (
	"context"
	"time"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CartItem           = domain.CartItem
	Payment            = domain.Payment
	PaymentPage        = domain.PaymentPage
	PaymentStatus      = domain.PaymentStatus
	ShopPaymentConfig  = domain.ShopPaymentConfig
	SettlementEvent    = domain.SettlementEvent
	SystemHealthReport = domain.SystemHealthReport
)

// PaymentService computes payment splits for checkouts and creates the provider payment.
type PaymentService interface {
	PreviewSplit(ctx context.Context, cmd PreviewSplitCommand) (splits.PaymentBreakdown, error)
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error)
	GetPayment(ctx context.Context, paymentID string) (Payment, error)
	ListShopPayments(ctx context.Context, cmd ListShopPaymentsCommand) (PaymentPage, error)
}

// ShopPaymentConfigService manages each shop's revenue-sharing policy.
type ShopPaymentConfigService interface {
	GetConfig(ctx context.Context, shopID string) (ShopPaymentConfig, error)
	SaveConfig(ctx context.Context, cmd SaveShopPaymentConfigCommand) (ShopPaymentConfig, error)
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// SettlementPublisher hands settlement events to the payout pipeline.
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, event SettlementEvent) (string, error)
}

// SplitRecorder receives one observation per split calculation.
type SplitRecorder interface {
	Record(ctx context.Context, model, currency, outcome string, total float64)
}

// PreviewSplitCommand asks for a breakdown without charging. Config, when set, is used instead of
// the stored shop policy.
type PreviewSplitCommand struct {
	ShopID      string
	Config      *splits.MerchantPaymentConfig
	Currency    string
	Items       []CartItem
	DeliveryFee float64
	Tip         float64
}

// CreatePaymentIntentCommand starts a checkout payment. Amount, when set, is the total the client
// displayed and must match the server-computed total.
type CreatePaymentIntentCommand struct {
	ShopID         string
	Currency       string
	Items          []CartItem
	DeliveryFee    float64
	Tip            float64
	Amount         *float64
	CustomerEmail  string
	Note           string
	IdempotencyKey string
}

// PaymentIntentResult is returned to the checkout screen to confirm the payment client-side.
type PaymentIntentResult struct {
	PaymentID    string
	Provider     string
	ProviderRef  string
	ClientSecret string
	Amount       float64
	AmountMinor  int64
	Currency     string
	Breakdown    splits.PaymentBreakdown
}

// ListShopPaymentsCommand pages through a shop's payments, newest first.
type ListShopPaymentsCommand struct {
	ShopID         string
	Status         string
	PageSize       int
	AfterCreatedAt time.Time
	AfterPaymentID string
}

// SaveShopPaymentConfigCommand replaces a shop's policy.
type SaveShopPaymentConfigCommand struct {
	ShopID string
	Config splits.MerchantPaymentConfig
}
