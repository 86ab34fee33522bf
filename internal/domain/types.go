package domain

import (
	"time"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

// CartItem is a single line of a stadium food order as submitted by the checkout screen.
type CartItem struct {
	ItemID          string
	Name            string
	Quantity        int
	Price           float64
	DiscountedPrice float64
	Cost            float64
}

// UnitPrice is the price charged per unit, preferring a positive discounted price.
func (i CartItem) UnitPrice() float64 {
	if i.DiscountedPrice > 0 {
		return i.DiscountedPrice
	}
	return i.Price
}

// ShopPaymentConfig is the stored revenue-sharing policy of one shop.
type ShopPaymentConfig struct {
	ShopID    string
	Config    splits.MerchantPaymentConfig
	UpdatedAt time.Time
}

// PaymentStatus enumerates the lifecycle of a payment record.
type PaymentStatus string

const (
	// PaymentStatusRequiresPayment means the intent exists and awaits client confirmation.
	PaymentStatusRequiresPayment PaymentStatus = "requires_payment"
	// PaymentStatusSucceeded means the provider captured the funds.
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	// PaymentStatusFailed means the provider rejected or cancelled the payment.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment records a created payment intent together with the split computed for it.
type Payment struct {
	ID             string
	ShopID         string
	VendorID       string
	HotelID        string
	Provider       string
	ProviderRef    string
	Status         PaymentStatus
	Amount         int64
	Currency       string
	Breakdown      splits.PaymentBreakdown
	Items          []CartItem
	CustomerEmail  string
	Note           string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentPage is one page of payments ordered by creation time, newest first.
type PaymentPage struct {
	Items         []Payment
	NextPageToken string
}

// SettlementEvent is published once a payment intent exists so payouts can be routed per party.
type SettlementEvent struct {
	EventID     string                  `json:"eventId"`
	PaymentID   string                  `json:"paymentId"`
	ShopID      string                  `json:"shopId"`
	VendorID    string                  `json:"vendorId,omitempty"`
	HotelID     string                  `json:"hotelId,omitempty"`
	ProviderRef string                  `json:"providerRef"`
	Currency    string                  `json:"currency"`
	Amount      int64                   `json:"amount"`
	Model       string                  `json:"model"`
	Payouts     splits.FinalAmounts     `json:"payouts"`
	Breakdown   splits.PaymentBreakdown `json:"breakdown"`
	CreatedAt   time.Time               `json:"createdAt"`
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
