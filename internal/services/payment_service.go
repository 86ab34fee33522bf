package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/payments"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/textutil"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/repositories"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

const (
	paymentIDPrefix        = "pay_"
	settlementIDPrefix     = "stl_"
	defaultAmountTolerance = 0.01
	defaultPaymentCurrency = "ILS"
	maxNoteRunes           = 200
	maxItemNameRunes       = 80
	outcomeOK              = "ok"
	outcomeConfigError     = "config_error"
	outcomeMissingConfig   = "missing_config"
)

var (
	// ErrPaymentInvalidInput indicates the caller supplied invalid input parameters.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentShopNotFound indicates the shop has no stored payment configuration.
	ErrPaymentShopNotFound = errors.New("payment: shop not found")
	// ErrPaymentAmountMismatch indicates the client total differs from the computed total.
	ErrPaymentAmountMismatch = errors.New("payment: amount mismatch")
	// ErrPaymentProviderFailure indicates the PSP rejected or failed the request.
	ErrPaymentProviderFailure = errors.New("payment: provider failure")
	// ErrPaymentRepositoryUnavailable indicates persistence is currently unavailable.
	ErrPaymentRepositoryUnavailable = errors.New("payment: repository unavailable")
	// ErrPaymentNotFound indicates the payment record does not exist.
	ErrPaymentNotFound = errors.New("payment: not found")
)

// paymentIntentManager abstracts payments.Manager for easier testing.
type paymentIntentManager interface {
	CreatePaymentIntent(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error)
	CancelPaymentIntent(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CancelRequest) (payments.PaymentDetails, error)
	LookupPayment(ctx context.Context, paymentCtx payments.PaymentContext, req payments.LookupRequest) (payments.PaymentDetails, error)
}

// PaymentServiceDeps wires the dependencies required by the payment service.
type PaymentServiceDeps struct {
	Configs         repositories.ShopPaymentConfigRepository
	Payments        repositories.PaymentRepository
	Provider        paymentIntentManager
	Publisher       SettlementPublisher
	Calculator      splits.Calculator
	Metrics         SplitRecorder
	DefaultCurrency string
	AmountTolerance float64
	IDGenerator     func() string
	Clock           func() time.Time
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	configs         repositories.ShopPaymentConfigRepository
	payments        repositories.PaymentRepository
	provider        paymentIntentManager
	publisher       SettlementPublisher
	calculator      splits.Calculator
	metrics         SplitRecorder
	defaultCurrency string
	tolerance       float64
	newID           func() string
	now             func() time.Time
	logger          func(ctx context.Context, event string, fields map[string]any)
}

var _ PaymentService = (*paymentService)(nil)

// NewPaymentService constructs a PaymentService validating required dependencies.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Configs == nil {
		return nil, errors.New("payment service: shop payment config repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment service: payment provider is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	tolerance := deps.AmountTolerance
	if tolerance <= 0 {
		tolerance = defaultAmountTolerance
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = defaultPaymentCurrency
	}

	return &paymentService{
		configs:         deps.Configs,
		payments:        deps.Payments,
		provider:        deps.Provider,
		publisher:       deps.Publisher,
		calculator:      deps.Calculator,
		metrics:         deps.Metrics,
		defaultCurrency: currency,
		tolerance:       tolerance,
		newID:           idGen,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// PreviewSplit computes the breakdown the checkout screen shows before paying.
func (s *paymentService) PreviewSplit(ctx context.Context, cmd PreviewSplitCommand) (splits.PaymentBreakdown, error) {
	order, err := SummarizeCart(cmd.Items, cmd.DeliveryFee, cmd.Tip)
	if err != nil {
		return splits.PaymentBreakdown{}, err
	}
	currency := s.currency(cmd.Currency)

	cfg := cmd.Config
	if cfg == nil {
		shopID := strings.TrimSpace(cmd.ShopID)
		if shopID == "" {
			return splits.PaymentBreakdown{}, fmt.Errorf("%w: shop id or config is required", ErrPaymentInvalidInput)
		}
		cfg, err = s.loadConfig(ctx, shopID)
		if err != nil {
			return splits.PaymentBreakdown{}, err
		}
	}

	return s.calculate(ctx, order, cfg, currency, cmd.ShopID)
}

// CreatePaymentIntent runs the split for the shop's stored policy, creates the provider payment
// carrying the breakdown, persists the record and publishes the settlement event.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	if shopID == "" {
		return PaymentIntentResult{}, fmt.Errorf("%w: shop id is required", ErrPaymentInvalidInput)
	}
	email := strings.TrimSpace(cmd.CustomerEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return PaymentIntentResult{}, fmt.Errorf("%w: invalid customer email", ErrPaymentInvalidInput)
		}
	}

	order, err := SummarizeCart(cmd.Items, cmd.DeliveryFee, cmd.Tip)
	if err != nil {
		return PaymentIntentResult{}, err
	}
	total := order.Total()
	if total <= 0 {
		return PaymentIntentResult{}, fmt.Errorf("%w: order total must be positive", ErrPaymentInvalidInput)
	}
	if cmd.Amount != nil && math.Abs(*cmd.Amount-total) > s.tolerance {
		return PaymentIntentResult{}, fmt.Errorf("%w: client amount %.2f, computed %.2f", ErrPaymentAmountMismatch, *cmd.Amount, total)
	}

	currency := s.currency(cmd.Currency)
	amountMinor, err := payments.MinorUnits(total, currency)
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}
	// the charged amount after rounding to the currency's minor unit
	charged, err := payments.MajorUnits(amountMinor, currency)
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}

	cfg, err := s.loadConfig(ctx, shopID)
	if err != nil {
		return PaymentIntentResult{}, err
	}
	breakdown, err := s.calculate(ctx, order, cfg, currency, shopID)
	if err != nil {
		return PaymentIntentResult{}, err
	}

	paymentID := paymentIDPrefix + s.newID()
	note := textutil.PlainText(cmd.Note, maxNoteRunes)
	items := sanitizeItems(cmd.Items)
	paymentCtx := payments.PaymentContext{Currency: currency}

	intent, err := s.provider.CreatePaymentIntent(ctx, paymentCtx, payments.IntentRequest{
		Amount:         amountMinor,
		Currency:       currency,
		Description:    "Fans Munch order " + paymentID,
		ReceiptEmail:   email,
		TransferGroup:  paymentID,
		Metadata:       intentMetadata(paymentID, shopID, cfg, breakdown, note),
		IdempotencyKey: paymentID,
	})
	if err != nil {
		s.logger(ctx, "payments.intent.create_failed", map[string]any{
			"paymentId": paymentID,
			"shopId":    shopID,
			"error":     err.Error(),
		})
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrPaymentProviderFailure, err)
	}

	now := s.now()
	payment := domain.Payment{
		ID:             paymentID,
		ShopID:         shopID,
		VendorID:       strings.TrimSpace(cfg.VendorID),
		HotelID:        strings.TrimSpace(cfg.HotelID),
		Provider:       intent.Provider,
		ProviderRef:    intent.ID,
		Status:         domain.PaymentStatusRequiresPayment,
		Amount:         amountMinor,
		Currency:       currency,
		Breakdown:      breakdown,
		Items:          items,
		CustomerEmail:  email,
		Note:           note,
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.payments.Insert(ctx, payment); err != nil {
		s.cancelIntent(ctx, paymentCtx, intent.ID, paymentID)
		s.logger(ctx, "payments.record.persist_failed", map[string]any{
			"paymentId": paymentID,
			"error":     err.Error(),
		})
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrPaymentRepositoryUnavailable, err)
	}

	s.publishSettlement(ctx, payment, now)

	s.logger(ctx, "payments.intent.created", map[string]any{
		"paymentId":   paymentID,
		"shopId":      shopID,
		"providerRef": intent.ID,
		"model":       breakdown.Splits.Model.Tag(),
		"amount":      amountMinor,
		"currency":    currency,
	})

	return PaymentIntentResult{
		PaymentID:    paymentID,
		Provider:     intent.Provider,
		ProviderRef:  intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       charged,
		AmountMinor:  amountMinor,
		Currency:     currency,
		Breakdown:    breakdown,
	}, nil
}

// GetPayment returns the stored record, refreshing a pending status from the provider.
func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return Payment{}, fmt.Errorf("%w: payment id is required", ErrPaymentInvalidInput)
	}
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, s.translateRepositoryError(err, ErrPaymentNotFound)
	}
	if payment.Status != domain.PaymentStatusRequiresPayment || payment.ProviderRef == "" {
		return payment, nil
	}

	details, err := s.provider.LookupPayment(ctx, payments.PaymentContext{PreferredProvider: payment.Provider, Currency: payment.Currency}, payments.LookupRequest{IntentID: payment.ProviderRef})
	if err != nil {
		s.logger(ctx, "payments.lookup_failed", map[string]any{
			"paymentId": paymentID,
			"error":     err.Error(),
		})
		return payment, nil
	}
	status := paymentStatusFromProvider(details.Status)
	if status == payment.Status {
		return payment, nil
	}
	now := s.now()
	if err := s.payments.UpdateStatus(ctx, paymentID, status, now); err != nil {
		s.logger(ctx, "payments.status_update_failed", map[string]any{
			"paymentId": paymentID,
			"error":     err.Error(),
		})
	}
	payment.Status = status
	payment.UpdatedAt = now
	return payment, nil
}

// ListShopPayments pages through a shop's payments.
func (s *paymentService) ListShopPayments(ctx context.Context, cmd ListShopPaymentsCommand) (PaymentPage, error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	if shopID == "" {
		return PaymentPage{}, fmt.Errorf("%w: shop id is required", ErrPaymentInvalidInput)
	}
	status := domain.PaymentStatus(strings.TrimSpace(cmd.Status))
	switch status {
	case "", domain.PaymentStatusRequiresPayment, domain.PaymentStatusSucceeded, domain.PaymentStatusFailed:
	default:
		return PaymentPage{}, fmt.Errorf("%w: unknown status %q", ErrPaymentInvalidInput, cmd.Status)
	}

	page, err := s.payments.ListByShop(ctx, shopID, repositories.PaymentListFilter{
		Status:         status,
		PageSize:       cmd.PageSize,
		AfterCreatedAt: cmd.AfterCreatedAt,
		AfterPaymentID: strings.TrimSpace(cmd.AfterPaymentID),
	})
	if err != nil {
		return PaymentPage{}, s.translateRepositoryError(err, ErrPaymentNotFound)
	}
	return page, nil
}

func (s *paymentService) calculate(ctx context.Context, order splits.OrderSummary, cfg *splits.MerchantPaymentConfig, currency, shopID string) (splits.PaymentBreakdown, error) {
	model := "none"
	if cfg != nil {
		model = cfg.SplitModel().Tag()
	}

	breakdown, err := s.calculator.Calculate(order, cfg, currency)
	if err != nil {
		outcome := outcomeConfigError
		if errors.Is(err, splits.ErrMissingConfiguration) {
			outcome = outcomeMissingConfig
		}
		s.record(ctx, model, currency, outcome, order.Total())
		s.logger(ctx, "payments.split.rejected", map[string]any{
			"shopId": shopID,
			"model":  model,
			"error":  err.Error(),
		})
		return splits.PaymentBreakdown{}, err
	}

	s.record(ctx, model, currency, outcomeOK, order.Total())
	return breakdown, nil
}

// loadConfig returns nil without error when the shop has no stored policy so the engine reports
// the missing configuration.
func (s *paymentService) loadConfig(ctx context.Context, shopID string) (*splits.MerchantPaymentConfig, error) {
	stored, err := s.configs.Get(ctx, shopID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil
		}
		return nil, s.translateRepositoryError(err, ErrPaymentShopNotFound)
	}
	cfg := stored.Config
	return &cfg, nil
}

func (s *paymentService) cancelIntent(ctx context.Context, paymentCtx payments.PaymentContext, intentID, paymentID string) {
	if _, err := s.provider.CancelPaymentIntent(ctx, paymentCtx, payments.CancelRequest{
		IntentID:       intentID,
		Reason:         "abandoned",
		IdempotencyKey: paymentID + ":cancel",
	}); err != nil {
		s.logger(ctx, "payments.intent.cancel_failed", map[string]any{
			"paymentId":   paymentID,
			"providerRef": intentID,
			"error":       err.Error(),
		})
	}
}

func (s *paymentService) publishSettlement(ctx context.Context, payment domain.Payment, now time.Time) {
	if s.publisher == nil {
		return
	}
	event := domain.SettlementEvent{
		EventID:     settlementIDPrefix + s.newID(),
		PaymentID:   payment.ID,
		ShopID:      payment.ShopID,
		VendorID:    payment.VendorID,
		HotelID:     payment.HotelID,
		ProviderRef: payment.ProviderRef,
		Currency:    payment.Currency,
		Amount:      payment.Amount,
		Model:       payment.Breakdown.Splits.Model.Tag(),
		Payouts:     payment.Breakdown.FinalAmounts,
		Breakdown:   payment.Breakdown,
		CreatedAt:   now,
	}
	if _, err := s.publisher.PublishSettlement(ctx, event); err != nil {
		s.logger(ctx, "payments.settlement.publish_failed", map[string]any{
			"paymentId": payment.ID,
			"error":     err.Error(),
		})
	}
}

func (s *paymentService) record(ctx context.Context, model, currency, outcome string, total float64) {
	if s.metrics != nil {
		s.metrics.Record(ctx, model, strings.ToLower(currency), outcome, total)
	}
}

func (s *paymentService) currency(value string) string {
	if c := strings.ToUpper(strings.TrimSpace(value)); c != "" {
		return c
	}
	return s.defaultCurrency
}

func (s *paymentService) translateRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return notFound
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrPaymentRepositoryUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrPaymentRepositoryUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func paymentStatusFromProvider(status payments.Status) domain.PaymentStatus {
	switch status {
	case payments.StatusSucceeded:
		return domain.PaymentStatusSucceeded
	case payments.StatusFailed:
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusRequiresPayment
	}
}

func sanitizeItems(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, item := range items {
		item.ItemID = strings.TrimSpace(item.ItemID)
		item.Name = textutil.PlainText(item.Name, maxItemNameRunes)
		out = append(out, item)
	}
	return out
}

// intentMetadata carries the split onto the provider payment so payouts can be reconciled there.
func intentMetadata(paymentID, shopID string, cfg *splits.MerchantPaymentConfig, b splits.PaymentBreakdown, note string) map[string]string {
	amount := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	metadata := textutil.NormalizeStringMap(map[string]string{
		"paymentId":      paymentID,
		"shopId":         shopID,
		"vendorId":       cfg.VendorID,
		"hotelId":        cfg.HotelID,
		"splitModel":     b.Splits.Model.Tag(),
		"platformAmount": amount(b.FinalAmounts.Platform),
		"hotelAmount":    amount(b.FinalAmounts.Hotel),
		"vendorAmount":   amount(b.FinalAmounts.Vendor),
		"stripeFeeTotal": amount(b.StripeFees.Total),
		"deliveryFee":    amount(b.Breakdown.DeliveryFee),
		"tip":            amount(b.Breakdown.Tip),
		"note":           note,
	}, 0)
	for key, value := range metadata {
		if value == "" {
			delete(metadata, key)
		}
	}
	return metadata
}
