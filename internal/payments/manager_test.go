package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	lastOp  string
	intent  Intent
	payment PaymentDetails
	err     error
}

func (f *fakeProvider) CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	f.lastOp = "create"
	return f.intent, f.err
}

func (f *fakeProvider) CancelPaymentIntent(ctx context.Context, req CancelRequest) (PaymentDetails, error) {
	f.lastOp = "cancel"
	return f.payment, f.err
}

func (f *fakeProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	f.lastOp = "lookup"
	return f.payment, f.err
}

func TestManagerCreatePaymentIntentUsesPreferredProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{intent: Intent{ID: "pi_stripe"}}
	tranzila := &fakeProvider{intent: Intent{ID: "tz_1"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe":   stripe,
		"tranzila": tranzila,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	intent, err := mgr.CreatePaymentIntent(ctx, PaymentContext{PreferredProvider: "tranzila"}, IntentRequest{Currency: "ILS"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.Provider != "tranzila" {
		t.Fatalf("expected provider 'tranzila', got %q", intent.Provider)
	}
	if stripe.lastOp != "" {
		t.Fatalf("expected stripe provider to remain unused")
	}
}

func TestManagerRoutesByCurrency(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{intent: Intent{ID: "pi_stripe"}}
	tranzila := &fakeProvider{intent: Intent{ID: "tz_1"}}

	mgr, err := NewManager(
		map[string]Provider{"stripe": stripe, "tranzila": tranzila},
		WithCurrencyRoutes(map[string]string{"ils": "tranzila"}),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	intent, err := mgr.CreatePaymentIntent(ctx, PaymentContext{Currency: "ILS"}, IntentRequest{Currency: "ILS"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.Provider != "tranzila" || tranzila.lastOp != "create" {
		t.Fatalf("expected tranzila to handle ILS, got %q", intent.Provider)
	}

	if _, err := mgr.CreatePaymentIntent(ctx, PaymentContext{Currency: "USD"}, IntentRequest{Currency: "USD"}); err != nil {
		t.Fatalf("create usd intent: %v", err)
	}
	if stripe.lastOp != "create" {
		t.Fatalf("expected stripe default for USD")
	}
}

func TestManagerFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{payment: PaymentDetails{Provider: "stripe"}}

	mgr, err := NewManager(map[string]Provider{"stripe": stripe})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	details, err := mgr.LookupPayment(ctx, PaymentContext{}, LookupRequest{IntentID: "pi_123"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stripe.lastOp != "lookup" || details.Provider != "stripe" {
		t.Fatalf("expected lookup to invoke default provider, got %+v", details)
	}

	if _, err := mgr.CancelPaymentIntent(ctx, PaymentContext{}, CancelRequest{IntentID: "pi_123"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if stripe.lastOp != "cancel" {
		t.Fatalf("expected cancel to invoke default provider")
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{}, "tranzila": &fakeProvider{}}, WithDefaultProvider(""))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.CreatePaymentIntent(ctx, PaymentContext{PreferredProvider: "unknown"}, IntentRequest{Currency: "USD"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	_, err = mgr.CreatePaymentIntent(ctx, PaymentContext{Currency: "USD"}, IntentRequest{Currency: "USD"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider without default, got %v", err)
	}
}

func TestManagerPropagatesProviderError(t *testing.T) {
	boom := errors.New("card_declined")
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{err: boom}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.CreatePaymentIntent(context.Background(), PaymentContext{}, IntentRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}
