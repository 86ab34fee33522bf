package splits

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCalculate_TwoWayBreakdown(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:               "2-way",
		PlatformFee:         0.2,
		VendorFee:           0.8,
		DeliveryDestination: "platform",
		TipDestination:      "vendor",
	}
	order := OrderSummary{ItemsTotal: 100, DeliveryFee: 10, Tip: 5}

	got, err := Calculate(order, cfg, "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const fee = 115*0.029 + 0.30
	platformFee := fee * 30 / 115
	vendorFee := fee * 85 / 115
	want := PaymentBreakdown{
		Splits:     Splits{Platform: 30, Vendor: 85, Model: ModelTwoWay},
		StripeFees: FeeShares{Platform: platformFee, Vendor: vendorFee, Total: fee},
		FinalAmounts: FinalAmounts{
			Platform:       30 - platformFee,
			Vendor:         85 - vendorFee,
			StripeFeeTotal: fee,
		},
		Breakdown: Composition{ItemsTotal: 100, Profit: 100, DeliveryFee: 10, Tip: 5, Total: 115},
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected breakdown (-want +got):\n%s", diff)
	}
}

func TestCalculate_MisconfiguredProducesNoOutput(t *testing.T) {
	cfg := &MerchantPaymentConfig{Model: "2-way", PlatformFee: 0.5, VendorFee: 0.6}

	got, err := Calculate(OrderSummary{ItemsTotal: 50}, cfg, "usd")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got != (PaymentBreakdown{}) {
		t.Fatalf("expected empty breakdown, got %+v", got)
	}
}

func TestCalculate_ZeroOrder(t *testing.T) {
	cfg := &MerchantPaymentConfig{Model: "cog-based", PlatformFee: 0.3, VendorFee: 0.7}

	got, err := Calculate(OrderSummary{}, cfg, "ils")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StripeFees != (FeeShares{}) {
		t.Fatalf("expected zero fee shares, got %+v", got.StripeFees)
	}
	if got.FinalAmounts != (FinalAmounts{}) {
		t.Fatalf("expected zero final amounts, got %+v", got.FinalAmounts)
	}
}

func TestCalculate_FinalAmountsNonNegative(t *testing.T) {
	calc := NewCalculator(NewFeeSchedule(0.5, map[string]float64{"usd": 50}, "usd"))
	configs := []MerchantPaymentConfig{
		{Model: "2-way", PlatformFee: 0.999, VendorFee: 0.001},
		{Model: "cog-based", PlatformFee: 0, VendorFee: 1},
		{Model: "3-way", PlatformFee: 0.98, HotelFee: 0.01, VendorFee: 0.01, HotelID: "h", TipDestination: "hotel"},
	}
	orders := []OrderSummary{
		{ItemsTotal: 1},
		{ItemsTotal: 20, COG: 5, DeliveryFee: 2, Tip: 1},
		{ItemsTotal: 0.5, COG: 0.5},
	}

	for _, cfg := range configs {
		for _, order := range orders {
			cfg := cfg
			got, err := calc.Calculate(order, &cfg, "usd")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			final := got.FinalAmounts
			if final.Platform < 0 || final.Hotel < 0 || final.Vendor < 0 {
				t.Fatalf("%s %+v: negative final amounts %+v", cfg.Model, order, final)
			}
		}
	}
}

func TestCalculator_UsesInjectedSchedule(t *testing.T) {
	calc := NewCalculator(NewFeeSchedule(0.01, map[string]float64{"eur": 0.5}, "eur"))
	cfg := &MerchantPaymentConfig{Model: "2-way", PlatformFee: 0.5, VendorFee: 0.5}

	got, err := calc.Calculate(OrderSummary{ItemsTotal: 100}, cfg, "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cmp.Equal(got.StripeFees.Total, 1.5, approx) {
		t.Fatalf("expected total fee 1.5, got %v", got.StripeFees.Total)
	}
}

func TestFinalize_ClampsAtZero(t *testing.T) {
	got := Finalize(Splits{Platform: 1, Hotel: 0, Vendor: 10}, FeeShares{Platform: 2, Hotel: 0.1, Vendor: 1, Total: 3.1})
	want := FinalAmounts{Platform: 0, Hotel: 0, Vendor: 9, StripeFeeTotal: 3.1}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected final amounts (-want +got):\n%s", diff)
	}
}

func TestPaymentBreakdown_JSONUsesModelTag(t *testing.T) {
	cfg := &MerchantPaymentConfig{Model: "3-way", PlatformFee: 0.5, VendorFee: 0.5}
	got, err := Calculate(OrderSummary{ItemsTotal: 10}, cfg, "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Splits struct {
			Model string `json:"model"`
		} `json:"splits"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Splits.Model != "2-way" {
		t.Fatalf("expected applied model 2-way, got %q", decoded.Splits.Model)
	}
}
