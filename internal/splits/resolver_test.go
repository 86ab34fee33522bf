package splits

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestResolve_TwoWayRoutesDeliveryAndTip(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:               "2-way",
		PlatformFee:         0.2,
		VendorFee:           0.8,
		DeliveryDestination: "platform",
		TipDestination:      "vendor",
	}
	order := OrderSummary{ItemsTotal: 100, DeliveryFee: 10, Tip: 5}

	got, err := Resolve(order, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Splits{Platform: 30, Vendor: 85, Model: ModelTwoWay}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
}

func TestResolve_COGBasedPaysCostFirst(t *testing.T) {
	cfg := &MerchantPaymentConfig{Model: "cog-based", PlatformFee: 0.3, VendorFee: 0.7}
	order := OrderSummary{ItemsTotal: 100, COG: 40}

	got, err := Resolve(order, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Splits{Platform: 18, Vendor: 82, Model: ModelCOGBased}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
}

func TestResolve_ThreeWaySplitsProfit(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:       "3-way",
		PlatformFee: 0.1,
		HotelFee:    0.2,
		VendorFee:   0.7,
		HotelID:     "hotel_1",
	}
	order := OrderSummary{ItemsTotal: 100, COG: 20}

	got, err := Resolve(order, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Splits{Platform: 8, Hotel: 16, Vendor: 76, Model: ModelThreeWay}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
}

func TestResolve_ThreeWayRoutesToHotelAndSplitMaps(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:               "3-way",
		PlatformFee:         0.1,
		HotelFee:            0.2,
		VendorFee:           0.7,
		HotelID:             "hotel_1",
		DeliveryDestination: "hotel",
		TipDestination:      "split",
		TipSplit:            &ShareMap{Platform: 0.5, Hotel: 0.25},
	}
	order := OrderSummary{ItemsTotal: 100, COG: 20, DeliveryFee: 10, Tip: 8}

	got, err := Resolve(order, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The tip map omits the vendor, so the vendor's tip share is zero.
	want := Splits{Platform: 8 + 4, Hotel: 16 + 10 + 2, Vendor: 76, Model: ModelThreeWay}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
}

func TestResolve_ThreeWayWithoutHotelFallsBackToTwoWay(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:       "3-way",
		PlatformFee: 0.25,
		VendorFee:   0.75,
		HotelFee:    0.4,
	}
	order := OrderSummary{ItemsTotal: 80, COG: 30, Tip: 4}

	got, err := Resolve(order, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Splits{Platform: 20 + 4, Vendor: 60, Model: ModelThreeWayFallback}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
	if got.Model.Tag() != "2-way" {
		t.Fatalf("expected fallback to report 2-way, got %q", got.Model.Tag())
	}
}

func TestResolve_FallbackRoutesHotelDestinationToPlatform(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:          "3-way",
		PlatformFee:    0.2,
		VendorFee:      0.8,
		HotelFee:       0.3,
		TipDestination: "hotel",
	}

	got, err := Resolve(OrderSummary{ItemsTotal: 10, Tip: 1}, cfg)
	if err != nil {
		t.Fatalf("expected fallback to settle, got %v", err)
	}

	want := Splits{Platform: 3, Vendor: 8, Model: ModelThreeWayFallback}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
}

func TestResolve_SplitDestinationDefaultsToPlatform(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:               "2-way",
		PlatformFee:         0.5,
		VendorFee:           0.5,
		DeliveryDestination: "split",
	}
	order := OrderSummary{ItemsTotal: 10, DeliveryFee: 6}

	got, err := Resolve(order, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Splits{Platform: 11, Vendor: 5}, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
}

func TestResolve_TwoWaySplitMapIgnoresHotelShare(t *testing.T) {
	cfg := &MerchantPaymentConfig{
		Model:               "2-way",
		PlatformFee:         0.5,
		VendorFee:           0.5,
		DeliveryDestination: "split",
		DeliverySplit:       &ShareMap{Platform: 0.4, Vendor: 0.6, Hotel: 0.5},
	}
	order := OrderSummary{DeliveryFee: 10}

	got, err := Resolve(order, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Splits{Platform: 4, Vendor: 6}, got, approx); diff != "" {
		t.Fatalf("unexpected splits (-want +got):\n%s", diff)
	}
}

func TestResolve_RejectsMisconfiguredFees(t *testing.T) {
	cases := []struct {
		name string
		cfg  MerchantPaymentConfig
	}{
		{name: "two way over", cfg: MerchantPaymentConfig{Model: "2-way", PlatformFee: 0.5, VendorFee: 0.6}},
		{name: "cog under", cfg: MerchantPaymentConfig{Model: "cog-based", PlatformFee: 0.3, VendorFee: 0.6}},
		{name: "three way missing hotel share", cfg: MerchantPaymentConfig{Model: "3-way", PlatformFee: 0.1, VendorFee: 0.7, HotelID: "h"}},
		{name: "hotel destination outside three way", cfg: MerchantPaymentConfig{Model: "2-way", PlatformFee: 0.2, VendorFee: 0.8, TipDestination: "hotel"}},
		{name: "unknown destination", cfg: MerchantPaymentConfig{Model: "2-way", PlatformFee: 0.2, VendorFee: 0.8, DeliveryDestination: "venue"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			got, err := Resolve(OrderSummary{ItemsTotal: 100, DeliveryFee: 5, Tip: 5}, &cfg)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigurationError, got %T", err)
			}
			if got != (Splits{}) {
				t.Fatalf("expected no partial output, got %+v", got)
			}
		})
	}
}

func TestResolve_ToleratesRoundingWithinTolerance(t *testing.T) {
	cfg := &MerchantPaymentConfig{Model: "2-way", PlatformFee: 0.3333, VendorFee: 0.6667 + 0.0009}
	if _, err := Resolve(OrderSummary{ItemsTotal: 10}, cfg); err != nil {
		t.Fatalf("expected sum within tolerance to pass, got %v", err)
	}
}

func TestResolve_MissingConfiguration(t *testing.T) {
	if _, err := Resolve(OrderSummary{ItemsTotal: 10}, nil); !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
}

func TestResolve_TwoWayConservesTotal(t *testing.T) {
	destinations := []string{"", "platform", "vendor", "split"}
	fees := []float64{0, 0.15, 0.5, 0.85, 1}

	for _, platformFee := range fees {
		for _, delivery := range destinations {
			for _, tip := range destinations {
				cfg := &MerchantPaymentConfig{
					Model:               "2-way",
					PlatformFee:         platformFee,
					VendorFee:           1 - platformFee,
					DeliveryDestination: delivery,
					TipDestination:      tip,
					DeliverySplit:       &ShareMap{Platform: 0.3, Vendor: 0.7},
				}
				order := OrderSummary{ItemsTotal: 47.5, DeliveryFee: 3.25, Tip: 2.1}
				got, err := Resolve(order, cfg)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Hotel != 0 {
					t.Fatalf("expected zero hotel share, got %v", got.Hotel)
				}
				if !cmp.Equal(got.Platform+got.Vendor, order.Total(), approx) {
					t.Fatalf("fee %v delivery %q tip %q: gross %v does not match total %v",
						platformFee, delivery, tip, got.Platform+got.Vendor, order.Total())
				}
			}
		}
	}
}

func TestResolve_VendorNeverBelowCost(t *testing.T) {
	configs := []MerchantPaymentConfig{
		{Model: "cog-based", PlatformFee: 1, VendorFee: 0},
		{Model: "cog-based", PlatformFee: 0.4, VendorFee: 0.6},
		{Model: "3-way", PlatformFee: 0.5, HotelFee: 0.5, VendorFee: 0, HotelID: "h"},
		{Model: "3-way", PlatformFee: 0.2, HotelFee: 0.1, VendorFee: 0.7, HotelID: "h"},
	}
	for _, cfg := range configs {
		for _, cog := range []float64{0, 12.5, 60, 100} {
			cfg := cfg
			got, err := Resolve(OrderSummary{ItemsTotal: 100, COG: cog}, &cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Vendor < cog {
				t.Fatalf("%s: vendor %v below cost %v", cfg.Model, got.Vendor, cog)
			}
		}
	}
}

func TestParseSplitModel(t *testing.T) {
	cases := map[string]SplitModel{
		"2-way":     ModelTwoWay,
		"COG-Based": ModelCOGBased,
		" 3-way ":   ModelThreeWay,
		"":          ModelTwoWay,
		"custom":    ModelTwoWay,
	}
	for tag, want := range cases {
		if got := ParseSplitModel(tag); got != want {
			t.Fatalf("ParseSplitModel(%q) = %v, want %v", tag, got, want)
		}
	}
}
