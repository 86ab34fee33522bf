package splits

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFeeSchedule_AllocateProportionally(t *testing.T) {
	schedule := DefaultFeeSchedule()
	gross := Splits{Platform: 30, Vendor: 85}

	got := schedule.Allocate(gross, 115, "usd")

	const totalFee = 115*0.029 + 0.30
	want := FeeShares{
		Platform: totalFee * (30.0 / 115.0),
		Vendor:   totalFee * (85.0 / 115.0),
		Total:    totalFee,
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("unexpected fee shares (-want +got):\n%s", diff)
	}
	if !cmp.Equal(got.Platform+got.Hotel+got.Vendor, totalFee, approx) {
		t.Fatalf("fee shares do not sum to total: %+v", got)
	}
}

func TestFeeSchedule_SharesScaleWithGross(t *testing.T) {
	schedule := DefaultFeeSchedule()
	gross := Splits{Platform: 12.5, Hotel: 7.25, Vendor: 40.25}
	total := gross.Total()

	got := schedule.Allocate(gross, total, "ILS")

	ratios := []float64{got.Platform / gross.Platform, got.Hotel / gross.Hotel, got.Vendor / gross.Vendor}
	for _, ratio := range ratios[1:] {
		if !cmp.Equal(ratio, ratios[0], approx) {
			t.Fatalf("fee ratios differ: %v", ratios)
		}
	}
	if !cmp.Equal(got.Platform+got.Hotel+got.Vendor, got.Total, approx) {
		t.Fatalf("fee shares do not sum to total: %+v", got)
	}
}

func TestFeeSchedule_ZeroTotal(t *testing.T) {
	got := DefaultFeeSchedule().Allocate(Splits{}, 0, "usd")
	if got != (FeeShares{}) {
		t.Fatalf("expected zero shares, got %+v", got)
	}
}

func TestFeeSchedule_FixedFeeLookup(t *testing.T) {
	schedule := DefaultFeeSchedule()
	cases := map[string]float64{
		"usd": 0.30,
		"USD": 0.30,
		"ils": 1.20,
		"Ils": 1.20,
		"eur": 1.20,
		"":    1.20,
	}
	for code, want := range cases {
		if got := schedule.FixedFee(code); got != want {
			t.Fatalf("FixedFee(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestNewFeeSchedule_NormalisesTable(t *testing.T) {
	schedule := NewFeeSchedule(0.03, map[string]float64{" EUR ": 0.25, "ILS": 1.2, "": 9}, "")

	if got := schedule.FixedFee("eur"); got != 0.25 {
		t.Fatalf("expected eur fee 0.25, got %v", got)
	}
	if got := schedule.FixedFee("gbp"); got != 1.2 {
		t.Fatalf("expected fallback to ils, got %v", got)
	}
	if _, ok := schedule.Fixed[""]; ok {
		t.Fatalf("expected blank currency to be dropped")
	}
	if !cmp.Equal(schedule.TotalFee(100, "eur"), 3.25, approx) {
		t.Fatalf("unexpected total fee %v", schedule.TotalFee(100, "eur"))
	}

	copied := schedule.Currencies()
	copied["eur"] = 99
	if schedule.FixedFee("eur") != 0.25 {
		t.Fatalf("expected Currencies to return a copy")
	}
}

func TestNewFeeSchedule_CompletesMissingFixedFees(t *testing.T) {
	empty := NewCalculator(NewFeeSchedule(0.029, map[string]float64{}, "")).FeeSchedule()
	if got := empty.FixedFee("usd"); got != 0.30 {
		t.Fatalf("expected default usd fee for empty table, got %v", got)
	}

	schedule := NewFeeSchedule(0.029, map[string]float64{"eur": 0.25}, "gbp")
	if got := schedule.FixedFee("jpy"); got != 1.20 {
		t.Fatalf("expected default fallback fee for missing gbp entry, got %v", got)
	}
	if diff := cmp.Diff(map[string]float64{"eur": 0.25, "gbp": 1.20}, schedule.Currencies()); diff != "" {
		t.Fatalf("unexpected fee table (-want +got):\n%s", diff)
	}
}
