package splits

import "strings"

const (
	// DefaultFeePercent is the processor's variable card fee.
	DefaultFeePercent = 0.029
	// DefaultFallbackCurrency supplies the fixed fee for unrecognised currencies.
	DefaultFallbackCurrency = "ils"
)

// FeeSchedule describes how the payment processor prices a transaction.
type FeeSchedule struct {
	Percent          float64
	Fixed            map[string]float64
	FallbackCurrency string
}

// DefaultFeeSchedule returns the standard card pricing: 2.9% plus a per-currency fixed fee.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Percent: DefaultFeePercent,
		Fixed: map[string]float64{
			"usd": 0.30,
			"ils": 1.20,
		},
		FallbackCurrency: DefaultFallbackCurrency,
	}
}

// NewFeeSchedule builds a schedule from a fixed-fee table. Currency keys are lower-cased. An empty
// table, or one without the fallback currency, is completed from DefaultFeeSchedule.
func NewFeeSchedule(percent float64, fixed map[string]float64, fallback string) FeeSchedule {
	table := make(map[string]float64, len(fixed))
	for code, fee := range fixed {
		key := strings.ToLower(strings.TrimSpace(code))
		if key == "" {
			continue
		}
		table[key] = fee
	}
	defaults := DefaultFeeSchedule()
	if len(table) == 0 {
		table = defaults.Fixed
	}
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if fallback == "" {
		fallback = DefaultFallbackCurrency
	}
	if _, ok := table[fallback]; !ok {
		table[fallback] = defaults.FixedFee(fallback)
	}
	return FeeSchedule{Percent: percent, Fixed: table, FallbackCurrency: fallback}
}

// FixedFee returns the per-transaction fee for currency, falling back to FallbackCurrency.
func (s FeeSchedule) FixedFee(currency string) float64 {
	if fee, ok := s.Fixed[strings.ToLower(strings.TrimSpace(currency))]; ok {
		return fee
	}
	return s.Fixed[s.FallbackCurrency]
}

// Currencies lists a copy of the configured fixed-fee table.
func (s FeeSchedule) Currencies() map[string]float64 {
	out := make(map[string]float64, len(s.Fixed))
	for code, fee := range s.Fixed {
		out[code] = fee
	}
	return out
}

// TotalFee is the processor fee charged on totalAmount.
func (s FeeSchedule) TotalFee(totalAmount float64, currency string) float64 {
	return totalAmount*s.Percent + s.FixedFee(currency)
}

// Allocate distributes the processor fee across parties in proportion to their gross share of
// totalAmount. A zero total yields zero shares.
func (s FeeSchedule) Allocate(gross Splits, totalAmount float64, currency string) FeeShares {
	if totalAmount == 0 {
		return FeeShares{}
	}
	fee := s.TotalFee(totalAmount, currency)
	return FeeShares{
		Platform: fee * (gross.Platform / totalAmount),
		Hotel:    fee * (gross.Hotel / totalAmount),
		Vendor:   fee * (gross.Vendor / totalAmount),
		Total:    fee,
	}
}
