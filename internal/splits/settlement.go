package splits

import "math"

// Finalize subtracts each party's fee share from its gross amount, never going below zero.
func Finalize(gross Splits, fees FeeShares) FinalAmounts {
	return FinalAmounts{
		Platform:       math.Max(0, gross.Platform-fees.Platform),
		Hotel:          math.Max(0, gross.Hotel-fees.Hotel),
		Vendor:         math.Max(0, gross.Vendor-fees.Vendor),
		StripeFeeTotal: fees.Total,
	}
}

// Calculator runs the resolve, allocate and finalize stages. The zero value uses DefaultFeeSchedule.
// A Calculator holds no mutable state and is safe for concurrent use.
type Calculator struct {
	fees FeeSchedule
}

// NewCalculator constructs a calculator with the provided fee schedule.
func NewCalculator(fees FeeSchedule) Calculator {
	return Calculator{fees: fees}
}

// FeeSchedule exposes the schedule in use.
func (c Calculator) FeeSchedule() FeeSchedule {
	if len(c.fees.Fixed) == 0 {
		return DefaultFeeSchedule()
	}
	return c.fees
}

// Calculate produces the full payment breakdown for an order under cfg.
func (c Calculator) Calculate(order OrderSummary, cfg *MerchantPaymentConfig, currency string) (PaymentBreakdown, error) {
	gross, err := Resolve(order, cfg)
	if err != nil {
		return PaymentBreakdown{}, err
	}

	total := order.Total()
	fees := c.FeeSchedule().Allocate(gross, total, currency)

	return PaymentBreakdown{
		Splits:       gross,
		StripeFees:   fees,
		FinalAmounts: Finalize(gross, fees),
		Breakdown: Composition{
			ItemsTotal:  order.ItemsTotal,
			COG:         order.COG,
			Profit:      order.Profit(),
			DeliveryFee: order.DeliveryFee,
			Tip:         order.Tip,
			Total:       total,
		},
	}, nil
}

// Calculate runs the pipeline with the default fee schedule.
func Calculate(order OrderSummary, cfg *MerchantPaymentConfig, currency string) (PaymentBreakdown, error) {
	return Calculator{}.Calculate(order, cfg, currency)
}
