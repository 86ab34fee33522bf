package splits

import (
	"fmt"
	"math"
)

// FeeSumTolerance bounds how far a policy's fee fractions may drift from 1.
const FeeSumTolerance = 0.001

// Validate checks a configuration against the policy it resolves to without computing anything.
func Validate(cfg *MerchantPaymentConfig) error {
	if cfg == nil {
		return ErrMissingConfiguration
	}
	model := cfg.SplitModel()

	sum := cfg.PlatformFee + cfg.VendorFee
	if model == ModelThreeWay {
		sum += cfg.HotelFee
	}
	if math.Abs(sum-1) > FeeSumTolerance {
		return &ConfigurationError{Model: model, Sum: sum, Reason: "fee percentages must sum to 100%"}
	}

	// A 3-way tag without a hotel keeps its hotel destinations; they settle to the platform.
	hotelAllowed := model == ModelThreeWay || model == ModelThreeWayFallback
	if err := validateDestination(model, "deliveryDestination", ParseDestination(cfg.DeliveryDestination), hotelAllowed); err != nil {
		return err
	}
	if err := validateDestination(model, "tipDestination", ParseDestination(cfg.TipDestination), hotelAllowed); err != nil {
		return err
	}
	return nil
}

func validateDestination(model SplitModel, field string, dest Destination, hotelAllowed bool) error {
	if !dest.Valid() {
		return &ConfigurationError{Model: model, Field: field, Reason: fmt.Sprintf("unknown destination %q", dest)}
	}
	if dest == DestinationHotel && !hotelAllowed {
		return &ConfigurationError{Model: model, Field: field, Reason: "hotel destination requires a 3-way configuration with a hotel"}
	}
	return nil
}

// Resolve applies the configured split policy and returns gross per-party amounts.
func Resolve(order OrderSummary, cfg *MerchantPaymentConfig) (Splits, error) {
	if err := Validate(cfg); err != nil {
		return Splits{}, err
	}

	model := cfg.SplitModel()
	var result Splits
	switch model {
	case ModelThreeWay:
		result = threeWaySplit(order, cfg)
	case ModelCOGBased:
		result = cogSplit(order, cfg)
	case ModelTwoWay, ModelThreeWayFallback:
		result = twoWaySplit(order, cfg)
	default:
		return Splits{}, &ConfigurationError{Model: model, Field: "model", Reason: "unsupported split model"}
	}
	result.Model = model
	return result, nil
}

func twoWaySplit(order OrderSummary, cfg *MerchantPaymentConfig) Splits {
	result := Splits{
		Platform: order.ItemsTotal * cfg.PlatformFee,
		Vendor:   order.ItemsTotal * cfg.VendorFee,
	}
	routeExtras(&result, order, cfg, false)
	return result
}

func cogSplit(order OrderSummary, cfg *MerchantPaymentConfig) Splits {
	profit := order.Profit()
	result := Splits{
		Platform: profit * cfg.PlatformFee,
		Vendor:   order.COG + profit*cfg.VendorFee,
	}
	routeExtras(&result, order, cfg, false)
	return result
}

func threeWaySplit(order OrderSummary, cfg *MerchantPaymentConfig) Splits {
	profit := order.Profit()
	result := Splits{
		Platform: profit * cfg.PlatformFee,
		Hotel:    profit * cfg.HotelFee,
		Vendor:   order.COG + profit*cfg.VendorFee,
	}
	routeExtras(&result, order, cfg, true)
	return result
}

// routeExtras adds the delivery fee and tip to the parties named by their destinations.
func routeExtras(result *Splits, order OrderSummary, cfg *MerchantPaymentConfig, threeWay bool) {
	route(result, order.DeliveryFee, ParseDestination(cfg.DeliveryDestination), cfg.DeliverySplit, threeWay)
	route(result, order.Tip, ParseDestination(cfg.TipDestination), cfg.TipSplit, threeWay)
}

func route(result *Splits, amount float64, dest Destination, shares *ShareMap, threeWay bool) {
	if amount == 0 {
		return
	}
	switch dest {
	case DestinationVendor:
		result.Vendor += amount
	case DestinationHotel:
		if !threeWay {
			result.Platform += amount
			return
		}
		result.Hotel += amount
	case DestinationSplit:
		split := defaultShareMap
		if shares != nil {
			split = *shares
		}
		result.Platform += amount * split.Platform
		result.Vendor += amount * split.Vendor
		if threeWay {
			result.Hotel += amount * split.Hotel
		}
	default:
		result.Platform += amount
	}
}
