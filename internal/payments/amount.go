package payments

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
)

// ErrInvalidAmount is returned when an amount cannot be represented in the currency's minor unit.
var ErrInvalidAmount = errors.New("payments: invalid amount")

// MinorUnits converts a decimal amount into the currency's smallest unit (cents, agorot) using
// the ISO 4217 scale.
func MinorUnits(amount float64, code string) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	scale, err := currencyScale(code)
	if err != nil {
		return 0, err
	}
	minor := math.Round(amount * math.Pow10(scale))
	if minor >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v overflows", ErrInvalidAmount, amount)
	}
	return int64(minor), nil
}

// MajorUnits converts minor units back into a decimal amount.
func MajorUnits(minor int64, code string) (float64, error) {
	scale, err := currencyScale(code)
	if err != nil {
		return 0, err
	}
	return float64(minor) / math.Pow10(scale), nil
}

func currencyScale(code string) (int, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 0, fmt.Errorf("payments: unknown currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale, nil
}
