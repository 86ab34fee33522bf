package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

const maxCartItems = 100

// SummarizeCart derives the order summary from the cart lines. Items are charged at their
// discounted price when one is set; cost of goods is the vendor's cost times quantity.
func SummarizeCart(items []CartItem, deliveryFee, tip float64) (splits.OrderSummary, error) {
	if len(items) == 0 {
		return splits.OrderSummary{}, fmt.Errorf("%w: cart is empty", ErrPaymentInvalidInput)
	}
	if len(items) > maxCartItems {
		return splits.OrderSummary{}, fmt.Errorf("%w: too many cart items", ErrPaymentInvalidInput)
	}
	if !validAmount(deliveryFee) || !validAmount(tip) {
		return splits.OrderSummary{}, fmt.Errorf("%w: delivery fee and tip must be non-negative", ErrPaymentInvalidInput)
	}

	summary := splits.OrderSummary{DeliveryFee: deliveryFee, Tip: tip}
	for i, item := range items {
		if strings.TrimSpace(item.ItemID) == "" {
			return splits.OrderSummary{}, fmt.Errorf("%w: item %d has no id", ErrPaymentInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return splits.OrderSummary{}, fmt.Errorf("%w: item %s quantity must be positive", ErrPaymentInvalidInput, item.ItemID)
		}
		if !validAmount(item.Price) || !validAmount(item.DiscountedPrice) || !validAmount(item.Cost) {
			return splits.OrderSummary{}, fmt.Errorf("%w: item %s has a negative price or cost", ErrPaymentInvalidInput, item.ItemID)
		}
		qty := float64(item.Quantity)
		summary.ItemsTotal += item.UnitPrice() * qty
		summary.COG += item.Cost * qty
	}
	return summary, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
