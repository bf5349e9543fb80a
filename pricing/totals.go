package pricing

import "github.com/shopspring/decimal"

// Totals holds the money breakdown frozen into an order.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// ComputeTotals derives tax from the subtotal and keeps
// total == subtotal + deliveryFee + tax - discount. The discount is clamped to
// [0, subtotal+fee+tax] so the total is never negative.
func ComputeTotals(subtotal, taxRate, deliveryFee, discount decimal.Decimal) Totals {
	tax := subtotal.Mul(taxRate).Round(2)
	gross := subtotal.Add(deliveryFee).Add(tax)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(gross) {
		discount = gross
	}
	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: deliveryFee,
		Discount:    discount,
		Total:       gross.Sub(discount),
	}
}
