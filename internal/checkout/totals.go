package checkout

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat 5% tax applied to the cart subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.05")

type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// ShippingFee is free when the method has a threshold and the subtotal reaches it,
// the flat price otherwise. No method selected costs nothing yet.
func ShippingFee(subtotal decimal.Decimal, method *domain.ShippingMethod) decimal.Decimal {
	if method == nil {
		return decimal.Zero
	}
	if method.FreeShippingThreshold != nil && subtotal.GreaterThanOrEqual(*method.FreeShippingThreshold) {
		return decimal.Zero
	}
	return method.Price
}

func TaxAmount(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}

func ComputeTotals(subtotal decimal.Decimal, method *domain.ShippingMethod, taxRate decimal.Decimal) Totals {
	fee := ShippingFee(subtotal, method)
	tax := TaxAmount(subtotal, taxRate)
	return Totals{
		Subtotal:    subtotal,
		ShippingFee: fee,
		TaxAmount:   tax,
		TotalAmount: subtotal.Add(fee).Add(tax),
	}
}
