package checkout

import (
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestShippingFee(t *testing.T) {
	threshold := money(10000)
	standard := &domain.ShippingMethod{ID: "standard", Price: money(1000), FreeShippingThreshold: &threshold}
	express := &domain.ShippingMethod{ID: "express", Price: money(2500)}

	tests := []struct {
		name     string
		subtotal int64
		method   *domain.ShippingMethod
		want     int64
	}{
		{"threshold reached", 10000, standard, 0},
		{"one below threshold", 9999, standard, 1000},
		{"well above threshold", 50000, standard, 0},
		{"no threshold", 50000, express, 2500},
		{"no method selected", 5000, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShippingFee(money(tt.subtotal), tt.method)
			assert.True(t, money(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestComputeTotals(t *testing.T) {
	threshold := money(10000)
	standard := &domain.ShippingMethod{ID: "standard", Price: money(1000), FreeShippingThreshold: &threshold}

	got := ComputeTotals(money(20000), standard, DefaultTaxRate)

	assert.True(t, money(20000).Equal(got.Subtotal))
	assert.True(t, money(0).Equal(got.ShippingFee))
	assert.True(t, money(1000).Equal(got.TaxAmount))
	assert.True(t, money(21000).Equal(got.TotalAmount))
}

func TestTaxAmountRounds(t *testing.T) {
	got := TaxAmount(decimal.RequireFromString("19.99"), DefaultTaxRate)
	assert.Equal(t, "1", got.String())
	got = TaxAmount(decimal.RequireFromString("33.33"), DefaultTaxRate)
	assert.Equal(t, "1.67", got.String())
}

func TestStepAllowsEmptyCart(t *testing.T) {
	assert.False(t, StepShipping.allowsEmptyCart())
	assert.False(t, StepPayment.allowsEmptyCart())
	assert.True(t, StepConfirmation.allowsEmptyCart())
	assert.True(t, StepVerifying.allowsEmptyCart())
}
