package service

import (
	"testing"

	"color_shop/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{"60", "6", "10", "76"},
		// 门槛是严格大于
		{"100", "10", "10", "120"},
		{"100.01", "10", "0", "110.01"},
		{"0.05", "0.01", "10", "10.06"},
		{"249.99", "25", "0", "274.99"},
	}

	for _, tt := range tests {
		t.Run(tt.subtotal, func(t *testing.T) {
			got := ComputeTotals(config.DefaultPricing(), d(tt.subtotal))
			assert.True(t, d(tt.tax).Equal(got.TaxAmount), "tax %s", got.TaxAmount)
			assert.True(t, d(tt.shipping).Equal(got.ShippingCost), "shipping %s", got.ShippingCost)
			assert.True(t, d(tt.total).Equal(got.TotalAmount), "total %s", got.TotalAmount)
			assert.True(t, got.TotalAmount.Equal(got.Subtotal.Add(got.TaxAmount).Add(got.ShippingCost)))
		})
	}
}

func TestUnitPrice(t *testing.T) {
	assert.True(t, d("15").Equal(UnitPrice(d("15"), decimal.NullDecimal{})))
	assert.True(t, d("20").Equal(UnitPrice(d("15"), decimal.NewNullDecimal(d("5")))))
	assert.True(t, d("12.5").Equal(UnitPrice(d("15"), decimal.NewNullDecimal(d("-2.5")))))
}

func TestLineTotal(t *testing.T) {
	assert.True(t, d("40").Equal(LineTotal(d("20"), 2)))
	assert.True(t, d("37.47").Equal(LineTotal(d("12.49"), 3)))
}
