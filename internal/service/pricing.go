package service

import (
	"color_shop/internal/config"

	"github.com/shopspring/decimal"
)

// Totals 订单金额汇总。
type Totals struct {
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	ShippingCost decimal.Decimal
	TotalAmount  decimal.Decimal
}

// UnitPrice 单价 = 基础价 + 规格加价（无规格时加价为 0）。
func UnitPrice(base decimal.Decimal, adjustment decimal.NullDecimal) decimal.Decimal {
	if !adjustment.Valid {
		return base
	}
	return base.Add(adjustment.Decimal)
}

// LineTotal 行小计 = 单价 * 数量。
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// ComputeTotals 按费率计算税额与运费：
// 税额四舍五入到分；小计严格大于包邮门槛时免运费，否则收固定运费。
func ComputeTotals(p config.Pricing, subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(p.TaxRate).Round(2)
	shipping := p.ShippingFee
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal:     subtotal,
		TaxAmount:    tax,
		ShippingCost: shipping,
		TotalAmount:  subtotal.Add(tax).Add(shipping),
	}
}
