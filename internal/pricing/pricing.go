// Package pricing считает суммы заказа в точной десятичной арифметике.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	DefaultTaxRate               = decimal.RequireFromString("0.08")
	DefaultFlatShipping          = decimal.RequireFromString("9.99")
	DefaultFreeShippingThreshold = decimal.RequireFromString("100.00")
)

// Line - цена за единицу и количество одной позиции
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals - итог по заказу, все суммы с двумя знаками
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

type Calculator struct {
	taxRate               decimal.Decimal
	flatShipping          decimal.Decimal
	freeShippingThreshold decimal.Decimal
}

func NewCalculator(taxRate, flatShipping, freeShippingThreshold decimal.Decimal) *Calculator {
	return &Calculator{
		taxRate:               taxRate,
		flatShipping:          flatShipping,
		freeShippingThreshold: freeShippingThreshold,
	}
}

// NewDefaultCalculator - 8% налог, доставка 9.99, бесплатно от 100.00
func NewDefaultCalculator() *Calculator {
	return NewCalculator(DefaultTaxRate, DefaultFlatShipping, DefaultFreeShippingThreshold)
}

// LineTotal = unit_price * quantity
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Calculate считает subtotal, налог (half-up до центов), доставку и итог
func (c *Calculator) Calculate(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	subtotal = subtotal.Round(2)

	// decimal.Round округляет половину от нуля, для неотрицательных сумм это half-up
	tax := subtotal.Mul(c.taxRate).Round(2)

	shipping := c.flatShipping.Round(2)
	if subtotal.GreaterThanOrEqual(c.freeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: shipping,
		TotalAmount:    subtotal.Add(tax).Add(shipping),
	}
}
