package pricing

import "github.com/shopspring/decimal"

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice decimal.Decimal
}

// Summary aggregates computed pricing components, each rounded to two
// decimal places.
type Summary struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Compute calculates cart totals for the provided line items. taxRate is a
// percentage (15 means 15%), shipping is a flat amount in currency units.
// Rounding happens once per figure at the final step so repeated quantities
// do not accumulate drift. An empty item set yields all-zero results: no
// shipping is charged on a cart with nothing in it.
func Compute(items []Item, taxRate decimal.Decimal, shipping decimal.Decimal) Summary {
	subtotal := decimal.Zero
	charged := 0
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		charged++
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	if charged == 0 {
		return Summary{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Total:    decimal.Zero,
		}
	}
	tax := subtotal.Mul(taxRate).Div(decimal.NewFromInt(100))
	total := subtotal.Add(tax).Add(shipping)
	return Summary{
		Subtotal: subtotal.Round(2),
		Tax:      tax.Round(2),
		Shipping: shipping.Round(2),
		Total:    total.Round(2),
	}
}

// LineTotal returns the extended price for a single line, rounded to two
// decimal places.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero.Round(2)
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
